// Package testkit provides in-memory port implementations and synthetic
// fixtures for tests and local seeding. The memory repositories honor the
// same contracts as the postgres adapters, including not-found sentinels
// and duplicate-key conflicts, so orchestrator tests exercise the real
// error paths without a database.
package testkit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/domain/feed"
	"investorradar/domain/signal"
	"investorradar/models"
	"investorradar/ports"
)

// MemoryDatasetRepository is a map-backed ports.DatasetRepository.
type MemoryDatasetRepository struct {
	mu    sync.Mutex
	byID  map[core.DatasetID]*catalog.DatasetRecord
	order []core.DatasetID

	// FailNext, when set, is returned by the next repository call and
	// cleared. Lets tests inject one storage error at a precise point.
	FailNext error

	// ConflictOn simulates losing a create race: a Create for a listed
	// externalId inserts the mapped winner row and reports a duplicate.
	ConflictOn map[string]*catalog.DatasetRecord
}

// NewMemoryDatasetRepository builds an empty registry.
func NewMemoryDatasetRepository() *MemoryDatasetRepository {
	return &MemoryDatasetRepository{
		byID:       make(map[core.DatasetID]*catalog.DatasetRecord),
		ConflictOn: make(map[string]*catalog.DatasetRecord),
	}
}

func (r *MemoryDatasetRepository) takeFailure() error {
	err := r.FailNext
	r.FailNext = nil
	return err
}

// Seed inserts records directly, bypassing conflict simulation.
func (r *MemoryDatasetRepository) Seed(records ...*catalog.DatasetRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		clone := *record
		r.byID[record.ID] = &clone
		r.order = append(r.order, record.ID)
	}
}

func (r *MemoryDatasetRepository) FindByExternalID(ctx context.Context, externalID string) (*catalog.DatasetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	for _, record := range r.byID {
		if record.ExternalID == externalID {
			clone := *record
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *MemoryDatasetRepository) GetByID(ctx context.Context, id core.DatasetID) (*catalog.DatasetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	record, ok := r.byID[id]
	if !ok {
		return nil, core.ErrDatasetNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *MemoryDatasetRepository) Create(ctx context.Context, record *catalog.DatasetRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if winner, ok := r.ConflictOn[record.ExternalID]; ok {
		delete(r.ConflictOn, record.ExternalID)
		clone := *winner
		r.byID[winner.ID] = &clone
		r.order = append(r.order, winner.ID)
		return fmt.Errorf("dataset %s: %w", record.ExternalID, core.ErrDuplicateExternalID)
	}
	if record.ExternalID != "" {
		for _, existing := range r.byID {
			if existing.ExternalID == record.ExternalID {
				return fmt.Errorf("dataset %s: %w", record.ExternalID, core.ErrDuplicateExternalID)
			}
		}
	}
	clone := *record
	r.byID[record.ID] = &clone
	r.order = append(r.order, record.ID)
	return nil
}

func (r *MemoryDatasetRepository) UpdateCategory(ctx context.Context, id core.DatasetID, category string) error {
	return r.mutate(id, func(record *catalog.DatasetRecord) {
		record.Category = category
	})
}

func (r *MemoryDatasetRepository) UpdateSyncStatus(ctx context.Context, id core.DatasetID, status catalog.SyncStatus) error {
	return r.mutate(id, func(record *catalog.DatasetRecord) {
		record.SyncStatus = status
	})
}

func (r *MemoryDatasetRepository) MarkSynced(ctx context.Context, id core.DatasetID, recordCount int64, at time.Time) error {
	return r.mutate(id, func(record *catalog.DatasetRecord) {
		record.SyncStatus = catalog.SyncSynced
		record.RecordCount = recordCount
		record.LastSyncAt = &at
	})
}

func (r *MemoryDatasetRepository) UpdateDetails(ctx context.Context, id core.DatasetID, name, nameAr, description, sourceURL string) error {
	return r.mutate(id, func(record *catalog.DatasetRecord) {
		if name != "" {
			record.Name = name
		}
		if nameAr != "" {
			record.NameAr = nameAr
		}
		if description != "" {
			record.Description = description
		}
		if sourceURL != "" {
			record.SourceURL = sourceURL
		}
	})
}

func (r *MemoryDatasetRepository) SetActive(ctx context.Context, id core.DatasetID, active bool) error {
	return r.mutate(id, func(record *catalog.DatasetRecord) {
		record.IsActive = active
	})
}

func (r *MemoryDatasetRepository) mutate(id core.DatasetID, fn func(*catalog.DatasetRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	record, ok := r.byID[id]
	if !ok {
		return core.ErrDatasetNotFound
	}
	fn(record)
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDatasetRepository) List(ctx context.Context, filter ports.DatasetFilter, limit, offset int) ([]*catalog.DatasetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	matched := r.filtered(filter)
	// Newest first, matching the postgres ordering.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if offset >= len(matched) {
		return []*catalog.DatasetRecord{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryDatasetRepository) ListActive(ctx context.Context) ([]*catalog.DatasetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	var out []*catalog.DatasetRecord
	for _, id := range r.order {
		if record, ok := r.byID[id]; ok && record.IsActive {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *MemoryDatasetRepository) ListPlaceholderNamed(ctx context.Context, limit int) ([]*catalog.DatasetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	var out []*catalog.DatasetRecord
	for _, id := range r.order {
		record, ok := r.byID[id]
		if !ok || !record.IsActive || !record.HasPlaceholderName() {
			continue
		}
		clone := *record
		out = append(out, &clone)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryDatasetRepository) Count(ctx context.Context, filter ports.DatasetFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return 0, err
	}
	return len(r.filtered(filter)), nil
}

func (r *MemoryDatasetRepository) ExternalIDs(ctx context.Context, category string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, record := range r.byID {
		if record.ExternalID == "" {
			continue
		}
		if category != "" && record.Category != category {
			continue
		}
		ids[record.ExternalID] = true
	}
	return ids, nil
}

func (r *MemoryDatasetRepository) Categories(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, record := range r.byID {
		if record.Category == "" || seen[record.Category] {
			continue
		}
		seen[record.Category] = true
		out = append(out, record.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryDatasetRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, record := range r.byID {
		if record.IsActive && record.Category != "" {
			counts[record.Category]++
		}
	}
	return counts, nil
}

func (r *MemoryDatasetRepository) CountBySyncStatus(ctx context.Context) (map[catalog.SyncStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	counts := make(map[catalog.SyncStatus]int)
	for _, record := range r.byID {
		counts[record.SyncStatus]++
	}
	return counts, nil
}

func (r *MemoryDatasetRepository) filtered(filter ports.DatasetFilter) []*catalog.DatasetRecord {
	var out []*catalog.DatasetRecord
	for _, id := range r.order {
		record, ok := r.byID[id]
		if !ok {
			continue
		}
		if filter.ActiveOnly && !record.IsActive {
			continue
		}
		if filter.Category != "" && record.Category != filter.Category {
			continue
		}
		if filter.Status != "" && record.SyncStatus != filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(record.Name), needle) &&
				!strings.Contains(strings.ToLower(record.NameAr), needle) &&
				!strings.Contains(strings.ToLower(record.Description), needle) {
				continue
			}
		}
		clone := *record
		out = append(out, &clone)
	}
	return out
}

// MemorySnapshotRepository is a slice-backed ports.SnapshotRepository.
type MemorySnapshotRepository struct {
	mu    sync.Mutex
	snaps []*catalog.Snapshot

	FailNext error
}

func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{}
}

func (r *MemorySnapshotRepository) Save(ctx context.Context, snap *catalog.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailNext; err != nil {
		r.FailNext = nil
		return err
	}
	clone := *snap
	r.snaps = append(r.snaps, &clone)
	return nil
}

func (r *MemorySnapshotRepository) ListForDataset(ctx context.Context, datasetID core.DatasetID, since time.Time) ([]*catalog.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailNext; err != nil {
		r.FailNext = nil
		return nil, err
	}
	var out []*catalog.Snapshot
	for _, snap := range r.snaps {
		if snap.DatasetID != datasetID || snap.TakenAt.Before(since) {
			continue
		}
		clone := *snap
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TakenAt.Before(out[j].TakenAt)
	})
	return out, nil
}

// All returns every stored snapshot, oldest first.
func (r *MemorySnapshotRepository) All() []*catalog.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*catalog.Snapshot, len(r.snaps))
	copy(out, r.snaps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TakenAt.Before(out[j].TakenAt)
	})
	return out
}

// MemorySignalRepository is a map-backed ports.SignalRepository.
type MemorySignalRepository struct {
	mu   sync.Mutex
	byID map[core.SignalID]*signal.Signal
}

func NewMemorySignalRepository() *MemorySignalRepository {
	return &MemorySignalRepository{byID: make(map[core.SignalID]*signal.Signal)}
}

func (r *MemorySignalRepository) Create(ctx context.Context, sig *signal.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *sig
	r.byID[sig.ID] = &clone
	return nil
}

func (r *MemorySignalRepository) ReplaceForDataset(ctx context.Context, datasetID core.DatasetID, sigs []*signal.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.byID {
		if existing.DatasetID == datasetID {
			delete(r.byID, id)
		}
	}
	for _, sig := range sigs {
		clone := *sig
		r.byID[sig.ID] = &clone
	}
	return nil
}

func (r *MemorySignalRepository) GetByID(ctx context.Context, id core.SignalID) (*signal.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sig, ok := r.byID[id]
	if !ok {
		return nil, core.ErrSignalNotFound
	}
	clone := *sig
	return &clone, nil
}

func (r *MemorySignalRepository) List(ctx context.Context, kind signal.Kind, limit, offset int) ([]*signal.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*signal.Signal
	for _, sig := range r.byID {
		if kind != "" && sig.Kind != kind {
			continue
		}
		clone := *sig
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []*signal.Signal{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemorySignalRepository) ListForDataset(ctx context.Context, datasetID core.DatasetID) ([]*signal.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*signal.Signal
	for _, sig := range r.byID {
		if sig.DatasetID == datasetID {
			clone := *sig
			out = append(out, &clone)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemorySignalRepository) CountByKind(ctx context.Context) (map[signal.Kind]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[signal.Kind]int)
	for _, sig := range r.byID {
		counts[sig.Kind]++
	}
	return counts, nil
}

func (r *MemorySignalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, sig := range r.byID {
		if sig.CreatedAt.Before(cutoff) {
			delete(r.byID, id)
			removed++
		}
	}
	return removed, nil
}

// MemoryUserRepository is a map-backed ports.UserRepository.
type MemoryUserRepository struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byID: make(map[uuid.UUID]*models.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == user.Email {
			return fmt.Errorf("user %s already exists", user.Email)
		}
	}
	clone := *user
	r.byID[user.ID] = &clone
	return nil
}

// Put upserts a user directly, bypassing the duplicate-email check.
func (r *MemoryUserRepository) Put(user *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *user
	r.byID[user.ID] = &clone
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.byID {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, user := range r.byID {
		clone := *user
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryUserRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

// MemoryTokenRepository is a map-backed ports.TokenRepository.
type MemoryTokenRepository struct {
	mu       sync.Mutex
	byDigest map[string]*models.APIToken
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{byDigest: make(map[string]*models.APIToken)}
}

func (r *MemoryTokenRepository) Save(ctx context.Context, token *models.APIToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *token
	r.byDigest[token.Digest] = &clone
	return nil
}

func (r *MemoryTokenRepository) FindByDigest(ctx context.Context, digest string) (*models.APIToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.byDigest[digest]
	if !ok {
		return nil, fmt.Errorf("token: %w", core.ErrNotFound)
	}
	if token.Expired() {
		return nil, core.ErrTokenExpired
	}
	clone := *token
	return &clone, nil
}

func (r *MemoryTokenRepository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.byDigest {
		if token.ID == id {
			token.LastUsedAt = &at
			return nil
		}
	}
	return fmt.Errorf("token: %w", core.ErrNotFound)
}

func (r *MemoryTokenRepository) Revoke(ctx context.Context, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byDigest, digest)
	return nil
}

func (r *MemoryTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for digest, token := range r.byDigest {
		if now.After(token.ExpiresAt) {
			delete(r.byDigest, digest)
			removed++
		}
	}
	return removed, nil
}

// MemoryContentRepository is a map-backed ports.ContentRepository.
type MemoryContentRepository struct {
	mu   sync.Mutex
	byID map[core.ContentID]*feed.Item
}

func NewMemoryContentRepository() *MemoryContentRepository {
	return &MemoryContentRepository{byID: make(map[core.ContentID]*feed.Item)}
}

func (r *MemoryContentRepository) Create(ctx context.Context, item *feed.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *item
	r.byID[item.ID] = &clone
	return nil
}

func (r *MemoryContentRepository) Update(ctx context.Context, item *feed.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[item.ID]; !ok {
		return core.ErrContentNotFound
	}
	clone := *item
	r.byID[item.ID] = &clone
	return nil
}

func (r *MemoryContentRepository) GetByID(ctx context.Context, id core.ContentID) (*feed.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.byID[id]
	if !ok {
		return nil, core.ErrContentNotFound
	}
	clone := *item
	return &clone, nil
}

func (r *MemoryContentRepository) ListPublished(ctx context.Context, limit, offset int) ([]*feed.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*feed.Item
	for _, item := range r.byID {
		if !item.Published() {
			continue
		}
		clone := *item
		out = append(out, &clone)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(*out[j].PublishedAt)
	})
	if offset >= len(out) {
		return []*feed.Item{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryContentRepository) CountPublished(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, item := range r.byID {
		if item.Published() {
			count++
		}
	}
	return count, nil
}

func (r *MemoryContentRepository) Delete(ctx context.Context, id core.ContentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

// CapturingPublisher records published events for assertions.
type CapturingPublisher struct {
	mu     sync.Mutex
	events []CapturedEvent

	FailNext error
}

// CapturedEvent is one recorded publish call.
type CapturedEvent struct {
	RoutingKey string
	Payload    interface{}
}

func NewCapturingPublisher() *CapturingPublisher {
	return &CapturingPublisher{}
}

func (p *CapturingPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.FailNext; err != nil {
		p.FailNext = nil
		return err
	}
	p.events = append(p.events, CapturedEvent{RoutingKey: routingKey, Payload: payload})
	return nil
}

func (p *CapturingPublisher) Close() error { return nil }

// Events returns the captured publishes in order.
func (p *CapturingPublisher) Events() []CapturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CapturedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// ByKey returns the captured events with the given routing key.
func (p *CapturingPublisher) ByKey(routingKey string) []CapturedEvent {
	var out []CapturedEvent
	for _, event := range p.Events() {
		if event.RoutingKey == routingKey {
			out = append(out, event)
		}
	}
	return out
}

var (
	_ ports.DatasetRepository  = (*MemoryDatasetRepository)(nil)
	_ ports.SnapshotRepository = (*MemorySnapshotRepository)(nil)
	_ ports.SignalRepository   = (*MemorySignalRepository)(nil)
	_ ports.UserRepository     = (*MemoryUserRepository)(nil)
	_ ports.TokenRepository    = (*MemoryTokenRepository)(nil)
	_ ports.ContentRepository  = (*MemoryContentRepository)(nil)
	_ ports.EventPublisher     = (*CapturingPublisher)(nil)
)
