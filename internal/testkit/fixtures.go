package testkit

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/models"
)

// Fixture categories mirror the sort of labels the open-data portal uses.
var fixtureCategories = []string{
	"economy-and-finance", "health", "education", "transportation",
	"energy", "environment", "tourism", "population",
}

// FakeExternalID returns a random lowercase UUID, the shape the portal
// assigns to datasets.
func FakeExternalID() string {
	return uuid.NewString()
}

// FakeDataset builds a plausible registry record. The category is random
// unless overridden via the mutators.
func FakeDataset(rng *rand.Rand, mutators ...func(*catalog.DatasetRecord)) *catalog.DatasetRecord {
	externalID := FakeExternalID()
	record := catalog.NewFromDiscovery(
		externalID,
		fmt.Sprintf("%s %s indicators", faker.Word(), faker.Word()),
		"",
		fixtureCategories[rng.Intn(len(fixtureCategories))],
		"open-data-portal",
		"",
	)
	record.Description = faker.Sentence()
	for _, mutate := range mutators {
		mutate(record)
	}
	return record
}

// FakeSnapshotSeries appends count observations for one dataset, one per
// day ending now, following a linear record-count ramp with jitter.
func FakeSnapshotSeries(datasetID core.DatasetID, count int, base, slope int64, rng *rand.Rand) []*catalog.Snapshot {
	out := make([]*catalog.Snapshot, 0, count)
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		taken := now.AddDate(0, 0, i-count+1)
		jitter := int64(0)
		if rng != nil {
			jitter = int64(rng.Intn(3))
		}
		snap := &catalog.Snapshot{
			ID:          core.NewID(),
			DatasetID:   datasetID,
			RecordCount: base + slope*int64(i) + jitter,
			TakenAt:     taken,
		}
		out = append(out, snap)
	}
	return out
}

// FakeUser builds an active member account with the given password.
func FakeUser(password string) (*models.User, error) {
	now := time.Now().UTC()
	user := &models.User{
		ID:          uuid.New(),
		Email:       faker.Email(),
		DisplayName: faker.Name(),
		Role:        models.RoleMember,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	return user, nil
}
