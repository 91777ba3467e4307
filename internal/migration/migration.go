package migration

import (
	"context"
	"fmt"

	"investorradar/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createUsersTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create users table")
	}

	if err := r.createAPITokensTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create api_tokens table")
	}

	if err := r.createDatasetsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create datasets table")
	}

	if err := r.createSnapshotsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create dataset_snapshots table")
	}

	if err := r.createSignalsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create signals table")
	}

	if err := r.createContentItemsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create content_items table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createUsersTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			is_active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createAPITokensTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_tokens (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			digest TEXT NOT NULL UNIQUE,
			label TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			last_used_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createDatasetsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS datasets (
			id UUID PRIMARY KEY,
			external_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			name_ar TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			source_url TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			columns JSONB NOT NULL DEFAULT '[]',
			resources JSONB NOT NULL DEFAULT '[]',
			is_active BOOLEAN NOT NULL DEFAULT true,
			sync_status TEXT NOT NULL DEFAULT 'PENDING',
			record_count BIGINT NOT NULL DEFAULT 0,
			last_sync_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	// Reconciliation treats a non-empty external_id as the natural key.
	// The partial unique index is what rejects the loser of a concurrent
	// create race.
	_, err = db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_datasets_external_id
		ON datasets(external_id) WHERE external_id <> ''
	`)
	return err
}

func (r *MigrationRunner) createSnapshotsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_snapshots (
			id UUID PRIMARY KEY,
			dataset_id UUID NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
			record_count BIGINT NOT NULL DEFAULT 0,
			taken_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createSignalsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS signals (
			id UUID PRIMARY KEY,
			dataset_id UUID NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			strength DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			window_days INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createContentItemsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS content_items (
			id UUID PRIMARY KEY,
			author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			dataset_id UUID REFERENCES datasets(id) ON DELETE SET NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			tags JSONB NOT NULL DEFAULT '[]',
			published_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		// Dataset registry indexes
		"CREATE INDEX IF NOT EXISTS idx_datasets_category ON datasets(category)",
		"CREATE INDEX IF NOT EXISTS idx_datasets_sync_status ON datasets(sync_status)",
		"CREATE INDEX IF NOT EXISTS idx_datasets_active ON datasets(is_active)",
		"CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at DESC)",

		// Snapshot indexes
		"CREATE INDEX IF NOT EXISTS idx_snapshots_dataset_taken ON dataset_snapshots(dataset_id, taken_at)",

		// Signal indexes
		"CREATE INDEX IF NOT EXISTS idx_signals_kind ON signals(kind)",
		"CREATE INDEX IF NOT EXISTS idx_signals_dataset_id ON signals(dataset_id)",
		"CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at DESC)",

		// Content feed indexes
		"CREATE INDEX IF NOT EXISTS idx_content_published_at ON content_items(published_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_content_author_id ON content_items(author_id)",

		// Token indexes
		"CREATE INDEX IF NOT EXISTS idx_tokens_user_id ON api_tokens(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_tokens_expires_at ON api_tokens(expires_at)",
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Log but don't fail on index creation errors
			fmt.Printf("Warning: failed to create index: %v\n", err)
		}
	}

	return nil
}
