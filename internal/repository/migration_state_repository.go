package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationStateRepository persists the per-entity change-detection
// fingerprints between migration runs.
type migrationStateRepository struct {
	pool *pgxpool.Pool
}

// NewMigrationStateRepository creates a new migration state repository.
func NewMigrationStateRepository(pool *pgxpool.Pool) MigrationStateRepository {
	return &migrationStateRepository{pool: pool}
}

// Fingerprint returns the stored fingerprint for an entity, or empty when
// the entity has never completed a migration pass.
func (r *migrationStateRepository) Fingerprint(ctx context.Context, entityKey string) (string, error) {
	var fingerprint string
	err := r.pool.QueryRow(ctx,
		`SELECT fingerprint FROM migration_state WHERE entity_key = $1`, entityKey,
	).Scan(&fingerprint)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load fingerprint for %s: %w", entityKey, err)
	}
	return fingerprint, nil
}

// SaveFingerprint records a fully successful migration of the entity.
func (r *migrationStateRepository) SaveFingerprint(ctx context.Context, entityKey, fingerprint string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO migration_state (entity_key, fingerprint, migrated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (entity_key) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint, migrated_at = EXCLUDED.migrated_at`,
		entityKey, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to save fingerprint for %s: %w", entityKey, err)
	}
	return nil
}
