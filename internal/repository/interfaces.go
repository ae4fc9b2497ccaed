package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/journalize/internal/domain"
)

// JournalRepository defines the target-side operations the engine needs:
// reading what already exists for an entity and writing single versions.
// Each write is one atomic unit; no multi-version transactions are assumed.
type JournalRepository interface {
	ListVersions(ctx context.Context, entityID uuid.UUID) ([]domain.JournalVersion, error)
	WriteVersion(ctx context.Context, op domain.WriteOp) error
}

// MigrationStateRepository is the change-detection cache: the fingerprint
// of each entity's raw history as of its last fully successful migration.
type MigrationStateRepository interface {
	Fingerprint(ctx context.Context, entityKey string) (string, error)
	SaveFingerprint(ctx context.Context, entityKey, fingerprint string) error
}
