package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/journalize/internal/domain"
)

// journalRepository implements JournalRepository over Postgres. Versions
// are stored as jsonb state plus a tstzrange validity; the schema carries
// an exclusion constraint on overlapping ranges per entity, so a write the
// engine should never have produced fails loudly as an IntervalConflict.
type journalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a new journal repository.
func NewJournalRepository(pool *pgxpool.Pool) JournalRepository {
	return &journalRepository{pool: pool}
}

// ListVersions returns all persisted versions for an entity in version order.
func (r *journalRepository) ListVersions(ctx context.Context, entityID uuid.UUID) ([]domain.JournalVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT version, author, note, state, lower(validity), upper(validity)
		FROM journal_versions
		WHERE entity_id = $1
		ORDER BY version`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for entity %s: %w", entityID, err)
	}
	defer rows.Close()

	var versions []domain.JournalVersion
	for rows.Next() {
		var (
			version   domain.JournalVersion
			stateJSON []byte
			lower     time.Time
			upper     *time.Time
		)
		if err := rows.Scan(&version.Number, &version.Author, &version.Note, &stateJSON, &lower, &upper); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %w", err)
		}
		if err := json.Unmarshal(stateJSON, &version.State); err != nil {
			return nil, fmt.Errorf("failed to decode state for version %d: %w", version.Number, err)
		}
		version.EntityID = entityID
		version.Validity = domain.ValidityInterval{Start: lower, End: upper}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read version rows: %w", err)
	}
	return versions, nil
}

// WriteVersion performs one planned write, classifying any rejection into a
// structured WriteError.
func (r *journalRepository) WriteVersion(ctx context.Context, op domain.WriteOp) error {
	stateJSON, err := json.Marshal(op.Version.State)
	if err != nil {
		return &domain.WriteError{
			Kind:     domain.WriteErrorValidationRejected,
			EntityID: op.Version.EntityID,
			Version:  op.Version.Number,
			Message:  "state not serializable",
			Err:      err,
		}
	}

	var end any
	if op.Version.Validity.End != nil {
		end = *op.Version.Validity.End
	}

	switch op.Mode {
	case domain.WriteModeInsertNew:
		_, err = r.pool.Exec(ctx, `
			INSERT INTO journal_versions (entity_id, version, author, note, state, validity)
			VALUES ($1, $2, $3, $4, $5, tstzrange($6, $7, '[)'))`,
			op.Version.EntityID, op.Version.Number, op.Version.Author, op.Version.Note,
			stateJSON, op.Version.Validity.Start, end)
	case domain.WriteModeUpdateExisting:
		var tag pgconn.CommandTag
		tag, err = r.pool.Exec(ctx, `
			UPDATE journal_versions
			SET author = $3, note = $4, state = $5, validity = tstzrange($6, $7, '[)')
			WHERE entity_id = $1 AND version = $2`,
			op.Version.EntityID, op.Version.Number, op.Version.Author, op.Version.Note,
			stateJSON, op.Version.Validity.Start, end)
		if err == nil && tag.RowsAffected() == 0 {
			return &domain.WriteError{
				Kind:     domain.WriteErrorNotFound,
				EntityID: op.Version.EntityID,
				Version:  op.Version.Number,
				Message:  "version to update does not exist",
			}
		}
	default:
		return &domain.WriteError{
			Kind:     domain.WriteErrorValidationRejected,
			EntityID: op.Version.EntityID,
			Version:  op.Version.Number,
			Message:  fmt.Sprintf("unknown write mode %q", op.Mode),
		}
	}

	if err != nil {
		return classifyWriteError(op, err)
	}
	return nil
}

// classifyWriteError maps Postgres failures onto the write error taxonomy.
func classifyWriteError(op domain.WriteOp, err error) error {
	writeErr := &domain.WriteError{
		EntityID: op.Version.EntityID,
		Version:  op.Version.Number,
		Err:      err,
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == "23P01":
		writeErr.Kind = domain.WriteErrorIntervalConflict
		writeErr.Message = "validity interval overlaps an existing version"
	case errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23":
		writeErr.Kind = domain.WriteErrorValidationRejected
		writeErr.Message = pgErr.Message
	case errors.Is(err, pgx.ErrNoRows):
		writeErr.Kind = domain.WriteErrorNotFound
		writeErr.Message = "target row not found"
	default:
		// Network errors, timeouts, pool exhaustion: worth retrying.
		writeErr.Kind = domain.WriteErrorTransientFailure
		writeErr.Message = err.Error()
	}
	return writeErr
}
