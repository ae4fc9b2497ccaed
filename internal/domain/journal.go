package domain

import (
	"time"

	"github.com/google/uuid"
)

// VersionSnapshot is the complete attribute state of an entity as of and
// including one timeline position, in the target's field vocabulary.
type VersionSnapshot struct {
	State map[string]any
}

// ValidityInterval is the half-open [Start, End) range during which one
// version is the current historical state. A nil End means right-unbounded.
type ValidityInterval struct {
	Start time.Time
	End   *time.Time
}

// Unbounded reports whether the interval has no upper bound.
func (v ValidityInterval) Unbounded() bool {
	return v.End == nil
}

// Empty reports whether the interval covers no time at all.
func (v ValidityInterval) Empty() bool {
	return v.End != nil && !v.Start.Before(*v.End)
}

// Equal compares two intervals at the target's storage resolution.
func (v ValidityInterval) Equal(other ValidityInterval) bool {
	if !v.Start.Equal(other.Start) {
		return false
	}
	if (v.End == nil) != (other.End == nil) {
		return false
	}
	if v.End == nil {
		return true
	}
	return v.End.Equal(*other.End)
}

// JournalVersion is the persisted unit: one full-state snapshot of an entity
// with a dense version number and its validity interval.
type JournalVersion struct {
	EntityID uuid.UUID
	Number   int64
	Author   string
	Note     string
	State    map[string]any
	Validity ValidityInterval
}

// Equal reports whether two versions would persist identically. Used by the
// reconciler to turn already-migrated versions into no-ops.
func (v JournalVersion) Equal(other JournalVersion) bool {
	return v.EntityID == other.EntityID &&
		v.Number == other.Number &&
		v.Author == other.Author &&
		v.Note == other.Note &&
		v.Validity.Equal(other.Validity) &&
		StatesEqual(v.State, other.State)
}

// WriteMode selects how a version reaches the target.
type WriteMode string

const (
	WriteModeUpdateExisting WriteMode = "update_existing"
	WriteModeInsertNew      WriteMode = "insert_new"
)

// WriteOp is one planned write against the target.
type WriteOp struct {
	Mode    WriteMode
	Version JournalVersion
}

// ReconcilePlan partitions a computed version sequence into the writes the
// target still needs. Ops are ordered by version number; skipped versions
// already match the target and produce no write.
type ReconcilePlan struct {
	EntityID uuid.UUID
	Ops      []WriteOp
	Skipped  int
}
