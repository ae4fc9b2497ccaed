package domain

import "time"

// EntityState tracks one entity through the migration pipeline.
type EntityState string

const (
	EntityStatePending           EntityState = "pending"
	EntityStateExtracting        EntityState = "extracting"
	EntityStateMerging           EntityState = "merging"
	EntityStateSnapshotting      EntityState = "snapshotting"
	EntityStateReconciling       EntityState = "reconciling"
	EntityStateWriting           EntityState = "writing"
	EntityStateComplete          EntityState = "complete"
	EntityStatePartiallyComplete EntityState = "partially_complete"
	EntityStateFailed            EntityState = "failed"
	EntityStateSkipped           EntityState = "skipped"
)

// Terminal reports whether the pipeline is done with the entity.
func (s EntityState) Terminal() bool {
	switch s {
	case EntityStateComplete, EntityStatePartiallyComplete, EntityStateFailed, EntityStateSkipped:
		return true
	}
	return false
}

// VersionFailure records one version the target rejected.
type VersionFailure struct {
	Version int64          `json:"version"`
	Kind    WriteErrorKind `json:"kind"`
	Message string         `json:"message"`
}

// EntityReport is the per-entity migration outcome. Partial failure is
// always inspectable per version, never collapsed into a single flag.
type EntityReport struct {
	EntityKey         string           `json:"entityKey"`
	State             EntityState      `json:"state"`
	VersionsAttempted int              `json:"versionsAttempted"`
	VersionsSucceeded int              `json:"versionsSucceeded"`
	VersionsSkipped   int              `json:"versionsSkipped"`
	VersionsFailed    []VersionFailure `json:"versionsFailed,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// Succeeded reports whether every attempted version reached the target.
func (r EntityReport) Succeeded() bool {
	return len(r.VersionsFailed) == 0 && r.State != EntityStateFailed
}

// RunReport aggregates one migration pass.
type RunReport struct {
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Entities   []EntityReport `json:"entities"`
}

// StateCounts tallies entities per terminal state.
func (r RunReport) StateCounts() map[EntityState]int {
	counts := make(map[EntityState]int)
	for _, entity := range r.Entities {
		counts[entity.State]++
	}
	return counts
}
