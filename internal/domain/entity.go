package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceEntity is one record being migrated: its identity on both sides,
// its known final attribute state, and the two raw history streams.
// Immutable input to the reconstruction pipeline.
type SourceEntity struct {
	Key        string    // stable identifier in the source tracker
	TargetID   uuid.UUID // id of the already-created record at the target
	Reporter   string
	CreatedAt  time.Time
	FinalState map[string]string // current attribute values, source vocabulary
	Notes      []RawNote
	Changes    []RawChangeSet
}

// CloneState creates a shallow copy of a state map so snapshots stay
// immutable once recorded.
func CloneState(state map[string]any) map[string]any {
	cloned := make(map[string]any, len(state))
	for k, v := range state {
		cloned[k] = v
	}
	return cloned
}

// StatesEqual compares two snapshot states by canonical value. A persisted
// state comes back from jsonb through encoding/json, which turns integers
// into float64 and timestamps into RFC3339 strings; a freshly computed state
// carries the mapper's int64 and time.Time. Both representations of the same
// value must compare equal or reconciliation never converges to skips.
func StatesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if canonicalValue(av) != canonicalValue(bv) {
			return false
		}
	}
	return true
}

// canonicalValue collapses the representations a value can take on either
// side of JSON storage: numbers compare numerically, timestamps compare as
// UTC instants whether carried as time.Time or as RFC3339 strings.
func canonicalValue(v any) any {
	switch value := v.(type) {
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
			return ts.UTC().Format(time.RFC3339Nano)
		}
		return value
	case int64:
		return float64(value)
	case int:
		return float64(value)
	case float64:
		return value
	default:
		return v
	}
}
