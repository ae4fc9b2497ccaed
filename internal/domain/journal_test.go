package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return parsed
}

func TestValidityIntervalEmpty(t *testing.T) {
	start := ts(t, "2024-01-01T00:00:00Z")

	same := start
	if !(ValidityInterval{Start: start, End: &same}).Empty() {
		t.Error("interval with start == end should be empty")
	}

	later := start.Add(time.Second)
	if (ValidityInterval{Start: start, End: &later}).Empty() {
		t.Error("one second interval should not be empty")
	}
	if (ValidityInterval{Start: start}).Empty() {
		t.Error("unbounded interval should not be empty")
	}
}

func TestValidityIntervalEqual(t *testing.T) {
	start := ts(t, "2024-01-01T00:00:00Z")
	end := start.Add(time.Hour)
	endCopy := end

	a := ValidityInterval{Start: start, End: &end}
	b := ValidityInterval{Start: start, End: &endCopy}
	if !a.Equal(b) {
		t.Error("intervals with identical bounds should be equal")
	}

	unbounded := ValidityInterval{Start: start}
	if a.Equal(unbounded) || !unbounded.Equal(ValidityInterval{Start: start}) {
		t.Error("bounded and unbounded intervals must not compare equal")
	}
}

func TestJournalVersionEqual(t *testing.T) {
	entityID := uuid.New()
	start := ts(t, "2024-01-01T00:00:00Z")
	end := start.Add(time.Minute)

	base := JournalVersion{
		EntityID: entityID,
		Number:   2,
		Author:   "alice",
		Note:     "done",
		State:    map[string]any{"status": "closed", "points": int64(3)},
		Validity: ValidityInterval{Start: start, End: &end},
	}

	identical := base
	identical.State = map[string]any{"points": int64(3), "status": "closed"}
	if !base.Equal(identical) {
		t.Error("versions with identical content should be equal")
	}

	changedState := base
	changedState.State = map[string]any{"status": "open", "points": int64(3)}
	if base.Equal(changedState) {
		t.Error("versions with different state should not be equal")
	}

	changedInterval := base
	changedInterval.Validity = ValidityInterval{Start: start}
	if base.Equal(changedInterval) {
		t.Error("versions with different validity should not be equal")
	}
}

func TestStatesEqualAfterStorageRoundTrip(t *testing.T) {
	computed := map[string]any{
		"status":   "closed",
		"points":   int64(5),
		"billable": true,
		"due":      ts(t, "2024-06-01T10:00:00Z"),
	}

	// jsonb storage hands integers back as float64 and timestamps as
	// RFC3339 strings.
	payload, err := json.Marshal(computed)
	if err != nil {
		t.Fatalf("failed to marshal state: %v", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(payload, &stored); err != nil {
		t.Fatalf("failed to unmarshal state: %v", err)
	}
	if _, isFloat := stored["points"].(float64); !isFloat {
		t.Fatalf("expected round-tripped integer to be float64, got %T", stored["points"])
	}

	if !StatesEqual(computed, stored) {
		t.Errorf("state must compare equal to its stored form: %v vs %v", computed, stored)
	}

	changed := map[string]any{
		"status":   "closed",
		"points":   int64(6),
		"billable": true,
		"due":      ts(t, "2024-06-01T10:00:00Z"),
	}
	if StatesEqual(changed, stored) {
		t.Error("different values must not compare equal after the round-trip")
	}
}

func TestStatesEqualWithTimestamps(t *testing.T) {
	utc := ts(t, "2024-06-01T10:00:00Z")
	other := utc.In(time.FixedZone("CET", 3600))

	if !StatesEqual(map[string]any{"due": utc}, map[string]any{"due": other}) {
		t.Error("equal instants in different zones should compare equal")
	}
	if StatesEqual(map[string]any{"due": utc}, map[string]any{"due": utc.Add(time.Second)}) {
		t.Error("different instants should not compare equal")
	}
}

func TestFingerprintTracksStreamContent(t *testing.T) {
	entity := SourceEntity{
		Key:       "TRK-1",
		TargetID:  uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"),
		CreatedAt: ts(t, "2024-01-01T00:00:00Z"),
		FinalState: map[string]string{
			"status": "Closed",
		},
		Notes: []RawNote{{CreatedAt: "2024-01-02T00:00:00Z", Author: "bob", Body: "done"}},
		Changes: []RawChangeSet{{
			CreatedAt: "2024-01-01T12:00:00Z",
			Author:    "alice",
			Items:     []RawChange{{Field: "Status", From: "Open", To: "Closed"}},
		}},
	}

	first := entity.Fingerprint()
	if first != entity.Fingerprint() {
		t.Fatal("fingerprint must be deterministic")
	}

	changed := entity
	changed.Notes = []RawNote{{CreatedAt: "2024-01-02T00:00:00Z", Author: "bob", Body: "done!"}}
	if changed.Fingerprint() == first {
		t.Error("note body change must alter the fingerprint")
	}

	reordered := entity
	reordered.Changes = []RawChangeSet{{
		CreatedAt: "2024-01-01T12:00:00Z",
		Author:    "alice",
		Items:     []RawChange{{Field: "Status", From: "Closed", To: "Open"}},
	}}
	if reordered.Fingerprint() == first {
		t.Error("delta direction change must alter the fingerprint")
	}
}
