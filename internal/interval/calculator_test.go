package interval

import (
	"testing"
	"time"

	"github.com/rpattn/journalize/internal/domain"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return parsed
}

func resolvedAt(times ...time.Time) domain.ResolvedTimeline {
	timeline := make(domain.ResolvedTimeline, len(times))
	for i, at := range times {
		timeline[i] = domain.ResolvedEvent{EffectiveAt: at}
	}
	return timeline
}

func TestComputePartitionsTime(t *testing.T) {
	created := ts(t, "2024-01-01T00:00:00Z")
	t1 := ts(t, "2024-01-01T00:01:40Z")
	t2 := ts(t, "2024-01-01T00:02:30Z")

	intervals := Compute(created, resolvedAt(t1, t2))
	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(intervals))
	}

	if !intervals[0].Start.Equal(created) || intervals[0].End == nil || !intervals[0].End.Equal(t1) {
		t.Errorf("interval 0 wrong: %+v", intervals[0])
	}
	if !intervals[1].Start.Equal(t1) || intervals[1].End == nil || !intervals[1].End.Equal(t2) {
		t.Errorf("interval 1 wrong: %+v", intervals[1])
	}
	if !intervals[2].Start.Equal(t2) || !intervals[2].Unbounded() {
		t.Errorf("interval 2 wrong: %+v", intervals[2])
	}

	if err := Validate("TRK-1", intervals); err != nil {
		t.Errorf("computed intervals failed validation: %v", err)
	}
}

func TestComputeNoEvents(t *testing.T) {
	created := ts(t, "2024-01-01T00:00:00Z")

	intervals := Compute(created, nil)
	if len(intervals) != 1 {
		t.Fatalf("expected single interval, got %d", len(intervals))
	}
	if !intervals[0].Start.Equal(created) || !intervals[0].Unbounded() {
		t.Errorf("expected unbounded interval from creation, got %+v", intervals[0])
	}
	if err := Validate("TRK-1", intervals); err != nil {
		t.Errorf("single unbounded interval failed validation: %v", err)
	}
}

func TestValidateRejectsEmptyInterval(t *testing.T) {
	start := ts(t, "2024-01-01T00:00:00Z")
	same := start
	intervals := []domain.ValidityInterval{
		{Start: start, End: &same},
		{Start: same},
	}

	err := Validate("TRK-1", intervals)
	if err == nil {
		t.Fatal("expected empty interval to be rejected")
	}
	if _, ok := err.(*domain.InvariantError); !ok {
		t.Fatalf("expected InvariantError, got %T", err)
	}
}

func TestValidateRejectsGap(t *testing.T) {
	start := ts(t, "2024-01-01T00:00:00Z")
	end := start.Add(time.Minute)
	gapStart := end.Add(time.Second)

	intervals := []domain.ValidityInterval{
		{Start: start, End: &end},
		{Start: gapStart},
	}
	if Validate("TRK-1", intervals) == nil {
		t.Fatal("expected gap to be rejected")
	}
}

func TestValidateRejectsStrayUnbounded(t *testing.T) {
	start := ts(t, "2024-01-01T00:00:00Z")
	later := start.Add(time.Minute)

	intervals := []domain.ValidityInterval{
		{Start: start},
		{Start: later},
	}
	if Validate("TRK-1", intervals) == nil {
		t.Fatal("expected mid-sequence unbounded interval to be rejected")
	}
}

func TestValidateRejectsBoundedTail(t *testing.T) {
	start := ts(t, "2024-01-01T00:00:00Z")
	end := start.Add(time.Minute)

	intervals := []domain.ValidityInterval{
		{Start: start, End: &end},
	}
	if Validate("TRK-1", intervals) == nil {
		t.Fatal("expected bounded final interval to be rejected")
	}
}
