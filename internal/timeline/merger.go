package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/rpattn/journalize/internal/domain"
)

// DefaultResolution is the smallest increment assumed to survive the
// target's interval storage. Whole seconds are the safe default; anything
// finer must be confirmed against the real target before configuring it.
const DefaultResolution = time.Second

// Resolve orders both event streams into a single timeline with strictly
// increasing effective timestamps.
//
// Events are stable-sorted by source timestamp, so timestamp ties keep
// their discovery order. A colliding event is advanced by the configured
// resolution, clamped so it never reaches the next distinct real timestamp;
// when the gap is too small for full-resolution steps the gap is subdivided
// evenly and a warning is returned, because sub-resolution timestamps may
// be truncated by the target. Every effective timestamp lands strictly
// after createdAt so the baseline version always keeps a non-empty interval.
func Resolve(events []domain.Event, createdAt time.Time, resolution time.Duration) (domain.ResolvedTimeline, []string, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	timeline := make(domain.ResolvedTimeline, 0, len(sorted))
	var warnings []string

	prev := createdAt
	for i, event := range sorted {
		effective := event.Timestamp

		if !effective.After(prev) {
			// Colliding (or pre-creation) timestamp: synthesize one.
			upper, pending := nextDistinct(sorted, i, prev)

			step := resolution
			if !upper.IsZero() {
				gap := upper.Sub(prev)
				if maxStep := gap / time.Duration(pending+1); maxStep < step {
					step = maxStep
					warnings = append(warnings, fmt.Sprintf(
						"%d colliding events at %s squeezed below the configured resolution %s; the target may truncate them",
						pending, event.Timestamp.Format(time.RFC3339), resolution))
				}
			}
			if step <= 0 {
				return nil, warnings, fmt.Errorf(
					"cannot resolve timestamp collision at %s: no room before next real event at %s",
					event.Timestamp.Format(time.RFC3339Nano), upper.Format(time.RFC3339Nano))
			}

			effective = prev.Add(step)
		}

		timeline = append(timeline, domain.ResolvedEvent{Event: event, EffectiveAt: effective})
		prev = effective
	}

	return timeline, warnings, nil
}

// nextDistinct returns the earliest source timestamp after prev among the
// events from index i on, plus how many events before it must be squeezed
// into the gap. A zero time means no later real timestamp bounds the run.
func nextDistinct(sorted []domain.Event, i int, prev time.Time) (time.Time, int) {
	for j := i; j < len(sorted); j++ {
		if sorted[j].Timestamp.After(prev) {
			return sorted[j].Timestamp, j - i
		}
	}
	return time.Time{}, len(sorted) - i
}
