package interval

import (
	"fmt"
	"time"

	"github.com/rpattn/journalize/internal/domain"
)

// Compute converts a resolved timeline into validity intervals. N events
// yield N+1 intervals: the first covers the baseline version from the
// entity's creation, each event opens the next interval, and the last one
// is right-unbounded. Zero events yield the single unbounded interval
// [createdAt, ∞).
func Compute(createdAt time.Time, timeline domain.ResolvedTimeline) []domain.ValidityInterval {
	starts := make([]time.Time, 0, len(timeline)+1)
	starts = append(starts, createdAt)
	for _, event := range timeline {
		starts = append(starts, event.EffectiveAt)
	}

	intervals := make([]domain.ValidityInterval, len(starts))
	for i := range starts {
		if i == len(starts)-1 {
			intervals[i] = domain.ValidityInterval{Start: starts[i]}
			continue
		}
		end := starts[i+1]
		intervals[i] = domain.ValidityInterval{Start: starts[i], End: &end}
	}
	return intervals
}

// Validate rejects any interval sequence that would corrupt the target's
// history model: empty intervals, gaps, overlaps, or anything other than
// exactly one unbounded interval in the final position. A violation is an
// internal bug and the sequence must never be written.
func Validate(entityKey string, intervals []domain.ValidityInterval) error {
	if len(intervals) == 0 {
		return &domain.InvariantError{EntityKey: entityKey, Reason: "no intervals computed"}
	}

	for i, iv := range intervals {
		if iv.Empty() {
			return &domain.InvariantError{
				EntityKey: entityKey,
				Reason:    fmt.Sprintf("interval %d is empty at %s", i, iv.Start.Format(time.RFC3339Nano)),
			}
		}
		if iv.Unbounded() && i != len(intervals)-1 {
			return &domain.InvariantError{
				EntityKey: entityKey,
				Reason:    fmt.Sprintf("interval %d is unbounded but not last", i),
			}
		}
		if i > 0 {
			prevEnd := intervals[i-1].End
			if prevEnd == nil {
				return &domain.InvariantError{
					EntityKey: entityKey,
					Reason:    fmt.Sprintf("interval %d follows an unbounded interval", i),
				}
			}
			if !prevEnd.Equal(iv.Start) {
				return &domain.InvariantError{
					EntityKey: entityKey,
					Reason: fmt.Sprintf("gap or overlap between interval %d ending %s and interval %d starting %s",
						i-1, prevEnd.Format(time.RFC3339Nano), i, iv.Start.Format(time.RFC3339Nano)),
				}
			}
		}
	}

	if !intervals[len(intervals)-1].Unbounded() {
		return &domain.InvariantError{EntityKey: entityKey, Reason: "final interval is not unbounded"}
	}
	return nil
}
