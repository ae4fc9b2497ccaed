package reconcile

import (
	"fmt"
	"sort"

	"github.com/rpattn/journalize/internal/domain"
)

// BuildVersions assembles the computed journal sequence for one entity:
// the baseline version first, then one version per timeline event, with
// dense version numbers starting at 1 and the author/note carried over
// from the originating event.
func BuildVersions(entity domain.SourceEntity, initial domain.VersionSnapshot, snapshots []domain.VersionSnapshot, intervals []domain.ValidityInterval, timeline domain.ResolvedTimeline) ([]domain.JournalVersion, error) {
	if len(intervals) != len(snapshots)+1 || len(snapshots) != len(timeline) {
		return nil, fmt.Errorf("inconsistent sequence lengths for entity %s: %d intervals, %d snapshots, %d events",
			entity.Key, len(intervals), len(snapshots), len(timeline))
	}

	versions := make([]domain.JournalVersion, 0, len(intervals))
	versions = append(versions, domain.JournalVersion{
		EntityID: entity.TargetID,
		Number:   1,
		Author:   entity.Reporter,
		State:    initial.State,
		Validity: intervals[0],
	})

	for i, event := range timeline {
		versions = append(versions, domain.JournalVersion{
			EntityID: entity.TargetID,
			Number:   int64(i) + 2,
			Author:   event.Author,
			Note:     event.Note,
			State:    snapshots[i].State,
			Validity: intervals[i+1],
		})
	}

	return versions, nil
}

// Plan compares the computed sequence against whatever the target already
// holds and decides update-vs-insert per version.
//
// The target commonly auto-creates a first version when the record itself
// is migrated; the computed version 1 updates that row in place rather than
// inserting a duplicate. Versions beyond the existing ones are inserts with
// numbers continuing densely from the target's maximum. A version identical
// to its existing counterpart produces no write at all, which is what makes
// a rerun against a fully migrated entity a no-op. It also repairs partial
// prior writes: a stray unbounded interval left mid-sequence differs from
// the computed version and turns into an update.
func Plan(computed, existing []domain.JournalVersion) (domain.ReconcilePlan, []string) {
	sorted := make([]domain.JournalVersion, len(existing))
	copy(sorted, existing)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	plan := domain.ReconcilePlan{}
	if len(computed) > 0 {
		plan.EntityID = computed[0].EntityID
	}

	var warnings []string
	if len(sorted) > len(computed) {
		warnings = append(warnings, fmt.Sprintf(
			"target holds %d versions but only %d were computed; surplus versions left untouched",
			len(sorted), len(computed)))
	}

	var lastNumber int64
	for i, version := range computed {
		if i < len(sorted) {
			version.Number = sorted[i].Number
			lastNumber = version.Number
			if version.Equal(sorted[i]) {
				plan.Skipped++
				continue
			}
			plan.Ops = append(plan.Ops, domain.WriteOp{Mode: domain.WriteModeUpdateExisting, Version: version})
			continue
		}

		version.Number = lastNumber + 1
		lastNumber = version.Number
		plan.Ops = append(plan.Ops, domain.WriteOp{Mode: domain.WriteModeInsertNew, Version: version})
	}

	return plan, warnings
}
