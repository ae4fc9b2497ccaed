package snapshot

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/domain"
	"github.com/rpattn/journalize/internal/mapping"
)

// Builder replays field deltas forward from a reconstructed initial state,
// producing one complete snapshot per timeline position. Replaying forward
// is the load-bearing property: most events carry sparse deltas, and
// starting from the final state instead yields a run of near-identical
// snapshots that erase the entity's real history.
type Builder struct {
	mapper mapping.FieldMapper
	logger *logrus.Entry
}

// NewBuilder creates a builder over the field-mapping collaborator.
func NewBuilder(mapper mapping.FieldMapper, logger *logrus.Logger) *Builder {
	return &Builder{
		mapper: mapper,
		logger: logger.WithField("component", "snapshot"),
	}
}

// DeriveBaseline reconstructs the entity's initial attribute state, in the
// source vocabulary, by walking the delta chain backwards from the known
// final state. Only attributes present in the final state are tracked;
// deltas touching unknown attributes are dropped later during replay.
func DeriveBaseline(entity domain.SourceEntity, timeline domain.ResolvedTimeline) map[string]string {
	baseline := make(map[string]string, len(entity.FinalState))
	for field, value := range entity.FinalState {
		baseline[field] = value
	}

	for i := len(timeline) - 1; i >= 0; i-- {
		event := timeline[i]
		if event.Kind != domain.EventKindFieldChange {
			continue
		}
		for j := len(event.Deltas) - 1; j >= 0; j-- {
			delta := event.Deltas[j]
			if _, tracked := baseline[delta.Field]; !tracked {
				continue
			}
			baseline[delta.Field] = delta.Old
		}
	}

	return baseline
}

// Build produces the baseline snapshot plus one snapshot per event, all in
// the target vocabulary. Skipped deltas (unmapped field or value, empty new
// value on a required attribute, attribute absent from the baseline) are
// reported as warnings, as is a final snapshot that fails to reproduce the
// known final state — the sign of an incomplete delta chain.
func (b *Builder) Build(entity domain.SourceEntity, timeline domain.ResolvedTimeline) (domain.VersionSnapshot, []domain.VersionSnapshot, []string) {
	var warnings []string

	baseline := DeriveBaseline(entity, timeline)

	current := make(map[string]any, len(baseline))
	for field, value := range baseline {
		target, ok := b.mapper.MapField(field)
		if !ok {
			continue
		}
		mapped, ok := b.mapper.MapValue(target, value)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("baseline value %q for %s is unmapped, attribute omitted", value, field))
			continue
		}
		current[target] = mapped
	}
	initial := domain.VersionSnapshot{State: domain.CloneState(current)}

	snapshots := make([]domain.VersionSnapshot, 0, len(timeline))
	for _, event := range timeline {
		for _, delta := range event.Deltas {
			if warning, applied := b.applyDelta(current, baseline, delta); !applied && warning != "" {
				warnings = append(warnings, warning)
				b.logger.WithField("entity", entity.Key).Warn(warning)
			}
		}
		snapshots = append(snapshots, domain.VersionSnapshot{State: domain.CloneState(current)})
	}

	if warning := b.checkFinalState(entity, current); warning != "" {
		warnings = append(warnings, warning)
		b.logger.WithField("entity", entity.Key).Warn(warning)
	}

	return initial, snapshots, warnings
}

// applyDelta mutates current with one field transition, or explains why it
// was skipped.
func (b *Builder) applyDelta(current map[string]any, baseline map[string]string, delta domain.FieldDelta) (string, bool) {
	target, ok := b.mapper.MapField(delta.Field)
	if !ok {
		return fmt.Sprintf("delta for unmapped field %q skipped", delta.Field), false
	}

	if _, tracked := baseline[delta.Field]; !tracked {
		return fmt.Sprintf("delta for field %q absent from baseline dropped", delta.Field), false
	}

	if strings.TrimSpace(delta.New) == "" && b.mapper.Required(target) {
		// Never overwrite a valid value of a required attribute with empty.
		return fmt.Sprintf("empty value for required attribute %q skipped, previous value retained", target), false
	}

	value, ok := b.mapper.MapValue(target, delta.New)
	if !ok {
		return fmt.Sprintf("value %q for attribute %q is unmapped, delta skipped", delta.New, target), false
	}

	current[target] = value
	return "", true
}

// checkFinalState verifies replay correctness: the last snapshot must equal
// the entity's known final state after mapping.
func (b *Builder) checkFinalState(entity domain.SourceEntity, current map[string]any) string {
	expected := make(map[string]any, len(entity.FinalState))
	for field, value := range entity.FinalState {
		target, ok := b.mapper.MapField(field)
		if !ok {
			continue
		}
		mapped, ok := b.mapper.MapValue(target, value)
		if !ok {
			continue
		}
		expected[target] = mapped
	}

	if !domain.StatesEqual(expected, current) {
		return "final snapshot does not reproduce the known final state; delta chain may be incomplete"
	}
	return ""
}
