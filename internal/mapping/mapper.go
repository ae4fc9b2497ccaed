package mapping

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FieldType drives coercion of source string values into target values.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
)

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05.000000",
	"2006/01/02",
	"01/02/2006",
}

// FieldSpec declares one tracked target attribute and how source values
// reach it. The set of specs is the static whitelist: attributes outside it
// are never written, deltas for them are skipped.
type FieldSpec struct {
	Target   string            `mapstructure:"target"`
	Type     FieldType         `mapstructure:"type"`
	Required bool              `mapstructure:"required"`
	Values   map[string]string `mapstructure:"values"`
}

// FieldMapper translates the source system's field and value vocabulary
// into the target's. Pure, synchronous lookups; an unmapped result means
// "skip this delta", never an error.
type FieldMapper interface {
	MapField(sourceField string) (string, bool)
	MapValue(targetField string, sourceValue string) (any, bool)
	Required(targetField string) bool
}

// StaticMapper is a whitelist-backed FieldMapper. Source field names are
// matched case-insensitively, the way trackers report them inconsistently.
type StaticMapper struct {
	bySource map[string]FieldSpec
	byTarget map[string]FieldSpec
}

// NewStaticMapper builds a mapper from specs keyed by source field name.
func NewStaticMapper(specs map[string]FieldSpec) *StaticMapper {
	mapper := &StaticMapper{
		bySource: make(map[string]FieldSpec, len(specs)),
		byTarget: make(map[string]FieldSpec, len(specs)),
	}
	for source, spec := range specs {
		if spec.Target == "" {
			spec.Target = normalizeField(source)
		}
		if spec.Type == "" {
			spec.Type = FieldTypeString
		}
		if len(spec.Values) > 0 {
			values := make(map[string]string, len(spec.Values))
			for raw, mapped := range spec.Values {
				values[normalizeValue(raw)] = mapped
			}
			spec.Values = values
		}
		mapper.bySource[normalizeField(source)] = spec
		mapper.byTarget[spec.Target] = spec
	}
	return mapper
}

// MapField returns the target attribute name for a source field, or false
// when the field is not whitelisted.
func (m *StaticMapper) MapField(sourceField string) (string, bool) {
	spec, ok := m.bySource[normalizeField(sourceField)]
	if !ok {
		return "", false
	}
	return spec.Target, true
}

// MapValue translates and coerces one source value for a target attribute.
// A value missing from an enumerated mapping, or one that fails coercion,
// is unmapped. Enumerated values are matched case-insensitively, like field
// names; yaml config keys also arrive lowercased.
func (m *StaticMapper) MapValue(targetField string, sourceValue string) (any, bool) {
	spec, ok := m.byTarget[targetField]
	if !ok {
		return nil, false
	}

	raw := strings.TrimSpace(sourceValue)
	if len(spec.Values) > 0 {
		mapped, found := spec.Values[normalizeValue(raw)]
		if !found {
			return nil, false
		}
		raw = mapped
	}

	coerced, err := coerceValue(spec.Type, raw)
	if err != nil {
		return nil, false
	}
	return coerced, true
}

// Required reports whether the target rejects null/empty for the attribute.
func (m *StaticMapper) Required(targetField string) bool {
	spec, ok := m.byTarget[targetField]
	return ok && spec.Required
}

func normalizeField(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func normalizeValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func coerceValue(fieldType FieldType, raw string) (any, error) {
	switch fieldType {
	case FieldTypeString:
		return raw, nil
	case FieldTypeInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil && math.Mod(f, 1) == 0 {
			return int64(f), nil
		}
		return nil, fmt.Errorf("unable to coerce %q to integer", raw)
	case FieldTypeFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("unable to coerce %q to float", raw)
	case FieldTypeBoolean:
		value := strings.ToLower(raw)
		switch value {
		case "1", "yes", "y":
			return true, nil
		case "0", "no", "n":
			return false, nil
		}
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to boolean", raw)
		}
		return boolVal, nil
	case FieldTypeTimestamp:
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to timestamp: %w", raw, err)
		}
		return ts, nil
	default:
		return raw, nil
	}
}

// ParseTimestamp tries the timestamp layouts trackers commonly emit.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
