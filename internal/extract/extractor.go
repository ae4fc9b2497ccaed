package extract

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/domain"
	"github.com/rpattn/journalize/internal/mapping"
)

// SourceClient exposes the source tracker's two raw history streams for one
// entity. Implementations are expected to be safe for concurrent use.
type SourceClient interface {
	FetchEvents(ctx context.Context, entityKey string) ([]domain.RawNote, []domain.RawChangeSet, error)
}

// Extractor normalizes both raw streams into the common Event shape.
type Extractor struct {
	source SourceClient
	logger *logrus.Entry
}

// NewExtractor creates an extractor over the given source collaborator.
func NewExtractor(source SourceClient, logger *logrus.Logger) *Extractor {
	return &Extractor{
		source: source,
		logger: logger.WithField("component", "extract"),
	}
}

// Result carries the normalized events plus the raw streams they came from.
// The raw streams feed the change-detection fingerprint.
type Result struct {
	Events   []domain.Event
	Notes    []domain.RawNote
	Changes  []domain.RawChangeSet
	Warnings []string
}

// Extract fetches and normalizes the history of one entity. Every change
// set yields an Event even when no note accompanies it; dropping change-only
// events discards the bulk of real history. Events whose timestamp cannot
// be parsed are dropped with a warning. Empty streams are not an error: the
// entity simply keeps only its initial version.
func (e *Extractor) Extract(ctx context.Context, entityKey string) (Result, error) {
	notes, changes, err := e.source.FetchEvents(ctx, entityKey)
	if err != nil {
		return Result{}, &domain.ExtractionError{EntityKey: entityKey, Err: err}
	}

	result := Result{
		Notes:   notes,
		Changes: changes,
		Events:  make([]domain.Event, 0, len(notes)+len(changes)),
	}

	// Discovery order decides how timestamp collisions resolve later:
	// change sets first, then notes, each in source order.
	for idx, change := range changes {
		ts, err := mapping.ParseTimestamp(change.CreatedAt)
		if err != nil {
			warning := fmt.Sprintf("change set %d dropped: unparsable timestamp %q", idx, change.CreatedAt)
			result.Warnings = append(result.Warnings, warning)
			e.logger.WithFields(logrus.Fields{"entity": entityKey, "index": idx}).Warn(warning)
			continue
		}

		deltas := make([]domain.FieldDelta, 0, len(change.Items))
		for _, item := range change.Items {
			deltas = append(deltas, domain.FieldDelta{Field: item.Field, Old: item.From, New: item.To})
		}

		result.Events = append(result.Events, domain.Event{
			Timestamp: ts,
			Author:    change.Author,
			Kind:      domain.EventKindFieldChange,
			Deltas:    deltas,
		})
	}

	for idx, note := range notes {
		ts, err := mapping.ParseTimestamp(note.CreatedAt)
		if err != nil {
			warning := fmt.Sprintf("note %d dropped: unparsable timestamp %q", idx, note.CreatedAt)
			result.Warnings = append(result.Warnings, warning)
			e.logger.WithFields(logrus.Fields{"entity": entityKey, "index": idx}).Warn(warning)
			continue
		}

		result.Events = append(result.Events, domain.Event{
			Timestamp: ts,
			Author:    note.Author,
			Kind:      domain.EventKindNote,
			Note:      note.Body,
		})
	}

	return result, nil
}
