package extract

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/domain"
)

type mockSourceClient struct {
	notes   []domain.RawNote
	changes []domain.RawChangeSet
	err     error
}

func (m *mockSourceClient) FetchEvents(_ context.Context, _ string) ([]domain.RawNote, []domain.RawChangeSet, error) {
	return m.notes, m.changes, m.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestExtractChangeOnlyEventsAreKept(t *testing.T) {
	source := &mockSourceClient{
		changes: []domain.RawChangeSet{{
			CreatedAt: "2024-01-01T10:00:00Z",
			Author:    "workflow",
			Items:     []domain.RawChange{{Field: "Status", From: "Open", To: "Closed"}},
		}},
	}

	result, err := NewExtractor(source, quietLogger()).Extract(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected 1 event from a change-only stream, got %d", len(result.Events))
	}

	event := result.Events[0]
	if event.Kind != domain.EventKindFieldChange {
		t.Errorf("unexpected kind %s", event.Kind)
	}
	if event.Note != "" {
		t.Errorf("change-only event should carry no note, got %q", event.Note)
	}
	if len(event.Deltas) != 1 || event.Deltas[0].Field != "Status" || event.Deltas[0].New != "Closed" {
		t.Errorf("unexpected deltas %+v", event.Deltas)
	}
}

func TestExtractInterleavesStreamsInDiscoveryOrder(t *testing.T) {
	source := &mockSourceClient{
		notes: []domain.RawNote{
			{CreatedAt: "2024-01-01T10:00:00Z", Author: "bob", Body: "looks done"},
		},
		changes: []domain.RawChangeSet{{
			CreatedAt: "2024-01-01T10:00:00Z",
			Author:    "alice",
			Items:     []domain.RawChange{{Field: "Status", From: "Open", To: "Closed"}},
		}},
	}

	result, err := NewExtractor(source, quietLogger()).Extract(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.Events))
	}
	if result.Events[0].Kind != domain.EventKindFieldChange || result.Events[1].Kind != domain.EventKindNote {
		t.Error("discovery order must list change sets before notes")
	}
}

func TestExtractDropsUnparsableTimestamps(t *testing.T) {
	source := &mockSourceClient{
		notes: []domain.RawNote{
			{CreatedAt: "not a timestamp", Author: "bob", Body: "lost"},
			{CreatedAt: "2024-01-01T10:00:00Z", Author: "bob", Body: "kept"},
		},
	}

	result, err := NewExtractor(source, quietLogger()).Extract(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Note != "kept" {
		t.Fatalf("expected only the parsable note, got %+v", result.Events)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning for the dropped note, got %v", result.Warnings)
	}
}

func TestExtractEmptyStreamsIsNotAnError(t *testing.T) {
	result, err := NewExtractor(&mockSourceClient{}, quietLogger()).Extract(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("empty streams must not error, got %v", err)
	}
	if len(result.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(result.Events))
	}
}

func TestExtractSourceFailure(t *testing.T) {
	source := &mockSourceClient{err: errors.New("connection refused")}

	_, err := NewExtractor(source, quietLogger()).Extract(context.Background(), "TRK-1")
	if err == nil {
		t.Fatal("expected extraction error")
	}
	var extractionErr *domain.ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("expected ExtractionError, got %T", err)
	}
	if extractionErr.EntityKey != "TRK-1" {
		t.Errorf("unexpected entity key %q", extractionErr.EntityKey)
	}
}
