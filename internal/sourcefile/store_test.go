package sourcefile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeExport(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

const entityID = "a3bb189e-8bf9-3888-9912-ace4e6543002"

func TestLoadDirectoryExport(t *testing.T) {
	dir := writeExport(t, map[string]string{
		"entities.csv": "key,target_id,reporter,created_at,Status,Assignee\n" +
			"TRK-1," + entityID + ",reporter,2024-01-01T00:00:00Z,closed,carol\n",
		"changes.csv": "entity_key,created_at,author,field,from,to\n" +
			"TRK-1,2024-01-01T00:01:40Z,alice,status,open,closed\n",
		"notes.csv": "entity_key,created_at,author,body\n" +
			"TRK-1,2024-01-01T00:02:30Z,bob,done\n",
	})

	store, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entities := store.Entities()
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	entity := entities[0]
	if entity.Key != "TRK-1" || entity.Reporter != "reporter" {
		t.Errorf("entity identity wrong: %+v", entity)
	}
	if entity.TargetID != uuid.MustParse(entityID) {
		t.Errorf("target id wrong: %s", entity.TargetID)
	}
	if entity.FinalState["status"] != "closed" || entity.FinalState["assignee"] != "carol" {
		t.Errorf("final state wrong: %v", entity.FinalState)
	}
	if _, ok := entity.FinalState["key"]; ok {
		t.Error("reserved columns must not leak into the final state")
	}

	notes, changes, err := store.FetchEvents(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 1 || notes[0].Body != "done" {
		t.Errorf("notes wrong: %+v", notes)
	}
	if len(changes) != 1 || changes[0].Items[0].To != "closed" {
		t.Errorf("changes wrong: %+v", changes)
	}
}

func TestLoadGroupsConsecutiveChangeRows(t *testing.T) {
	dir := writeExport(t, map[string]string{
		"entities.csv": "key,target_id,reporter,created_at,status\n" +
			"TRK-1," + entityID + ",reporter,2024-01-01T00:00:00Z,closed\n",
		"changes.csv": "entity_key,created_at,author,field,from,to\n" +
			"TRK-1,2024-01-01T00:01:40Z,alice,status,open,closed\n" +
			"TRK-1,2024-01-01T00:01:40Z,alice,assignee,,carol\n" +
			"TRK-1,2024-01-01T00:03:00Z,alice,status,closed,open\n",
	})

	store, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, changes, err := store.FetchEvents(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 change sets, got %d", len(changes))
	}
	if len(changes[0].Items) != 2 {
		t.Errorf("rows sharing timestamp and author must form one set, got %+v", changes[0])
	}
	if len(changes[1].Items) != 1 || changes[1].Items[0].To != "open" {
		t.Errorf("later change must open a new set, got %+v", changes[1])
	}
}

func TestLoadMissingEventFilesMeansEmptyStreams(t *testing.T) {
	dir := writeExport(t, map[string]string{
		"entities.csv": "key,target_id,reporter,created_at,status\n" +
			"TRK-1," + entityID + ",reporter,2024-01-01T00:00:00Z,open\n",
	})

	store, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("missing changes/notes files must not fail the load: %v", err)
	}

	notes, changes, err := store.FetchEvents(context.Background(), "TRK-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 0 || len(changes) != 0 {
		t.Errorf("expected empty streams, got %d notes, %d changes", len(notes), len(changes))
	}
}

func TestLoadRejectsMissingEntitiesTable(t *testing.T) {
	dir := writeExport(t, map[string]string{
		"notes.csv": "entity_key,created_at,author,body\n",
	})
	if _, err := Load(dir, quietLogger()); err == nil {
		t.Fatal("expected error for a missing entities table")
	}
}

func TestLoadRejectsInvalidTargetID(t *testing.T) {
	dir := writeExport(t, map[string]string{
		"entities.csv": "key,target_id,reporter,created_at,status\n" +
			"TRK-1,not-a-uuid,reporter,2024-01-01T00:00:00Z,open\n",
	})
	if _, err := Load(dir, quietLogger()); err == nil {
		t.Fatal("expected error for an invalid target_id")
	}
}

func TestFetchEventsUnknownEntity(t *testing.T) {
	dir := writeExport(t, map[string]string{
		"entities.csv": "key,target_id,reporter,created_at,status\n" +
			"TRK-1," + entityID + ",reporter,2024-01-01T00:00:00Z,open\n",
	})

	store, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := store.FetchEvents(context.Background(), "TRK-404"); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestLoadHandlesByteOrderMarkAndMessyHeaders(t *testing.T) {
	dir := writeExport(t, map[string]string{
		"entities.csv": "\xEF\xBB\xBFKey,Target ID,Reporter,Created At,Story Points\n" +
			"TRK-1," + entityID + ",reporter,2024-01-01T00:00:00Z,5\n",
	})

	store, err := Load(dir, quietLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entity := store.Entities()[0]
	if entity.Key != "TRK-1" {
		t.Errorf("BOM broke the key column: %q", entity.Key)
	}
	if entity.FinalState["story_points"] != "5" {
		t.Errorf("header sanitization failed: %v", entity.FinalState)
	}
}
