// Package sourcefile reads a tracker export (CSV files or a single XLSX
// workbook) and serves it through the source collaborator interface. The
// export carries three tables: entities with their final attribute state,
// changelog rows, and note rows.
package sourcefile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/domain"
	"github.com/rpattn/journalize/internal/mapping"
)

// ErrUnknownEntity is returned when events are requested for a key the
// export does not contain.
var ErrUnknownEntity = errors.New("unknown entity key")

// reserved entity columns; every other column becomes a final-state field.
var entityColumns = map[string]bool{
	"key":        true,
	"target_id":  true,
	"reporter":   true,
	"created_at": true,
}

// Store holds one loaded export. Read-only after Load, safe for concurrent
// FetchEvents calls from the worker pool.
type Store struct {
	entities []domain.SourceEntity
	notes    map[string][]domain.RawNote
	changes  map[string][]domain.RawChangeSet
}

// Load reads an export from path: either a directory containing
// entities.csv, changes.csv and notes.csv, or a single .xlsx workbook with
// sheets of the same names.
func Load(path string, logger *logrus.Logger) (*Store, error) {
	log := logger.WithField("component", "sourcefile")

	var (
		tables map[string]table
		err    error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		tables, err = readWorkbook(path)
	} else {
		tables, err = readDirectory(path)
	}
	if err != nil {
		return nil, err
	}

	store := &Store{
		notes:   make(map[string][]domain.RawNote),
		changes: make(map[string][]domain.RawChangeSet),
	}

	if err := store.loadEntities(tables["entities"]); err != nil {
		return nil, err
	}
	store.loadChanges(tables["changes"])
	store.loadNotes(tables["notes"])

	log.WithFields(logrus.Fields{
		"entities": len(store.entities),
	}).Info("tracker export loaded")

	return store, nil
}

// Entities returns every entity in the export, in file order.
func (s *Store) Entities() []domain.SourceEntity {
	return s.entities
}

// FetchEvents implements the source collaborator: both raw streams for one
// entity, in discovery order.
func (s *Store) FetchEvents(_ context.Context, entityKey string) ([]domain.RawNote, []domain.RawChangeSet, error) {
	found := false
	for _, entity := range s.entities {
		if entity.Key == entityKey {
			found = true
			break
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityKey)
	}
	return s.notes[entityKey], s.changes[entityKey], nil
}

func (s *Store) loadEntities(t table) error {
	if len(t.headers) == 0 {
		return errors.New("entities table is missing or has no header row")
	}

	for rowIdx, row := range t.rows {
		values := t.rowMap(row)

		key := strings.TrimSpace(values["key"])
		if key == "" {
			return fmt.Errorf("entities row %d has no key", rowIdx+2)
		}

		targetID, err := uuid.Parse(strings.TrimSpace(values["target_id"]))
		if err != nil {
			return fmt.Errorf("entities row %d has invalid target_id: %w", rowIdx+2, err)
		}

		createdAt, err := mapping.ParseTimestamp(values["created_at"])
		if err != nil {
			return fmt.Errorf("entities row %d has invalid created_at: %w", rowIdx+2, err)
		}

		finalState := make(map[string]string)
		for header, value := range values {
			if entityColumns[header] {
				continue
			}
			if strings.TrimSpace(value) == "" {
				continue
			}
			finalState[header] = strings.TrimSpace(value)
		}

		s.entities = append(s.entities, domain.SourceEntity{
			Key:        key,
			TargetID:   targetID,
			Reporter:   strings.TrimSpace(values["reporter"]),
			CreatedAt:  createdAt,
			FinalState: finalState,
		})
	}

	return nil
}

// loadChanges groups consecutive rows sharing entity, timestamp and author
// into one change set, preserving file order within and across sets.
func (s *Store) loadChanges(t table) {
	type setKey struct {
		entity, createdAt, author string
	}

	var (
		current    *domain.RawChangeSet
		currentKey setKey
		currentFor string
	)

	flush := func() {
		if current != nil {
			s.changes[currentFor] = append(s.changes[currentFor], *current)
			current = nil
		}
	}

	for _, row := range t.rows {
		values := t.rowMap(row)
		entityKey := strings.TrimSpace(values["entity_key"])
		if entityKey == "" {
			continue
		}

		key := setKey{
			entity:    entityKey,
			createdAt: strings.TrimSpace(values["created_at"]),
			author:    strings.TrimSpace(values["author"]),
		}
		if current == nil || key != currentKey {
			flush()
			current = &domain.RawChangeSet{
				CreatedAt: key.createdAt,
				Author:    key.author,
			}
			currentKey = key
			currentFor = entityKey
		}

		current.Items = append(current.Items, domain.RawChange{
			Field: strings.TrimSpace(values["field"]),
			From:  values["from"],
			To:    values["to"],
		})
	}
	flush()
}

func (s *Store) loadNotes(t table) {
	for _, row := range t.rows {
		values := t.rowMap(row)
		entityKey := strings.TrimSpace(values["entity_key"])
		if entityKey == "" {
			continue
		}
		s.notes[entityKey] = append(s.notes[entityKey], domain.RawNote{
			CreatedAt: strings.TrimSpace(values["created_at"]),
			Author:    strings.TrimSpace(values["author"]),
			Body:      values["body"],
		})
	}
}

func readDirectory(dir string) (map[string]table, error) {
	tables := make(map[string]table)
	for _, name := range []string{"entities", "changes", "notes"} {
		path := filepath.Join(dir, name+".csv")
		payload, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) && name != "entities" {
				tables[name] = table{}
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		t, err := parseCSV(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		tables[name] = t
	}
	return tables, nil
}
