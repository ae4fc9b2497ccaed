package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// CanonicalText flattens the entity's raw history streams into a
// deterministic set of lines. Stream order is part of the canonical form
// because discovery order decides timestamp-collision ordering.
func (e SourceEntity) CanonicalText() []string {
	lines := []string{
		fmt.Sprintf("Key: %s", e.Key),
		fmt.Sprintf("TargetID: %s", e.TargetID),
		fmt.Sprintf("CreatedAt: %s", e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z")),
		"FinalState:",
	}

	for _, field := range sortedKeys(e.FinalState) {
		lines = append(lines, fmt.Sprintf("  %s: %q", field, e.FinalState[field]))
	}

	lines = append(lines, "Changes:")
	for idx, change := range e.Changes {
		lines = append(lines, fmt.Sprintf("  [%d] %s by %q", idx, change.CreatedAt, change.Author))
		for _, item := range change.Items {
			lines = append(lines, fmt.Sprintf("    %s: %q -> %q", item.Field, item.From, item.To))
		}
	}

	lines = append(lines, "Notes:")
	for idx, note := range e.Notes {
		lines = append(lines, fmt.Sprintf("  [%d] %s by %q: %q", idx, note.CreatedAt, note.Author, note.Body))
	}

	return lines
}

// Fingerprint is a stable checksum over the raw history streams, used by the
// change-detection layer to skip entities that have not changed since the
// last migration pass.
func (e SourceEntity) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join(e.CanonicalText(), "\n")))
	return hex.EncodeToString(sum[:])
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
