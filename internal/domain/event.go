package domain

import "time"

// EventKind distinguishes the two source history streams.
type EventKind string

const (
	EventKindNote        EventKind = "note"
	EventKindFieldChange EventKind = "field_change"
)

// RawNote is a free-text comment as exposed by the source tracker.
type RawNote struct {
	CreatedAt string
	Author    string
	Body      string
}

// RawChange is a single field transition inside a changelog entry,
// expressed in the source system's field vocabulary.
type RawChange struct {
	Field string
	From  string
	To    string
}

// RawChangeSet is one changelog entry: every field transition recorded
// at the same instant by the same author.
type RawChangeSet struct {
	CreatedAt string
	Author    string
	Items     []RawChange
}

// FieldDelta is a normalized field transition carried by an Event.
type FieldDelta struct {
	Field string
	Old   string
	New   string
}

// Event is one historical occurrence on an entity, normalized from either
// source stream. Field-change events may carry no note text; they still
// produce a journal version.
type Event struct {
	Timestamp time.Time
	Author    string
	Kind      EventKind
	Note      string
	Deltas    []FieldDelta
}

// ResolvedEvent is an Event with its collision-free effective timestamp.
type ResolvedEvent struct {
	Event
	EffectiveAt time.Time
}

// ResolvedTimeline is an ordered event sequence whose effective timestamps
// are strictly increasing while preserving the original relative order.
type ResolvedTimeline []ResolvedEvent
