// Package history reconstructs catalog state across revisions and turns it
// into a per-commit change log.
package history

import (
	"time"

	"taxhist/internal/backends"
	"taxhist/internal/taxonomy"
)

// RecordVersion is the persisted record schema version.
const RecordVersion = 1

// ChangeKind classifies an entry-level change.
type ChangeKind string

const (
	ChangeAdded      ChangeKind = "added"
	ChangeRemoved    ChangeKind = "removed"
	ChangeDeprecated ChangeKind = "deprecated"
	ChangeModified   ChangeKind = "modified"
)

// kindOrder fixes the ordering of changes within one commit.
var kindOrder = map[ChangeKind]int{
	ChangeAdded:      0,
	ChangeRemoved:    1,
	ChangeDeprecated: 2,
	ChangeModified:   3,
}

// FieldChangeKind classifies a field-level delta.
type FieldChangeKind string

const (
	FieldAdded    FieldChangeKind = "added"
	FieldRemoved  FieldChangeKind = "removed"
	FieldModified FieldChangeKind = "modified"
)

// Field identifiers used in FieldChange.Field.
const (
	FieldDeprecated         = "deprecated"
	FieldReplacement        = "replacement"
	FieldDefinition         = "definition"
	FieldResult             = "result"
	FieldDisciplines        = "disciplines"
	FieldExternalReferences = "externalReferences"
	// FieldParameterPrefix is followed by the parameter name.
	FieldParameterPrefix = "parameter:"
)

// FieldChange is one field-level delta within a modified entry.
type FieldChange struct {
	Field    string          `json:"field"`
	Kind     FieldChangeKind `json:"kind"`
	OldValue interface{}     `json:"oldValue,omitempty"`
	NewValue interface{}     `json:"newValue,omitempty"`
	// Patch holds a textual patch for definition edits.
	Patch string `json:"patch,omitempty"`
}

// TaxonChange is one entry's delta between consecutive snapshots.
type TaxonChange struct {
	Name   string          `json:"name"`
	Kind   ChangeKind      `json:"kind"`
	Old    *taxonomy.Entry `json:"old,omitempty"`
	New    *taxonomy.Entry `json:"new,omitempty"`
	Fields []FieldChange   `json:"fields,omitempty"`
}

// HistoryEntry is one commit's surviving changes.
type HistoryEntry struct {
	Hash    string        `json:"hash"`
	Date    time.Time     `json:"date"`
	Author  string        `json:"author"`
	Message string        `json:"message"`
	Changes []TaxonChange `json:"changes"`
}

// InitialSnapshot records the earliest indexed catalog state.
type InitialSnapshot struct {
	Hash       string    `json:"hash"`
	Date       time.Time `json:"date"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	EntryNames []string  `json:"entryNames"`
}

// Record is the persisted aggregate. Entries are expected newest-first.
type Record struct {
	Version            int              `json:"version"`
	Entries            []HistoryEntry   `json:"entries"`
	Watermark          string           `json:"watermark"`
	InitialCommit      *InitialSnapshot `json:"initialCommit,omitempty"`
	CachedAt           time.Time        `json:"cachedAt"`
	TotalCommits       int              `json:"totalCommits"`
	CommitsWithChanges int              `json:"commitsWithChanges"`
	ProcessingTimeMs   int64            `json:"processingTimeMs"`
}

func newHistoryEntry(c backends.Commit, changes []TaxonChange) HistoryEntry {
	return HistoryEntry{
		Hash:    c.Hash,
		Date:    c.Timestamp,
		Author:  c.Author,
		Message: c.Message,
		Changes: changes,
	}
}

func newInitialSnapshot(c backends.Commit, snap taxonomy.Snapshot) *InitialSnapshot {
	return &InitialSnapshot{
		Hash:       c.Hash,
		Date:       c.Timestamp,
		Author:     c.Author,
		Message:    c.Message,
		EntryNames: snap.Names(),
	}
}
