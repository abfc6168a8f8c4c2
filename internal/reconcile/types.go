// Package reconcile implements the todo reconciliation engine: content-derived
// marker identity, batch-to-batch diffing, and the resolution lifecycle for
// markers that disappear between scans.
package reconcile

import "time"

// RawMarker is a single comment marker as produced by a scanner, before
// classification. Type is free text at this stage.
type RawMarker struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	FilePath   string `json:"filePath"`
	LineNumber int    `json:"lineNumber"`
}

// MarkerType is one of the predefined marker kinds, or TypeOther.
type MarkerType string

const (
	TypeTodo     MarkerType = "TODO"
	TypeFixme    MarkerType = "FIXME"
	TypeHack     MarkerType = "HACK"
	TypeBug      MarkerType = "BUG"
	TypeNote     MarkerType = "NOTE"
	TypeXXX      MarkerType = "XXX"
	TypeOther    MarkerType = "OTHER"
	TypeOptimize MarkerType = "OPTIMIZE"
)

// Marker is a RawMarker with its type resolved to the predefined set or to
// TypeOther with a CustomTag. A marker never carries both a predefined type
// and a custom tag.
type Marker struct {
	Type       MarkerType `json:"type"`
	CustomTag  string     `json:"customTag,omitempty"`
	Content    string     `json:"content"`
	FilePath   string     `json:"filePath"`
	LineNumber int        `json:"lineNumber"`
}

// Todo is an identified marker: a Marker plus its stable content-derived ID
// and ownership context.
type Todo struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Type       MarkerType `json:"type"`
	CustomTag  string     `json:"customTag,omitempty"`
	Content    string     `json:"content"`
	FilePath   string     `json:"filePath"`
	LineNumber int        `json:"lineNumber"`
}

// Batch is one complete scan's worth of todos for one project. Batches are
// immutable once created; each scan appends a new batch.
type Batch struct {
	UserID      string    `json:"userId"`
	SyncID      string    `json:"syncId"`
	SyncedAt    time.Time `json:"syncedAt"`
	ProjectName string    `json:"projectName"`
	Todos       []Todo    `json:"todos"`
}

// Resolution tracks why a previously-seen marker disappeared. It is created
// pending (Resolved=false) and transitions exactly once to resolved with a
// user-supplied reason.
type Resolution struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Type       MarkerType `json:"type"`
	CustomTag  string     `json:"customTag,omitempty"`
	Content    string     `json:"content"`
	FilePath   string     `json:"filePath"`
	LineNumber int        `json:"lineNumber"`
	SyncID     string     `json:"syncId"`
	CreatedAt  time.Time  `json:"createdAt"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// ResolveRequest is a user decision for one pending resolution.
type ResolveRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// DiffResult classifies the todos of two consecutive batches.
type DiffResult struct {
	Missing   []Todo `json:"missing"`
	New       []Todo `json:"new"`
	Persisted []Todo `json:"persisted"`
}

// Summary aggregates one or more batches for reporting.
type Summary struct {
	TotalCount   int       `json:"totalCount"`
	LastScanAt   time.Time `json:"lastScanAt"`
	ScannedFiles int       `json:"scannedFiles"`
}
