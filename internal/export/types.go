// Package export renders project reconciliation reports and prints them to
// PDF with headless Chrome.
package export

import (
	"errors"
	"time"
)

// Request contains parameters for a report export.
type Request struct {
	UserID      string
	ProjectName string
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ReportTodo is one marker row in the rendered report.
type ReportTodo struct {
	Type       string
	Content    string
	FilePath   string
	LineNumber int
}

// ReportResolution is one pending-resolution row in the rendered report.
type ReportResolution struct {
	Type      string
	Content   string
	FilePath  string
	CreatedAt time.Time
}

// ReportData is everything the report template needs.
type ReportData struct {
	ProjectName  string
	GeneratedAt  time.Time
	TotalCount   int
	ScannedFiles int
	LastScanAt   time.Time
	Todos        []ReportTodo
	Pending      []ReportResolution
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are
// unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
