package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"markwatch/api/internal/reconcile"
)

// ErrProjectNotFound indicates the project has no synced batches to report on.
var ErrProjectNotFound = errors.New("project has no batches")

// DataStore defines the interface for data access
type DataStore interface {
	FindRecentByProject(ctx context.Context, userID, projectName string, limit int) ([]reconcile.Batch, error)
	FindPendingByProject(ctx context.Context, userID, projectName string) ([]reconcile.Resolution, error)
}

// Service generates project reconciliation reports.
type Service struct {
	store DataStore
	now   func() time.Time
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Export renders the latest state of a project as a PDF report.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	batches, err := s.store.FindRecentByProject(ctx, req.UserID, req.ProjectName, 1)
	if err != nil {
		return nil, fmt.Errorf("load latest batch: %w", err)
	}
	if len(batches) == 0 {
		return nil, ErrProjectNotFound
	}
	latest := batches[0]

	pending, err := s.store.FindPendingByProject(ctx, req.UserID, req.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("load pending resolutions: %w", err)
	}

	summary := reconcile.Summarize([]reconcile.Batch{latest})
	data := ReportData{
		ProjectName:  req.ProjectName,
		GeneratedAt:  s.now().UTC(),
		TotalCount:   summary.TotalCount,
		ScannedFiles: summary.ScannedFiles,
		LastScanAt:   summary.LastScanAt,
	}
	for _, todo := range latest.Todos {
		data.Todos = append(data.Todos, ReportTodo{
			Type:       displayType(todo.Type, todo.CustomTag),
			Content:    todo.Content,
			FilePath:   todo.FilePath,
			LineNumber: todo.LineNumber,
		})
	}
	for _, record := range pending {
		data.Pending = append(data.Pending, ReportResolution{
			Type:      displayType(record.Type, record.CustomTag),
			Content:   record.Content,
			FilePath:  record.FilePath,
			CreatedAt: record.CreatedAt,
		})
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, err
	}
	return exportPDF(html, req.ProjectName)
}

// displayType prefers the custom tag over the catch-all type bucket.
func displayType(markerType reconcile.MarkerType, customTag string) string {
	if markerType == reconcile.TypeOther && customTag != "" {
		return customTag
	}
	return string(markerType)
}
