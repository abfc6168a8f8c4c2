package reconcile

import "time"

// Summarize aggregates batches into report counts. LastScanAt is the Unix
// epoch when no batches are given. Works the same whether the input is a
// single batch, a project's recent batches, or a user's entire history.
func Summarize(batches []Batch) Summary {
	summary := Summary{LastScanAt: time.Unix(0, 0).UTC()}
	files := make(map[string]struct{})
	for _, batch := range batches {
		summary.TotalCount += len(batch.Todos)
		if batch.SyncedAt.After(summary.LastScanAt) {
			summary.LastScanAt = batch.SyncedAt
		}
		for _, t := range batch.Todos {
			files[t.FilePath] = struct{}{}
		}
	}
	summary.ScannedFiles = len(files)
	return summary
}
