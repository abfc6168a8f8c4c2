package reconcile

import "errors"

// ErrInvalidBatch indicates a malformed batch input: a batch whose Todos list
// is nil rather than empty.
var ErrInvalidBatch = errors.New("invalid batch: nil todos")

// Diff compares two consecutive batches by ID set. Missing holds todos from
// previous that are absent from latest, New holds todos from latest absent
// from previous, Persisted holds todos from latest present in both.
func Diff(previous, latest Batch) (DiffResult, error) {
	if previous.Todos == nil || latest.Todos == nil {
		return DiffResult{}, ErrInvalidBatch
	}

	previousIDs := make(map[string]struct{}, len(previous.Todos))
	for _, t := range previous.Todos {
		previousIDs[t.ID] = struct{}{}
	}
	latestIDs := make(map[string]struct{}, len(latest.Todos))
	for _, t := range latest.Todos {
		latestIDs[t.ID] = struct{}{}
	}

	result := DiffResult{
		Missing:   make([]Todo, 0),
		New:       make([]Todo, 0),
		Persisted: make([]Todo, 0),
	}
	for _, t := range previous.Todos {
		if _, ok := latestIDs[t.ID]; !ok {
			result.Missing = append(result.Missing, t)
		}
	}
	for _, t := range latest.Todos {
		if _, ok := previousIDs[t.ID]; ok {
			result.Persisted = append(result.Persisted, t)
		} else {
			result.New = append(result.New, t)
		}
	}
	return result, nil
}

// DiffRecent applies the selection policy to a project's batches ordered most
// recent first: index 0 is latest, index 1 is previous. With fewer than two
// batches there is nothing to compare and the result is empty.
func DiffRecent(batches []Batch) (DiffResult, error) {
	if len(batches) < 2 {
		return DiffResult{
			Missing:   make([]Todo, 0),
			New:       make([]Todo, 0),
			Persisted: make([]Todo, 0),
		}, nil
	}
	return Diff(batches[1], batches[0])
}
