package reconcile

import (
	"testing"
	"time"
)

func batchOf(syncID string, ids ...string) Batch {
	todos := make([]Todo, 0, len(ids))
	for _, id := range ids {
		todos = append(todos, Todo{ID: id, UserID: "u1", Type: TypeTodo, Content: id, FilePath: "f.go"})
	}
	return Batch{UserID: "u1", SyncID: syncID, SyncedAt: time.Now(), ProjectName: "p", Todos: todos}
}

func idsOf(todos []Todo) map[string]struct{} {
	set := make(map[string]struct{}, len(todos))
	for _, t := range todos {
		set[t.ID] = struct{}{}
	}
	return set
}

func TestDiffSimpleDisappearance(t *testing.T) {
	previous := batchOf("s1", "h1", "h2")
	latest := batchOf("s2", "h1")

	result, err := Diff(previous, latest)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.Missing) != 1 || result.Missing[0].ID != "h2" {
		t.Errorf("expected missing [h2], got %+v", result.Missing)
	}
	if len(result.New) != 0 {
		t.Errorf("expected no new todos, got %+v", result.New)
	}
	if len(result.Persisted) != 1 || result.Persisted[0].ID != "h1" {
		t.Errorf("expected persisted [h1], got %+v", result.Persisted)
	}
}

func TestDiffNewTodos(t *testing.T) {
	result, err := Diff(batchOf("s1", "h1"), batchOf("s2", "h1", "h3"))
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.New) != 1 || result.New[0].ID != "h3" {
		t.Errorf("expected new [h3], got %+v", result.New)
	}
}

func TestDiffIdenticalRescans(t *testing.T) {
	previous := batchOf("s1", "h1", "h2", "h3")
	latest := batchOf("s2", "h1", "h2", "h3")

	result, err := Diff(previous, latest)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if len(result.Missing) != 0 || len(result.New) != 0 {
		t.Errorf("identical rescans produced missing=%d new=%d", len(result.Missing), len(result.New))
	}
	if len(result.Persisted) != len(latest.Todos) {
		t.Errorf("expected full persisted set, got %d of %d", len(result.Persisted), len(latest.Todos))
	}
}

// missing ∪ persisted must equal the previous ID set, new ∪ persisted the
// latest ID set, and missing ∩ new must be empty.
func TestDiffCompleteness(t *testing.T) {
	previous := batchOf("s1", "a", "b", "c", "d")
	latest := batchOf("s2", "c", "d", "e", "f")

	result, err := Diff(previous, latest)
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}

	union := func(a, b []Todo) map[string]struct{} {
		set := idsOf(a)
		for id := range idsOf(b) {
			set[id] = struct{}{}
		}
		return set
	}
	equal := func(a, b map[string]struct{}) bool {
		if len(a) != len(b) {
			return false
		}
		for id := range a {
			if _, ok := b[id]; !ok {
				return false
			}
		}
		return true
	}

	if !equal(union(result.Missing, result.Persisted), idsOf(previous.Todos)) {
		t.Error("missing + persisted does not cover the previous batch")
	}
	if !equal(union(result.New, result.Persisted), idsOf(latest.Todos)) {
		t.Error("new + persisted does not cover the latest batch")
	}
	newIDs := idsOf(result.New)
	for id := range idsOf(result.Missing) {
		if _, ok := newIDs[id]; ok {
			t.Errorf("id %s is both missing and new", id)
		}
	}
}

func TestDiffNilTodos(t *testing.T) {
	valid := batchOf("s1", "h1")
	broken := Batch{UserID: "u1", SyncID: "s2", ProjectName: "p"}

	if _, err := Diff(broken, valid); err != ErrInvalidBatch {
		t.Errorf("expected ErrInvalidBatch for nil previous todos, got %v", err)
	}
	if _, err := Diff(valid, broken); err != ErrInvalidBatch {
		t.Errorf("expected ErrInvalidBatch for nil latest todos, got %v", err)
	}
}

func TestDiffEmptyBatches(t *testing.T) {
	result, err := Diff(batchOf("s1"), batchOf("s2"))
	if err != nil {
		t.Fatalf("Diff failed on empty batches: %v", err)
	}
	if len(result.Missing)+len(result.New)+len(result.Persisted) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestDiffRecentInsufficientHistory(t *testing.T) {
	for _, batches := range [][]Batch{nil, {batchOf("s1", "h1")}} {
		result, err := DiffRecent(batches)
		if err != nil {
			t.Fatalf("DiffRecent failed with %d batches: %v", len(batches), err)
		}
		if result.Missing == nil || result.New == nil || result.Persisted == nil {
			t.Error("DiffRecent returned nil slices")
		}
		if len(result.Missing)+len(result.New)+len(result.Persisted) != 0 {
			t.Errorf("expected empty comparison, got %+v", result)
		}
	}
}

func TestDiffRecentUsesTwoMostRecent(t *testing.T) {
	// Ordered most recent first: index 0 is latest, index 1 previous. The
	// older third batch must not participate.
	batches := []Batch{
		batchOf("s3", "h1"),
		batchOf("s2", "h1", "h2"),
		batchOf("s1", "h9"),
	}
	result, err := DiffRecent(batches)
	if err != nil {
		t.Fatalf("DiffRecent failed: %v", err)
	}
	if len(result.Missing) != 1 || result.Missing[0].ID != "h2" {
		t.Errorf("expected missing [h2], got %+v", result.Missing)
	}
}
