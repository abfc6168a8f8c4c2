package reconcile

import (
	"context"
	"time"
)

// Store is the persistence boundary for resolution records. The engine never
// catches or masks storage failures; they propagate unchanged to the caller.
//
// The dedup invariant (at most one pending resolution per id per user) is
// ultimately enforced by the store's conditional writes: CreateResolutions
// must skip records whose (user, id) already has a pending row, and
// MarkResolved must only transition rows that are still pending.
type Store interface {
	CreateResolutions(ctx context.Context, records []Resolution) ([]Resolution, error)
	FindPendingByUser(ctx context.Context, userID string) ([]Resolution, error)
	FindResolvedByUser(ctx context.Context, userID string) ([]Resolution, error)
	MarkResolved(ctx context.Context, userID, id, reason string, resolvedAt time.Time) (Resolution, bool, error)
	CreateCurrent(ctx context.Context, records []Resolution) error
	DeleteResolvedCurrent(ctx context.Context) error
}

// Manager owns the resolution lifecycle: pending records are created from
// diff results and transition exactly once to resolved on a user decision.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager creates a resolution manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// CreateFromDiff turns the missing todos of a diff into pending resolution
// records. Todos that already have a pending record for this user are skipped,
// so invoking it twice on the same diff never produces duplicates. New records
// carry the previous batch's sync ID: the last batch the marker was known to
// exist in. The pending lookup and the insert are an explicit read-modify-write;
// the store's conditional insert closes the race between concurrent callers.
func (m *Manager) CreateFromDiff(ctx context.Context, previous Batch, diff DiffResult) ([]Resolution, error) {
	if len(diff.Missing) == 0 {
		return []Resolution{}, nil
	}

	pending, err := m.store.FindPendingByUser(ctx, previous.UserID)
	if err != nil {
		return nil, err
	}
	pendingIDs := make(map[string]struct{}, len(pending))
	for _, r := range pending {
		pendingIDs[r.ID] = struct{}{}
	}

	now := m.now().UTC()
	records := make([]Resolution, 0, len(diff.Missing))
	for _, t := range diff.Missing {
		if _, exists := pendingIDs[t.ID]; exists {
			continue
		}
		records = append(records, Resolution{
			ID:         t.ID,
			UserID:     previous.UserID,
			Type:       t.Type,
			CustomTag:  t.CustomTag,
			Content:    t.Content,
			FilePath:   t.FilePath,
			LineNumber: t.LineNumber,
			SyncID:     previous.SyncID,
			CreatedAt:  now,
		})
	}
	if len(records) == 0 {
		return []Resolution{}, nil
	}
	return m.store.CreateResolutions(ctx, records)
}

// Apply transitions pending resolutions to resolved with the user's stated
// reasons. Requests whose ID has no pending record are silently dropped; the
// record may have been resolved concurrently or never existed. The returned
// slice holds only the records actually transitioned, which are also written
// to the current projection for downstream cleanup.
func (m *Manager) Apply(ctx context.Context, userID string, requests []ResolveRequest) ([]Resolution, error) {
	applied := make([]Resolution, 0, len(requests))
	now := m.now().UTC()
	for _, req := range requests {
		record, ok, err := m.store.MarkResolved(ctx, userID, req.ID, req.Reason, now)
		if err != nil {
			// Each transition commits individually, so records resolved
			// before the failure are no longer pending and a retry cannot
			// pick them up. They must reach the projection now.
			if len(applied) > 0 {
				if cerr := m.store.CreateCurrent(ctx, applied); cerr != nil {
					return nil, cerr
				}
			}
			return nil, err
		}
		if !ok {
			continue
		}
		applied = append(applied, record)
	}
	if len(applied) > 0 {
		if err := m.store.CreateCurrent(ctx, applied); err != nil {
			return nil, err
		}
	}
	return applied, nil
}

// Pending returns the user's unresolved records.
func (m *Manager) Pending(ctx context.Context, userID string) ([]Resolution, error) {
	return m.store.FindPendingByUser(ctx, userID)
}

// Resolved returns the user's resolved records.
func (m *Manager) Resolved(ctx context.Context, userID string) ([]Resolution, error) {
	return m.store.FindResolvedByUser(ctx, userID)
}

// PurgeCurrent clears the resolved-this-cycle projection.
func (m *Manager) PurgeCurrent(ctx context.Context) error {
	return m.store.DeleteResolvedCurrent(ctx)
}
