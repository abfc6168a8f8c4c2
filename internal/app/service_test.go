package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"markwatch/api/internal/authpw"
	"markwatch/api/internal/config"
	"markwatch/api/internal/reconcile"
	"markwatch/api/internal/store"
)

type fakeStore struct {
	getUserByIDFn           func(context.Context, string) (store.User, error)
	getUserByEmailFn        func(context.Context, string) (store.User, error)
	createUserFn            func(context.Context, store.User) (store.User, error)
	createBatchFn           func(context.Context, reconcile.Batch) error
	findRecentByProjectFn   func(ctx context.Context, userID, projectName string, limit int) ([]reconcile.Batch, error)
	listBatchesByUserFn     func(context.Context, string) ([]reconcile.Batch, error)
	listProjectsFn          func(context.Context, string) ([]store.Project, error)
	createResolutionsFn     func(context.Context, []reconcile.Resolution) ([]reconcile.Resolution, error)
	findPendingByUserFn     func(context.Context, string) ([]reconcile.Resolution, error)
	findResolvedByUserFn    func(context.Context, string) ([]reconcile.Resolution, error)
	markResolvedFn          func(ctx context.Context, userID, id, reason string, resolvedAt time.Time) (reconcile.Resolution, bool, error)
	lookupRefreshSessionFn  func(context.Context, string) (store.User, error)
	revokeRefreshSessionFn  func(context.Context, string) error
	saveRefreshSessionFn    func(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	deleteResolvedCurrentFn func(context.Context) error
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "Tester"}, nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	user.ID = "usr_test"
	return user, nil
}
func (f *fakeStore) RevokeAccessToken(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) IsAccessTokenRevoked(context.Context, string) (bool, error) { return false, nil }
func (f *fakeStore) CreateBatch(ctx context.Context, batch reconcile.Batch) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, batch)
	}
	return nil
}
func (f *fakeStore) FindRecentByProject(ctx context.Context, userID, projectName string, limit int) ([]reconcile.Batch, error) {
	if f.findRecentByProjectFn != nil {
		return f.findRecentByProjectFn(ctx, userID, projectName, limit)
	}
	return []reconcile.Batch{}, nil
}
func (f *fakeStore) ListBatchesByUser(ctx context.Context, userID string) ([]reconcile.Batch, error) {
	if f.listBatchesByUserFn != nil {
		return f.listBatchesByUserFn(ctx, userID)
	}
	return []reconcile.Batch{}, nil
}
func (f *fakeStore) ListProjects(ctx context.Context, userID string) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx, userID)
	}
	return []store.Project{}, nil
}
func (f *fakeStore) CreateResolutions(ctx context.Context, records []reconcile.Resolution) ([]reconcile.Resolution, error) {
	if f.createResolutionsFn != nil {
		return f.createResolutionsFn(ctx, records)
	}
	return records, nil
}
func (f *fakeStore) FindPendingByUser(ctx context.Context, userID string) ([]reconcile.Resolution, error) {
	if f.findPendingByUserFn != nil {
		return f.findPendingByUserFn(ctx, userID)
	}
	return []reconcile.Resolution{}, nil
}
func (f *fakeStore) FindResolvedByUser(ctx context.Context, userID string) ([]reconcile.Resolution, error) {
	if f.findResolvedByUserFn != nil {
		return f.findResolvedByUserFn(ctx, userID)
	}
	return []reconcile.Resolution{}, nil
}
func (f *fakeStore) MarkResolved(ctx context.Context, userID, id, reason string, resolvedAt time.Time) (reconcile.Resolution, bool, error) {
	if f.markResolvedFn != nil {
		return f.markResolvedFn(ctx, userID, id, reason, resolvedAt)
	}
	return reconcile.Resolution{}, false, nil
}
func (f *fakeStore) CreateCurrent(context.Context, []reconcile.Resolution) error { return nil }
func (f *fakeStore) DeleteResolvedCurrent(ctx context.Context) error {
	if f.deleteResolvedCurrentFn != nil {
		return f.deleteResolvedCurrentFn(ctx)
	}
	return nil
}
func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if f.saveRefreshSessionFn != nil {
		return f.saveRefreshSessionFn(ctx, tokenHash, userID, expiresAt)
	}
	return nil
}
func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, tokenHash)
	}
	return nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg: config.Config{
			TokenSecret: "test-secret",
			AccessTTL:   15 * time.Minute,
			RefreshTTL:  30 * 24 * time.Hour,
		},
		store:    fs,
		sessions: fs,
		manager:  reconcile.NewManager(fs),
		accounts: authpw.NewService(fs),
		now:      time.Now,
	}
}

func rawMarker(markerType, content, path string, line int) reconcile.RawMarker {
	return reconcile.RawMarker{Type: markerType, Content: content, FilePath: path, LineNumber: line}
}

func TestSyncRequiresProjectName(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Sync(context.Background(), "usr_1", SyncInput{ProjectName: "  "})
	var domainErr *DomainError
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !asDomainError(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected 422 domain error, got %v", err)
	}
}

func asDomainError(err error, target **DomainError) bool {
	de, ok := err.(*DomainError)
	if ok {
		*target = de
	}
	return ok
}

func TestSyncFirstBatchOpensNoResolutions(t *testing.T) {
	var stored reconcile.Batch
	fs := &fakeStore{
		createBatchFn: func(_ context.Context, batch reconcile.Batch) error {
			stored = batch
			return nil
		},
		findRecentByProjectFn: func(_ context.Context, _, _ string, _ int) ([]reconcile.Batch, error) {
			return []reconcile.Batch{stored}, nil
		},
		createResolutionsFn: func(_ context.Context, records []reconcile.Resolution) ([]reconcile.Resolution, error) {
			t.Fatal("no resolutions should be created on the first sync")
			return records, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.Sync(context.Background(), "usr_1", SyncInput{
		ProjectName: "backend",
		Markers: []reconcile.RawMarker{
			rawMarker("TODO", "add retries", "a.go", 10),
			rawMarker("FIXME", "goroutine leak", "b.go", 20),
		},
	})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if payload["todoCount"] != 2 {
		t.Fatalf("todoCount = %v, want 2", payload["todoCount"])
	}
	if payload["newResolutions"] != 0 {
		t.Fatalf("newResolutions = %v, want 0", payload["newResolutions"])
	}
	if stored.SyncID == "" {
		t.Fatal("expected a generated sync ID")
	}
	if len(stored.Todos) != 2 {
		t.Fatalf("stored %d todos, want 2", len(stored.Todos))
	}
	for _, todo := range stored.Todos {
		if len(todo.ID) != 64 {
			t.Fatalf("todo ID %q is not a sha256 hex digest", todo.ID)
		}
		if todo.UserID != "usr_1" {
			t.Fatalf("todo user = %q, want usr_1", todo.UserID)
		}
	}
}

func TestSyncOpensResolutionsForMissingTodos(t *testing.T) {
	previous := reconcile.Batch{
		UserID:      "usr_1",
		SyncID:      "sync-prev",
		SyncedAt:    time.Now().Add(-time.Hour),
		ProjectName: "backend",
		Todos: []reconcile.Todo{
			{ID: "id-gone", UserID: "usr_1", Type: reconcile.TypeTodo, Content: "remove flag", FilePath: "a.go", LineNumber: 5},
			{ID: "id-kept", UserID: "usr_1", Type: reconcile.TypeTodo, Content: "add retries", FilePath: "b.go", LineNumber: 9},
		},
	}

	var stored reconcile.Batch
	var created []reconcile.Resolution
	fs := &fakeStore{
		createBatchFn: func(_ context.Context, batch reconcile.Batch) error {
			stored = batch
			return nil
		},
		findRecentByProjectFn: func(_ context.Context, _, _ string, _ int) ([]reconcile.Batch, error) {
			latest := stored
			latest.Todos = []reconcile.Todo{{ID: "id-kept", UserID: "usr_1"}}
			return []reconcile.Batch{latest, previous}, nil
		},
		createResolutionsFn: func(_ context.Context, records []reconcile.Resolution) ([]reconcile.Resolution, error) {
			created = records
			return records, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.Sync(context.Background(), "usr_1", SyncInput{ProjectName: "backend"})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if payload["missing"] != 1 || payload["persisted"] != 1 {
		t.Fatalf("diff counts = %v/%v, want 1/1", payload["missing"], payload["persisted"])
	}
	if payload["newResolutions"] != 1 {
		t.Fatalf("newResolutions = %v, want 1", payload["newResolutions"])
	}
	if len(created) != 1 || created[0].ID != "id-gone" {
		t.Fatalf("created resolutions = %+v, want one for id-gone", created)
	}
	if created[0].SyncID != "sync-prev" {
		t.Fatalf("resolution syncId = %q, want the previous batch's sync-prev", created[0].SyncID)
	}
	if created[0].Resolved {
		t.Fatal("new resolutions must start pending")
	}
}

func TestResolveSkipsUnknownIDs(t *testing.T) {
	resolvedIDs := []string{}
	fs := &fakeStore{
		markResolvedFn: func(_ context.Context, _, id, reason string, resolvedAt time.Time) (reconcile.Resolution, bool, error) {
			if id != "id-known" {
				return reconcile.Resolution{}, false, nil
			}
			resolvedIDs = append(resolvedIDs, id)
			return reconcile.Resolution{ID: id, Reason: reason, Resolved: true, ResolvedAt: &resolvedAt}, true, nil
		},
	}
	svc := newTestService(fs)

	applied, err := svc.Resolve(context.Background(), "usr_1", ResolveInput{
		Resolutions: []reconcile.ResolveRequest{
			{ID: "id-known", Reason: "fixed"},
			{ID: "id-missing", Reason: "fixed"},
		},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(applied) != 1 || applied[0].ID != "id-known" {
		t.Fatalf("applied = %+v, want only id-known", applied)
	}
	if len(resolvedIDs) != 1 {
		t.Fatalf("resolved %d records, want 1", len(resolvedIDs))
	}
}

func TestProjectSummaryEmptyProject(t *testing.T) {
	svc := newTestService(&fakeStore{})

	summary, err := svc.ProjectSummary(context.Background(), "usr_1", "ghost")
	if err != nil {
		t.Fatalf("ProjectSummary() error = %v", err)
	}
	if summary.TotalCount != 0 || summary.ScannedFiles != 0 {
		t.Fatalf("summary = %+v, want zero counts", summary)
	}
	if !summary.LastScanAt.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("lastScanAt = %v, want the epoch", summary.LastScanAt)
	}
}

func TestSignUpThenSessionFromToken(t *testing.T) {
	fs := &fakeStore{
		createUserFn: func(_ context.Context, user store.User) (store.User, error) {
			user.ID = "usr_42"
			return user, nil
		},
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			if userID != "usr_42" {
				return store.User{}, sql.ErrNoRows
			}
			return store.User{ID: "usr_42", DisplayName: "Quinn"}, nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.SignUp(context.Background(), "quinn@example.com", "sup3rsecret", "Quinn")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}

	parsed, err := svc.SessionFromToken(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if parsed.UserID != "usr_42" || parsed.UserName != "Quinn" {
		t.Fatalf("parsed session = %+v", parsed)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	revoked := []string{}
	fs := &fakeStore{
		lookupRefreshSessionFn: func(_ context.Context, tokenHash string) (store.User, error) {
			return store.User{ID: "usr_42", DisplayName: "Quinn"}, nil
		},
		revokeRefreshSessionFn: func(_ context.Context, tokenHash string) error {
			revoked = append(revoked, tokenHash)
			return nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.Refresh(context.Background(), "rft_old_token")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(revoked) != 1 {
		t.Fatalf("revoked %d sessions, want the old one revoked", len(revoked))
	}
	if session.RefreshToken == "rft_old_token" {
		t.Fatal("refresh must rotate the refresh token")
	}
}
