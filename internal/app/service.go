package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"markwatch/api/internal/archive"
	"markwatch/api/internal/auth"
	"markwatch/api/internal/authpw"
	"markwatch/api/internal/config"
	"markwatch/api/internal/export"
	"markwatch/api/internal/reconcile"
	"markwatch/api/internal/search"
	"markwatch/api/internal/store"
	"markwatch/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// SyncInput is the scanner's payload for one scan of one project.
type SyncInput struct {
	ProjectName string                `json:"projectName"`
	Markers     []reconcile.RawMarker `json:"markers"`
}

// ResolveInput carries the user's resolution decisions.
type ResolveInput struct {
	Resolutions []reconcile.ResolveRequest `json:"resolutions"`
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	CreateBatch(context.Context, reconcile.Batch) error
	FindRecentByProject(ctx context.Context, userID, projectName string, limit int) ([]reconcile.Batch, error)
	ListBatchesByUser(context.Context, string) ([]reconcile.Batch, error)
	ListProjects(context.Context, string) ([]store.Project, error)
	Ping(ctx context.Context) error
}

// sessionStore holds refresh sessions. Redis when configured, Postgres
// otherwise; both expire sessions server-side.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	manager  *reconcile.Manager
	accounts *authpw.Service
	search   *search.Service
	exporter *export.Service
	archive  *archive.Service
	now      func() time.Time
}

func New(cfg config.Config, st *store.PostgresStore) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		sessions: st,
		manager:  reconcile.NewManager(st),
		accounts: authpw.NewService(st),
		now:      time.Now,
	}
}

// UseSessionStore swaps the refresh-session backend (Redis).
func (s *Service) UseSessionStore(sessions sessionStore) { s.sessions = sessions }

func (s *Service) UseSearch(svc *search.Service)   { s.search = svc }
func (s *Service) UseExporter(svc *export.Service) { s.exporter = svc }
func (s *Service) UseArchive(svc *archive.Service) { s.archive = svc }

// ── Accounts and sessions ──

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	user, err := s.accounts.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, authpw.SignInRequest{Email: email, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session store may only carry the user ID, so load the full record.
	full, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, full)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ── Sync ingest ──

// Sync ingests one scan: classifies markers, stamps identities, persists the
// batch, diffs against the previous scan of the same project, and opens
// pending resolutions for markers that disappeared.
func (s *Service) Sync(ctx context.Context, userID string, input SyncInput) (map[string]any, error) {
	projectName := strings.TrimSpace(input.ProjectName)
	if projectName == "" {
		return nil, validationError("projectName is required", nil)
	}
	if input.Markers == nil {
		input.Markers = []reconcile.RawMarker{}
	}

	batch := reconcile.Batch{
		UserID:      userID,
		SyncID:      uuid.NewString(),
		SyncedAt:    s.now().UTC(),
		ProjectName: projectName,
		Todos:       reconcile.Identify(userID, projectName, input.Markers),
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}

	s.archivePayload(batch, input)

	recent, err := s.store.FindRecentByProject(ctx, userID, projectName, 2)
	if err != nil {
		return nil, err
	}
	diff, err := reconcile.DiffRecent(recent)
	if err != nil {
		return nil, err
	}

	created := []reconcile.Resolution{}
	if len(recent) >= 2 {
		created, err = s.manager.CreateFromDiff(ctx, recent[1], diff)
		if err != nil {
			return nil, err
		}
	}

	s.indexBatch(batch)
	s.indexResolutions(created)

	return map[string]any{
		"syncId":         batch.SyncID,
		"syncedAt":       batch.SyncedAt,
		"todoCount":      len(batch.Todos),
		"missing":        len(diff.Missing),
		"new":            len(diff.New),
		"persisted":      len(diff.Persisted),
		"newResolutions": len(created),
	}, nil
}

func (s *Service) archivePayload(batch reconcile.Batch, input SyncInput) {
	if s.archive == nil {
		return
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.archive.StorePayload(ctx, batch.UserID, batch.ProjectName, batch.SyncID, payload); err != nil {
			log.Printf("archive sync payload %s: %v", batch.SyncID, err)
		}
	}()
}

func (s *Service) indexBatch(batch reconcile.Batch) {
	if s.search == nil {
		return
	}
	records := make([]search.TodoRecord, 0, len(batch.Todos))
	for _, todo := range batch.Todos {
		records = append(records, search.TodoRecord{
			ID:          todo.ID,
			UserID:      todo.UserID,
			ProjectName: batch.ProjectName,
			Type:        string(todo.Type),
			CustomTag:   todo.CustomTag,
			Content:     todo.Content,
			FilePath:    todo.FilePath,
		})
	}
	s.search.IndexTodos(records)
}

func (s *Service) indexResolutions(records []reconcile.Resolution) {
	if s.search == nil || len(records) == 0 {
		return
	}
	out := make([]search.ResolutionRecord, 0, len(records))
	for _, record := range records {
		out = append(out, search.ResolutionRecord{
			ID:       record.ID,
			UserID:   record.UserID,
			Content:  record.Content,
			FilePath: record.FilePath,
			Reason:   record.Reason,
			Resolved: record.Resolved,
		})
	}
	s.search.IndexResolutions(out)
}

// ── Projects and summaries ──

func (s *Service) Projects(ctx context.Context, userID string) ([]map[string]any, error) {
	projects, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, map[string]any{
			"name":       project.Name,
			"batchCount": project.BatchCount,
			"lastSyncAt": project.LastSyncAt,
		})
	}
	return items, nil
}

// ProjectSummary reports the latest scan of one project. Projects that were
// never synced produce the zero summary with the epoch timestamp.
func (s *Service) ProjectSummary(ctx context.Context, userID, projectName string) (reconcile.Summary, error) {
	recent, err := s.store.FindRecentByProject(ctx, userID, projectName, 1)
	if err != nil {
		return reconcile.Summary{}, err
	}
	return reconcile.Summarize(recent), nil
}

// HistorySummary aggregates every batch the user has ever synced.
func (s *Service) HistorySummary(ctx context.Context, userID string) (reconcile.Summary, error) {
	batches, err := s.store.ListBatchesByUser(ctx, userID)
	if err != nil {
		return reconcile.Summary{}, err
	}
	return reconcile.Summarize(batches), nil
}

// ProjectTodos returns the todos of the latest batch for a project.
func (s *Service) ProjectTodos(ctx context.Context, userID, projectName string) (map[string]any, error) {
	recent, err := s.store.FindRecentByProject(ctx, userID, projectName, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return map[string]any{"todos": []reconcile.Todo{}}, nil
	}
	latest := recent[0]
	return map[string]any{
		"syncId":   latest.SyncID,
		"syncedAt": latest.SyncedAt,
		"todos":    latest.Todos,
	}, nil
}

func (s *Service) ExportProject(ctx context.Context, userID, projectName string) (*export.Result, error) {
	if s.exporter == nil {
		return nil, unavailableError("EXPORT_UNAVAILABLE", "Export service not configured")
	}
	return s.exporter.Export(ctx, export.Request{UserID: userID, ProjectName: projectName})
}

// ── Resolutions ──

func (s *Service) PendingResolutions(ctx context.Context, userID string) ([]reconcile.Resolution, error) {
	return s.manager.Pending(ctx, userID)
}

func (s *Service) ResolvedResolutions(ctx context.Context, userID string) ([]reconcile.Resolution, error) {
	return s.manager.Resolved(ctx, userID)
}

// Resolve applies the user's decisions. Unknown or already-resolved IDs are
// skipped; the applied set comes back for the response.
func (s *Service) Resolve(ctx context.Context, userID string, input ResolveInput) ([]reconcile.Resolution, error) {
	applied, err := s.manager.Apply(ctx, userID, input.Resolutions)
	if err != nil {
		return nil, err
	}
	s.indexResolutions(applied)
	return applied, nil
}

// PurgeResolved drops resolved rows from the current projection.
func (s *Service) PurgeResolved(ctx context.Context) error {
	return s.manager.PurgeCurrent(ctx)
}

// ── Search ──

func (s *Service) Search(userID string, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	q.UserID = userID
	return s.search.Search(q)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
