package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"markwatch/api/internal/reconcile"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (display_name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, user.DisplayName, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at
		FROM users
		WHERE email = LOWER($1)
	`, strings.TrimSpace(email)).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.display_name, u.email
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// CreateBatch persists an immutable batch and its todos in one transaction.
func (s *PostgresStore) CreateBatch(ctx context.Context, batch reconcile.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO batches (sync_id, user_id, project_name, synced_at)
		VALUES ($1, $2, $3, $4)
	`, batch.SyncID, batch.UserID, batch.ProjectName, batch.SyncedAt); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, t := range batch.Todos {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO todos (sync_id, id, user_id, type, custom_tag, content, file_path, line_number)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, batch.SyncID, t.ID, t.UserID, string(t.Type), t.CustomTag, t.Content, t.FilePath, t.LineNumber); err != nil {
			return fmt.Errorf("insert todo: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// FindRecentByProject returns up to limit batches for a user+project, most
// recently synced first, with their todos loaded.
func (s *PostgresStore) FindRecentByProject(ctx context.Context, userID, projectName string, limit int) ([]reconcile.Batch, error) {
	if limit <= 0 {
		limit = 2
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sync_id, user_id, project_name, synced_at
		FROM batches
		WHERE user_id=$1 AND project_name=$2
		ORDER BY synced_at DESC
		LIMIT $3
	`, userID, projectName, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent batches: %w", err)
	}
	defer rows.Close()

	batches := make([]reconcile.Batch, 0, limit)
	for rows.Next() {
		var batch reconcile.Batch
		if err := rows.Scan(&batch.SyncID, &batch.UserID, &batch.ProjectName, &batch.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batch.Todos = make([]reconcile.Todo, 0)
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	for i := range batches {
		todos, err := s.listTodos(ctx, batches[i].SyncID)
		if err != nil {
			return nil, err
		}
		batches[i].Todos = todos
	}
	return batches, nil
}

// ListBatchesByUser returns every batch a user has ever synced, most recent
// first, with todos loaded. Used for whole-history summaries.
func (s *PostgresStore) ListBatchesByUser(ctx context.Context, userID string) ([]reconcile.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sync_id, user_id, project_name, synced_at
		FROM batches
		WHERE user_id=$1
		ORDER BY synced_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user batches: %w", err)
	}
	defer rows.Close()

	batches := make([]reconcile.Batch, 0)
	for rows.Next() {
		var batch reconcile.Batch
		if err := rows.Scan(&batch.SyncID, &batch.UserID, &batch.ProjectName, &batch.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	for i := range batches {
		todos, err := s.listTodos(ctx, batches[i].SyncID)
		if err != nil {
			return nil, err
		}
		batches[i].Todos = todos
	}
	return batches, nil
}

func (s *PostgresStore) listTodos(ctx context.Context, syncID string) ([]reconcile.Todo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, custom_tag, content, file_path, line_number
		FROM todos
		WHERE sync_id=$1
		ORDER BY file_path ASC, line_number ASC
	`, syncID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]reconcile.Todo, 0)
	for rows.Next() {
		var t reconcile.Todo
		var markerType string
		if err := rows.Scan(&t.ID, &t.UserID, &markerType, &t.CustomTag, &t.Content, &t.FilePath, &t.LineNumber); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		t.Type = reconcile.MarkerType(markerType)
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return todos, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_name, COUNT(*)::int, MAX(synced_at)
		FROM batches
		WHERE user_id=$1
		GROUP BY project_name
		ORDER BY MAX(synced_at) DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		if err := rows.Scan(&item.Name, &item.BatchCount, &item.LastSyncAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

// CreateResolutions inserts pending resolution records, skipping any marker
// that already has a pending row for the user. The partial unique index on
// (user_id, id) WHERE NOT resolved makes the skip race-safe under concurrent
// create-from-diff calls. All inserts run in one transaction so a single
// invocation persists wholly or not at all. Returns the rows actually
// inserted.
func (s *PostgresStore) CreateResolutions(ctx context.Context, records []reconcile.Resolution) ([]reconcile.Resolution, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolutions tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := make([]reconcile.Resolution, 0, len(records))
	for _, r := range records {
		var seq int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO resolutions (id, user_id, type, custom_tag, content, file_path, line_number, sync_id, created_at, resolved)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
			ON CONFLICT (user_id, id) WHERE NOT resolved DO NOTHING
			RETURNING seq
		`, r.ID, r.UserID, string(r.Type), r.CustomTag, r.Content, r.FilePath, r.LineNumber, r.SyncID, r.CreatedAt).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert resolution: %w", err)
		}
		inserted = append(inserted, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolutions: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) FindPendingByUser(ctx context.Context, userID string) ([]reconcile.Resolution, error) {
	return s.findResolutions(ctx, userID, false)
}

// FindPendingByProject returns pending resolutions whose originating batch
// belongs to the named project.
func (s *PostgresStore) FindPendingByProject(ctx context.Context, userID, projectName string) ([]reconcile.Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, r.type, r.custom_tag, r.content, r.file_path, r.line_number,
		       r.sync_id, r.created_at, r.resolved, r.resolved_at, COALESCE(r.reason, '')
		FROM resolutions r
		JOIN batches b ON b.sync_id = r.sync_id
		WHERE r.user_id=$1 AND b.project_name=$2 AND NOT r.resolved
		ORDER BY r.created_at DESC
	`, userID, projectName)
	if err != nil {
		return nil, fmt.Errorf("list project resolutions: %w", err)
	}
	defer rows.Close()

	records := make([]reconcile.Resolution, 0)
	for rows.Next() {
		record, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project resolutions: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) FindResolvedByUser(ctx context.Context, userID string) ([]reconcile.Resolution, error) {
	return s.findResolutions(ctx, userID, true)
}

func (s *PostgresStore) findResolutions(ctx context.Context, userID string, resolved bool) ([]reconcile.Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, custom_tag, content, file_path, line_number, sync_id, created_at, resolved, resolved_at, COALESCE(reason, '')
		FROM resolutions
		WHERE user_id=$1 AND resolved=$2
		ORDER BY created_at DESC
	`, userID, resolved)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	items := make([]reconcile.Resolution, 0)
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}
	return items, nil
}

// MarkResolved transitions a pending record to resolved. The WHERE clause
// guards the one-way transition: a row already resolved never matches, so the
// second return value reports whether anything changed.
func (s *PostgresStore) MarkResolved(ctx context.Context, userID, id, reason string, resolvedAt time.Time) (reconcile.Resolution, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE resolutions
		SET resolved=TRUE, resolved_at=$4, reason=$3
		WHERE user_id=$1 AND id=$2 AND NOT resolved
		RETURNING id, user_id, type, custom_tag, content, file_path, line_number, sync_id, created_at, resolved, resolved_at, COALESCE(reason, '')
	`, userID, id, reason, resolvedAt)

	r, err := scanResolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.Resolution{}, false, nil
	}
	if err != nil {
		return reconcile.Resolution{}, false, err
	}
	return r, true, nil
}

func (s *PostgresStore) CreateCurrent(ctx context.Context, records []reconcile.Resolution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin current tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO current_resolutions (id, user_id, type, custom_tag, content, file_path, line_number, sync_id, resolved, resolved_at, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, r.ID, r.UserID, string(r.Type), r.CustomTag, r.Content, r.FilePath, r.LineNumber, r.SyncID, r.Resolved, r.ResolvedAt, r.Reason); err != nil {
			return fmt.Errorf("insert current resolution: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit current resolutions: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteResolvedCurrent(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM current_resolutions WHERE resolved`)
	if err != nil {
		return fmt.Errorf("delete resolved current: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResolution(row rowScanner) (reconcile.Resolution, error) {
	var r reconcile.Resolution
	var markerType string
	var resolvedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.UserID, &markerType, &r.CustomTag, &r.Content, &r.FilePath, &r.LineNumber, &r.SyncID, &r.CreatedAt, &r.Resolved, &resolvedAt, &r.Reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reconcile.Resolution{}, err
		}
		return reconcile.Resolution{}, fmt.Errorf("scan resolution: %w", err)
	}
	r.Type = reconcile.MarkerType(markerType)
	if resolvedAt.Valid {
		at := resolvedAt.Time
		r.ResolvedAt = &at
	}
	return r, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
