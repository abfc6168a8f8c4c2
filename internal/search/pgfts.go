package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a UNION ALL query across todos and resolutions using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Todos are
// deduplicated to their most recent occurrence across batches.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.UserID}
	argN := 3

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultTodo {
		todoWhere := fmt.Sprintf("to_tsvector('english', t.content || ' ' || t.custom_tag) @@ %s AND t.user_id = $2", tsQuery)
		if q.FilterProject != "" {
			todoWhere += fmt.Sprintf(" AND b.project_name = $%d", argN)
			args = append(args, q.FilterProject)
			argN++
		}
		// ORDER BY lives inside the inner query so the outer UNION ALL stays
		// legal; DISTINCT ON keeps only the most recent batch's copy.
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT * FROM (
				SELECT DISTINCT ON (t.id)
					'todo'::text AS type, t.id::text AS id,
					CASE WHEN t.custom_tag <> '' THEN t.custom_tag ELSE t.type END AS title,
					ts_headline('english', t.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
					b.project_name, t.file_path,
					ts_rank(to_tsvector('english', t.content), %s) AS rank
				FROM todos t
				JOIN batches b ON b.sync_id = t.sync_id
				WHERE %s
				ORDER BY t.id, b.synced_at DESC
			) todo_hits`, tsQuery, tsQuery, todoWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultResolution {
		resWhere := fmt.Sprintf("to_tsvector('english', r.content || ' ' || coalesce(r.reason, '')) @@ %s AND r.user_id = $2", tsQuery)
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'resolution'::text AS type, r.id::text,
				coalesce(r.reason, '') AS title,
				ts_headline('english', r.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS project_name, r.file_path,
				ts_rank(to_tsvector('english', r.content || ' ' || coalesce(r.reason, '')), %s) AS rank
			FROM resolutions r
			WHERE %s`, tsQuery, tsQuery, resWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, project_name, file_path
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ProjectName, &r.FilePath); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		r.ID = strings.TrimSpace(r.ID)
		results = append(results, r)
	}
	return results, total, rows.Err()
}
