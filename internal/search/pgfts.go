package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// It reads the generated fts column on cards.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a ranked FTS query over the board's cards using
// plainto_tsquery, with ts_headline for snippets.
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

	where := "c.board_id = $1 AND c.fts @@ plainto_tsquery('english', $2)"
	args := []any{q.BoardID, q.Text}
	argN := 3
	if q.FilterColumnID != "" {
		where += fmt.Sprintf(" AND c.column_id = $%d", argN)
		args = append(args, q.FilterColumnID)
		argN++
	}
	if q.FilterCardType != "" {
		where += fmt.Sprintf(" AND c.card_type = $%d", argN)
		args = append(args, q.FilterCardType)
		argN++
	}

	ctx := context.Background()

	var total int
	countSQL := "SELECT count(*) FROM cards c WHERE " + where
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT c.id, c.board_id, c.column_id, c.card_type,
			ts_headline('english', c.content, plainto_tsquery('english', $2), 'MaxFragments=1,MaxWords=30') AS snippet,
			CASE WHEN c.anonymous THEN '' ELSE COALESCE(c.alias, '') END AS alias
		FROM cards c
		WHERE %s
		ORDER BY ts_rank(c.fts, plainto_tsquery('english', $2)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.BoardID, &r.ColumnID, &r.CardType, &r.Snippet, &r.Alias); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadBoardRecords returns every card on the board as index records, for
// full reindexing into Meilisearch.
func (p *PgFTS) LoadBoardRecords(ctx context.Context, boardID string) ([]CardRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, board_id, column_id, card_type, content,
			CASE WHEN anonymous THEN '' ELSE COALESCE(alias, '') END
		FROM cards
		WHERE board_id = $1
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	defer rows.Close()

	records := make([]CardRecord, 0)
	for rows.Next() {
		var r CardRecord
		if err := rows.Scan(&r.ID, &r.BoardID, &r.ColumnID, &r.CardType, &r.Content, &r.Alias); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return records, nil
}
