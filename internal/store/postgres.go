package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"retroboard/api/internal/cards"
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

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) InsertBoard(ctx context.Context, board Board) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert board: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO boards (id, name, state, card_limit_per_user, reaction_limit_per_user, admin_secret_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, board.ID, board.Name, board.State, board.CardLimit, board.ReactionLimit, board.AdminSecretHash); err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	for _, column := range board.Columns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO board_columns (board_id, id, label, sort_order)
			VALUES ($1, $2, $3, $4)
		`, board.ID, column.ID, column.Label, column.SortOrder); err != nil {
			return fmt.Errorf("insert board column: %w", err)
		}
	}
	for _, admin := range board.Admins {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO board_admins (board_id, identity)
			VALUES ($1, $2)
			ON CONFLICT (board_id, identity) DO NOTHING
		`, board.ID, admin); err != nil {
			return fmt.Errorf("insert board admin: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	var board Board
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, state, card_limit_per_user, reaction_limit_per_user, admin_secret_hash, created_at, updated_at
		FROM boards
		WHERE id=$1
	`, boardID).Scan(
		&board.ID,
		&board.Name,
		&board.State,
		&board.CardLimit,
		&board.ReactionLimit,
		&board.AdminSecretHash,
		&board.CreatedAt,
		&board.UpdatedAt,
	)
	if err != nil {
		return Board{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, sort_order
		FROM board_columns
		WHERE board_id=$1
		ORDER BY sort_order ASC, id ASC
	`, boardID)
	if err != nil {
		return Board{}, fmt.Errorf("list board columns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.ID, &column.Label, &column.SortOrder); err != nil {
			return Board{}, fmt.Errorf("scan board column: %w", err)
		}
		board.Columns = append(board.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return Board{}, fmt.Errorf("iterate board columns: %w", err)
	}

	adminRows, err := s.db.QueryContext(ctx, `
		SELECT identity FROM board_admins WHERE board_id=$1 ORDER BY identity ASC
	`, boardID)
	if err != nil {
		return Board{}, fmt.Errorf("list board admins: %w", err)
	}
	defer adminRows.Close()
	for adminRows.Next() {
		var identity string
		if err := adminRows.Scan(&identity); err != nil {
			return Board{}, fmt.Errorf("scan board admin: %w", err)
		}
		board.Admins = append(board.Admins, identity)
	}
	if err := adminRows.Err(); err != nil {
		return Board{}, fmt.Errorf("iterate board admins: %w", err)
	}
	return board, nil
}

func (s *PostgresStore) ListBoards(ctx context.Context) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, state, card_limit_per_user, reaction_limit_per_user, created_at, updated_at
		FROM boards
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		var board Board
		if err := rows.Scan(&board.ID, &board.Name, &board.State, &board.CardLimit, &board.ReactionLimit, &board.CreatedAt, &board.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, board)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetBoardState(ctx context.Context, boardID, state string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards SET state=$2, updated_at=NOW() WHERE id=$1
	`, boardID, state)
	if err != nil {
		return false, fmt.Errorf("set board state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set board state rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) AddBoardAdmin(ctx context.Context, boardID, identity string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_admins (board_id, identity)
		VALUES ($1, $2)
		ON CONFLICT (board_id, identity) DO NOTHING
	`, boardID, identity)
	if err != nil {
		return fmt.Errorf("add board admin: %w", err)
	}
	return nil
}

const cardColumns = `id, board_id, column_id, content, card_type, anonymous, created_by, COALESCE(alias, ''), COALESCE(parent_id, ''), direct_reactions, aggregated_reactions, created_at, updated_at`

func scanCard(scanner interface{ Scan(...any) error }) (Card, error) {
	var card Card
	var cardType string
	err := scanner.Scan(
		&card.ID,
		&card.BoardID,
		&card.ColumnID,
		&card.Content,
		&cardType,
		&card.Anonymous,
		&card.CreatedBy,
		&card.Alias,
		&card.ParentID,
		&card.Direct,
		&card.Aggregate,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return Card{}, err
	}
	card.Type = cards.Type(cardType)
	return card, nil
}

func (s *PostgresStore) InsertCard(ctx context.Context, card Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, board_id, column_id, content, card_type, anonymous, created_by, alias)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`, card.ID, card.BoardID, card.ColumnID, card.Content, string(card.Type), card.Anonymous, card.CreatedBy, card.Alias)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (Card, error) {
	card, err := scanCard(s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id=$1`, cardID))
	if err != nil {
		return Card{}, err
	}
	if card.Type == cards.TypeAction {
		linked, err := s.listActionLinks(ctx, card.ID)
		if err != nil {
			return Card{}, err
		}
		card.Linked = linked
	}
	return card, nil
}

func (s *PostgresStore) listActionLinks(ctx context.Context, actionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT feedback_id FROM action_links WHERE action_id=$1 ORDER BY created_at ASC, feedback_id ASC
	`, actionID)
	if err != nil {
		return nil, fmt.Errorf("list action links: %w", err)
	}
	defer rows.Close()

	linked := make([]string, 0)
	for rows.Next() {
		var feedbackID string
		if err := rows.Scan(&feedbackID); err != nil {
			return nil, fmt.Errorf("scan action link: %w", err)
		}
		linked = append(linked, feedbackID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action links: %w", err)
	}
	return linked, nil
}

func (s *PostgresStore) ListCards(ctx context.Context, boardID string, filter ListFilter) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE board_id=$1
		  AND ($2='' OR column_id=$2)
		  AND ($3='' OR card_type=$3)
		  AND ($4='' OR created_by=$4)
		ORDER BY created_at ASC, id ASC
	`, boardID, filter.ColumnID, string(filter.Type), filter.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		items = append(items, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}

	links, err := s.boardActionLinks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Type == cards.TypeAction {
			items[i].Linked = links[items[i].ID]
		}
	}
	return items, nil
}

func (s *PostgresStore) boardActionLinks(ctx context.Context, boardID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT al.action_id, al.feedback_id
		FROM action_links al
		JOIN cards c ON c.id = al.action_id
		WHERE c.board_id=$1
		ORDER BY al.created_at ASC, al.feedback_id ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board action links: %w", err)
	}
	defer rows.Close()

	links := make(map[string][]string)
	for rows.Next() {
		var actionID, feedbackID string
		if err := rows.Scan(&actionID, &feedbackID); err != nil {
			return nil, fmt.Errorf("scan board action link: %w", err)
		}
		links[actionID] = append(links[actionID], feedbackID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board action links: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) ListChildren(ctx context.Context, parentID string) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE parent_id=$1 ORDER BY created_at ASC, id ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child card: %w", err)
		}
		items = append(items, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CountByCreatorAndType(ctx context.Context, boardID, creator string, cardType cards.Type) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cards WHERE board_id=$1 AND created_by=$2 AND card_type=$3
	`, boardID, creator, string(cardType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cards by creator: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountsByColumn(ctx context.Context, boardID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_id, COUNT(*)::int FROM cards WHERE board_id=$1 GROUP BY column_id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("count cards by column: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var columnID string
		var count int
		if err := rows.Scan(&columnID, &count); err != nil {
			return nil, fmt.Errorf("scan column count: %w", err)
		}
		counts[columnID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column counts: %w", err)
	}
	return counts, nil
}

// UpdateCardContent applies the new content only when creator still matches,
// in one conditional write. creator="" skips the check (admin override).
func (s *PostgresStore) UpdateCardContent(ctx context.Context, cardID, creator, content string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET content=$3, updated_at=NOW()
		WHERE id=$1 AND ($2='' OR created_by=$2)
	`, cardID, creator, content)
	if err != nil {
		return false, fmt.Errorf("update card content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update card content rows: %w", err)
	}
	return affected > 0, nil
}

// MoveCard moves the card to another column under the same conditional-write
// discipline as UpdateCardContent.
func (s *PostgresStore) MoveCard(ctx context.Context, cardID, creator, columnID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET column_id=$3, updated_at=NOW()
		WHERE id=$1 AND ($2='' OR created_by=$2)
	`, cardID, creator, columnID)
	if err != nil {
		return false, fmt.Errorf("move card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("move card rows: %w", err)
	}
	return affected > 0, nil
}

// LinkParent parents child under parent and folds the child's current direct
// count into the parent's aggregate, in one transaction.
func (s *PostgresStore) LinkParent(ctx context.Context, parentID, childID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link parent: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var childDirect int
	if err := tx.QueryRowContext(ctx, `
		SELECT direct_reactions FROM cards WHERE id=$1 FOR UPDATE
	`, childID).Scan(&childDirect); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards SET parent_id=$2, updated_at=NOW() WHERE id=$1
	`, childID, parentID); err != nil {
		return fmt.Errorf("set parent: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
		UPDATE cards SET aggregated_reactions=aggregated_reactions+$2, updated_at=NOW() WHERE id=$1
	`, parentID, childDirect)
	if err != nil {
		return fmt.Errorf("raise parent aggregate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("raise parent aggregate rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit link parent: %w", err)
	}
	return nil
}

// UnlinkParent clears the child's parent pointer if it actually points at
// parent, and lowers the parent's aggregate by the child's current direct
// count, floored at zero. Returns false when child is not a child of parent.
func (s *PostgresStore) UnlinkParent(ctx context.Context, parentID, childID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin unlink parent: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var childDirect int
	err = tx.QueryRowContext(ctx, `
		SELECT direct_reactions FROM cards WHERE id=$1 AND parent_id=$2 FOR UPDATE
	`, childID, parentID).Scan(&childDirect)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock child for unlink: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards SET parent_id=NULL, updated_at=NOW() WHERE id=$1
	`, childID); err != nil {
		return false, fmt.Errorf("clear parent: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards SET aggregated_reactions=GREATEST(0, aggregated_reactions-$2), updated_at=NOW() WHERE id=$1
	`, parentID, childDirect); err != nil {
		return false, fmt.Errorf("lower parent aggregate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit unlink parent: %w", err)
	}
	return true, nil
}

// AddActionLink has set semantics: linking an already-linked pair is a no-op.
func (s *PostgresStore) AddActionLink(ctx context.Context, actionID, feedbackID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_links (action_id, feedback_id)
		VALUES ($1, $2)
		ON CONFLICT (action_id, feedback_id) DO NOTHING
	`, actionID, feedbackID)
	if err != nil {
		return fmt.Errorf("add action link: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveActionLink(ctx context.Context, actionID, feedbackID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM action_links WHERE action_id=$1 AND feedback_id=$2
	`, actionID, feedbackID)
	if err != nil {
		return fmt.Errorf("remove action link: %w", err)
	}
	return nil
}

// AddReaction records one reaction and bumps the card's counters, cascading
// to the parent's aggregate when the card is a child. One transaction.
func (s *PostgresStore) AddReaction(ctx context.Context, cardID, identity string) (ReactionResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReactionResult{}, fmt.Errorf("begin add reaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result := ReactionResult{CardID: cardID}
	if err := tx.QueryRowContext(ctx, `
		UPDATE cards
		SET direct_reactions=direct_reactions+1, aggregated_reactions=aggregated_reactions+1, updated_at=NOW()
		WHERE id=$1
		RETURNING direct_reactions, aggregated_reactions, COALESCE(parent_id, '')
	`, cardID).Scan(&result.NewDirect, &result.NewAggregate, &result.ParentID); err != nil {
		return ReactionResult{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reactions (card_id, user_identity) VALUES ($1, $2)
	`, cardID, identity); err != nil {
		return ReactionResult{}, fmt.Errorf("insert reaction: %w", err)
	}
	if result.ParentID != "" {
		if err := tx.QueryRowContext(ctx, `
			UPDATE cards SET aggregated_reactions=aggregated_reactions+1, updated_at=NOW()
			WHERE id=$1
			RETURNING aggregated_reactions
		`, result.ParentID).Scan(&result.ParentAggregate); err != nil {
			return ReactionResult{}, fmt.Errorf("raise parent aggregate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ReactionResult{}, fmt.Errorf("commit add reaction: %w", err)
	}
	return result, nil
}

// RemoveReaction removes the user's most recent reaction on the card. The
// second return is false when the user has none to remove.
func (s *PostgresStore) RemoveReaction(ctx context.Context, cardID, identity string) (ReactionResult, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ReactionResult{}, false, fmt.Errorf("begin remove reaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted, err := tx.ExecContext(ctx, `
		DELETE FROM reactions
		WHERE id = (
			SELECT id FROM reactions
			WHERE card_id=$1 AND user_identity=$2
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
	`, cardID, identity)
	if err != nil {
		return ReactionResult{}, false, fmt.Errorf("delete reaction: %w", err)
	}
	affected, err := deleted.RowsAffected()
	if err != nil {
		return ReactionResult{}, false, fmt.Errorf("delete reaction rows: %w", err)
	}
	if affected == 0 {
		return ReactionResult{}, false, nil
	}

	result := ReactionResult{CardID: cardID}
	if err := tx.QueryRowContext(ctx, `
		UPDATE cards
		SET direct_reactions=GREATEST(0, direct_reactions-1),
		    aggregated_reactions=GREATEST(0, aggregated_reactions-1),
		    updated_at=NOW()
		WHERE id=$1
		RETURNING direct_reactions, aggregated_reactions, COALESCE(parent_id, '')
	`, cardID).Scan(&result.NewDirect, &result.NewAggregate, &result.ParentID); err != nil {
		return ReactionResult{}, false, err
	}
	if result.ParentID != "" {
		if err := tx.QueryRowContext(ctx, `
			UPDATE cards SET aggregated_reactions=GREATEST(0, aggregated_reactions-1), updated_at=NOW()
			WHERE id=$1
			RETURNING aggregated_reactions
		`, result.ParentID).Scan(&result.ParentAggregate); err != nil {
			return ReactionResult{}, false, fmt.Errorf("lower parent aggregate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ReactionResult{}, false, fmt.Errorf("commit remove reaction: %w", err)
	}
	return result, true, nil
}

// DeleteCard removes the card, corrects its parent's aggregate, and orphans
// its direct children, all in one transaction. Reactions and action links
// go with the row via ON DELETE CASCADE.
func (s *PostgresStore) DeleteCard(ctx context.Context, cardID string) (DeleteResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("begin delete card: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var result DeleteResult
	var direct int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(parent_id, ''), direct_reactions FROM cards WHERE id=$1 FOR UPDATE
	`, cardID).Scan(&result.ParentID, &direct); err != nil {
		return DeleteResult{}, err
	}
	if result.ParentID != "" {
		if err := tx.QueryRowContext(ctx, `
			UPDATE cards SET aggregated_reactions=GREATEST(0, aggregated_reactions-$2), updated_at=NOW()
			WHERE id=$1
			RETURNING aggregated_reactions
		`, result.ParentID, direct).Scan(&result.ParentAggregate); err != nil {
			return DeleteResult{}, fmt.Errorf("lower parent aggregate: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx, `
		UPDATE cards SET parent_id=NULL, updated_at=NOW() WHERE parent_id=$1 RETURNING id
	`, cardID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("orphan children: %w", err)
	}
	for rows.Next() {
		var childID string
		if err := rows.Scan(&childID); err != nil {
			rows.Close()
			return DeleteResult{}, fmt.Errorf("scan orphaned child: %w", err)
		}
		result.OrphanedIDs = append(result.OrphanedIDs, childID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return DeleteResult{}, fmt.Errorf("iterate orphaned children: %w", err)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id=$1`, cardID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete card: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return DeleteResult{}, fmt.Errorf("commit delete card: %w", err)
	}
	return result, nil
}

// RecomputeAggregates is the repair fallback for aggregate drift: it resets
// every card on the board whose aggregate no longer equals its own direct
// count plus its direct children's, and reports what it fixed.
func (s *PostgresStore) RecomputeAggregates(ctx context.Context, boardID string) ([]AggregateFix, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE cards AS c
		SET aggregated_reactions = c.direct_reactions + COALESCE((
				SELECT SUM(ch.direct_reactions) FROM cards ch WHERE ch.parent_id = c.id
			), 0),
		    updated_at = NOW()
		WHERE c.board_id = $1
		  AND c.aggregated_reactions <> c.direct_reactions + COALESCE((
				SELECT SUM(ch.direct_reactions) FROM cards ch WHERE ch.parent_id = c.id
			), 0)
		RETURNING c.id, c.aggregated_reactions
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("recompute aggregates: %w", err)
	}
	defer rows.Close()

	fixes := make([]AggregateFix, 0)
	for rows.Next() {
		var fix AggregateFix
		if err := rows.Scan(&fix.CardID, &fix.NewAggregate); err != nil {
			return nil, fmt.Errorf("scan aggregate fix: %w", err)
		}
		fixes = append(fixes, fix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate fixes: %w", err)
	}
	return fixes, nil
}
