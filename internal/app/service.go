package app

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"database/sql"

	"golang.org/x/crypto/bcrypt"

	"retroboard/api/internal/auth"
	"retroboard/api/internal/broadcast"
	"retroboard/api/internal/cards"
	"retroboard/api/internal/config"
	"retroboard/api/internal/export"
	"retroboard/api/internal/quota"
	"retroboard/api/internal/search"
	"retroboard/api/internal/session"
	"retroboard/api/internal/store"
	"retroboard/api/internal/util"
)

// Session is one authenticated participant on one board.
type Session struct {
	Identity  string
	Alias     string
	BoardID   string
	Admin     bool
	ExpiresAt time.Time
}

type CreateBoardInput struct {
	Name          string   `json:"name"`
	Columns       []string `json:"columns"`
	CardLimit     int      `json:"cardLimitPerUser"`
	ReactionLimit int      `json:"reactionLimitPerUser"`
	AdminSecret   string   `json:"adminSecret"`
}

type JoinBoardInput struct {
	Alias        string `json:"alias"`
	AdminSecret  string `json:"adminSecret"`
	ClientSecret string `json:"clientSecret"`
}

type CreateCardInput struct {
	ColumnID  string `json:"columnId"`
	Content   string `json:"content"`
	CardType  string `json:"cardType"`
	Anonymous bool   `json:"anonymous"`
}

type UpdateCardInput struct {
	Content string `json:"content"`
}

type MoveCardInput struct {
	ColumnID string `json:"columnId"`
}

type LinkInput struct {
	TargetID string `json:"targetId"`
}

type CardFilterInput struct {
	ColumnID  string
	CardType  string
	CreatedBy string
}

const maxContentLength = 2000

type dataStore interface {
	InsertBoard(context.Context, store.Board) error
	GetBoard(context.Context, string) (store.Board, error)
	ListBoards(context.Context) ([]store.Board, error)
	SetBoardState(context.Context, string, string) (bool, error)
	AddBoardAdmin(context.Context, string, string) error
	InsertCard(context.Context, store.Card) error
	GetCard(context.Context, string) (store.Card, error)
	ListCards(context.Context, string, store.ListFilter) ([]store.Card, error)
	ListChildren(context.Context, string) ([]store.Card, error)
	CountByCreatorAndType(context.Context, string, string, cards.Type) (int, error)
	CountsByColumn(context.Context, string) (map[string]int, error)
	UpdateCardContent(context.Context, string, string, string) (bool, error)
	MoveCard(context.Context, string, string, string) (bool, error)
	LinkParent(context.Context, string, string) error
	UnlinkParent(context.Context, string, string) (bool, error)
	AddActionLink(context.Context, string, string) error
	RemoveActionLink(context.Context, string, string) error
	AddReaction(context.Context, string, string) (store.ReactionResult, error)
	RemoveReaction(context.Context, string, string) (store.ReactionResult, bool, error)
	DeleteCard(context.Context, string) (store.DeleteResult, error)
	RecomputeAggregates(context.Context, string) ([]store.AggregateFix, error)
	Ping(ctx context.Context) error
}

type presenceStore interface {
	SaveParticipant(context.Context, session.Participant) error
	Heartbeat(context.Context, string, string) (bool, error)
	ListParticipants(context.Context, string) ([]session.Participant, error)
	RemoveParticipant(context.Context, string, string) error
	Ping(ctx context.Context) error
}

type quotaGate interface {
	Reserve(ctx context.Context, boardID, identity, kind string, limit int) (bool, error)
	Release(ctx context.Context, boardID, identity, kind string) error
	Used(ctx context.Context, boardID, identity, kind string) (int, error)
	Sync(ctx context.Context, boardID, identity, kind string, used int) error
}

type Service struct {
	cfg         config.Config
	store       dataStore
	presence    presenceStore
	quota       quotaGate
	broadcaster broadcast.Broadcaster
	searcher    *search.Service
	exporter    *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, presence *session.RedisStore, gate *quota.Gate, broadcaster broadcast.Broadcaster, searcher *search.Service, exporter *export.Service) *Service {
	if broadcaster == nil {
		broadcaster = broadcast.NopBroadcaster{}
	}
	return &Service{
		cfg:         cfg,
		store:       dataStore,
		presence:    presence,
		quota:       gate,
		broadcaster: broadcaster,
		searcher:    searcher,
		exporter:    exporter,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingPresence(ctx context.Context) error {
	return s.presence.Ping(ctx)
}

func (s *Service) emit(boardID, eventType string, payload map[string]any) {
	s.broadcaster.Broadcast(broadcast.Event{Type: eventType, BoardID: boardID, Payload: payload})
}

// storeView adapts the card store to the read-only snapshot the rule table
// walks during validation.
type storeView struct {
	ctx   context.Context
	store dataStore
}

func (v storeView) Card(id string) (cards.Snapshot, bool) {
	card, err := v.store.GetCard(v.ctx, id)
	if err != nil {
		return cards.Snapshot{}, false
	}
	return card.Snapshot(), true
}

// ---- boards ----

func (s *Service) CreateBoard(ctx context.Context, input CreateBoardInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errValidation("name is required")
	}
	if len(input.Columns) == 0 {
		return nil, errValidation("at least one column is required")
	}
	if input.CardLimit < 0 || input.ReactionLimit < 0 {
		return nil, errValidation("limits must not be negative")
	}

	board := store.Board{
		ID:            util.NewID("board"),
		Name:          name,
		State:         "open",
		CardLimit:     input.CardLimit,
		ReactionLimit: input.ReactionLimit,
	}
	for i, label := range input.Columns {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, errValidation("column labels must not be empty")
		}
		board.Columns = append(board.Columns, store.Column{
			ID:        util.NewID("col"),
			Label:     label,
			SortOrder: i,
		})
	}
	if secret := strings.TrimSpace(input.AdminSecret); secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		board.AdminSecretHash = string(hash)
	}

	if err := s.store.InsertBoard(ctx, board); err != nil {
		return nil, err
	}
	return boardPayload(board), nil
}

func (s *Service) GetBoard(ctx context.Context, boardID string) (map[string]any, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, mapStoreError(err, "board")
	}
	return boardPayload(board), nil
}

func (s *Service) ListBoards(ctx context.Context) ([]map[string]any, error) {
	boards, err := s.store.ListBoards(ctx)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(boards))
	for _, board := range boards {
		payload = append(payload, boardPayload(board))
	}
	return payload, nil
}

func (s *Service) CloseBoard(ctx context.Context, sess Session, boardID string) (map[string]any, error) {
	return s.setBoardState(ctx, sess, boardID, "closed")
}

func (s *Service) ReopenBoard(ctx context.Context, sess Session, boardID string) (map[string]any, error) {
	return s.setBoardState(ctx, sess, boardID, "open")
}

func (s *Service) setBoardState(ctx context.Context, sess Session, boardID, state string) (map[string]any, error) {
	if sess.BoardID != boardID {
		return nil, errForbidden()
	}
	if !sess.Admin {
		return nil, errForbidden()
	}
	applied, err := s.store.SetBoardState(ctx, boardID, state)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errNotFound("board")
	}
	s.emit(boardID, "board."+state, map[string]any{"boardId": boardID})
	return map[string]any{"boardId": boardID, "state": state}, nil
}

// JoinBoard admits a participant and issues the session token. ClientSecret
// is a client-held random value; rejoining with the same secret yields the
// same identity, so a participant keeps ownership of their cards across
// sessions. When absent a fresh one is generated and returned.
func (s *Service) JoinBoard(ctx context.Context, boardID string, input JoinBoardInput) (map[string]any, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, mapStoreError(err, "board")
	}

	alias := strings.TrimSpace(input.Alias)
	if alias == "" {
		return nil, errValidation("alias is required")
	}

	clientSecret := strings.TrimSpace(input.ClientSecret)
	generatedSecret := ""
	if clientSecret == "" {
		clientSecret = util.NewID("client")
		generatedSecret = clientSecret
	}
	identity := auth.HashToken(clientSecret)

	admin := false
	if adminSecret := strings.TrimSpace(input.AdminSecret); adminSecret != "" {
		if board.AdminSecretHash == "" {
			return nil, errForbidden()
		}
		if err := bcrypt.CompareHashAndPassword([]byte(board.AdminSecretHash), []byte(adminSecret)); err != nil {
			return nil, errForbidden()
		}
		admin = true
		if err := s.store.AddBoardAdmin(ctx, boardID, identity); err != nil {
			return nil, err
		}
	} else {
		for _, known := range board.Admins {
			if known == identity {
				admin = true
				break
			}
		}
	}

	expiresAt := time.Now().Add(s.cfg.SessionTTL)
	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		Sub:     identity,
		Alias:   alias,
		BoardID: boardID,
		Exp:     expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.presence.SaveParticipant(ctx, session.Participant{
		Identity: identity,
		Alias:    alias,
		BoardID:  boardID,
		Admin:    admin,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"token":     token,
		"identity":  identity,
		"alias":     alias,
		"boardId":   boardID,
		"admin":     admin,
		"expiresAt": expiresAt.UTC(),
	}
	if generatedSecret != "" {
		payload["clientSecret"] = generatedSecret
	}
	return payload, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}
	sess := Session{
		Identity:  claims.Sub,
		Alias:     claims.Alias,
		BoardID:   claims.BoardID,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}
	board, err := s.store.GetBoard(ctx, claims.BoardID)
	if err != nil {
		return Session{}, mapStoreError(err, "board")
	}
	for _, admin := range board.Admins {
		if admin == sess.Identity {
			sess.Admin = true
			break
		}
	}
	return sess, nil
}

func (s *Service) Heartbeat(ctx context.Context, sess Session) (map[string]any, error) {
	alive, err := s.presence.Heartbeat(ctx, sess.BoardID, sess.Identity)
	if err != nil {
		return nil, err
	}
	if !alive {
		// Presence expired but the token is still valid; re-register.
		err = s.presence.SaveParticipant(ctx, session.Participant{
			Identity: sess.Identity,
			Alias:    sess.Alias,
			BoardID:  sess.BoardID,
			Admin:    sess.Admin,
			JoinedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) LeaveBoard(ctx context.Context, sess Session) error {
	return s.presence.RemoveParticipant(ctx, sess.BoardID, sess.Identity)
}

func (s *Service) Participants(ctx context.Context, sess Session) ([]map[string]any, error) {
	participants, err := s.presence.ListParticipants(ctx, sess.BoardID)
	if err != nil {
		return nil, err
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	payload := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		payload = append(payload, map[string]any{
			"identity": p.Identity,
			"alias":    p.Alias,
			"admin":    p.Admin,
			"joinedAt": p.JoinedAt,
		})
	}
	return payload, nil
}

// ---- cards ----

func (s *Service) CreateCard(ctx context.Context, sess Session, input CreateCardInput) (map[string]any, error) {
	board, err := s.openBoard(ctx, sess.BoardID)
	if err != nil {
		return nil, err
	}

	cardType := cards.Type(strings.ToUpper(strings.TrimSpace(input.CardType)))
	if !cardType.Valid() {
		return nil, errValidation("cardType must be FEEDBACK or ACTION")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	if len(content) > maxContentLength {
		return nil, errValidation("content is too long")
	}
	if !boardHasColumn(board, input.ColumnID) {
		return nil, errValidation("unknown column")
	}

	// Feedback creation is quota-gated; the slot is reserved before the
	// insert so two concurrent requests cannot share the last one.
	if cardType == cards.TypeFeedback {
		allowed, err := s.quota.Reserve(ctx, board.ID, sess.Identity, quota.KindCard, board.CardLimit)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errLimitReached("card")
		}
	}

	card := store.Card{
		ID:        util.NewID("card"),
		BoardID:   board.ID,
		ColumnID:  input.ColumnID,
		Content:   content,
		Type:      cardType,
		Anonymous: input.Anonymous,
		CreatedBy: sess.Identity,
		Alias:     sess.Alias,
	}
	if err := s.store.InsertCard(ctx, card); err != nil {
		if cardType == cards.TypeFeedback {
			_ = s.quota.Release(ctx, board.ID, sess.Identity, quota.KindCard)
		}
		return nil, err
	}

	s.indexCard(card)
	payload := cardPayload(card, nil)
	s.emit(board.ID, "card.created", payload)
	return payload, nil
}

func (s *Service) GetCard(ctx context.Context, sess Session, cardID string) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, mapStoreError(err, "card")
	}
	if card.BoardID != sess.BoardID {
		return nil, errNotFound("card")
	}
	children, err := s.store.ListChildren(ctx, card.ID)
	if err != nil {
		return nil, err
	}
	return cardPayload(card, children), nil
}

// GetCards returns the board's cards with children embedded one level deep
// under their parent, plus the total and per-column counts.
func (s *Service) GetCards(ctx context.Context, sess Session, filter CardFilterInput) (map[string]any, error) {
	storeFilter := store.ListFilter{
		ColumnID:  filter.ColumnID,
		CreatedBy: filter.CreatedBy,
	}
	if filter.CardType != "" {
		cardType := cards.Type(strings.ToUpper(filter.CardType))
		if !cardType.Valid() {
			return nil, errValidation("cardType must be FEEDBACK or ACTION")
		}
		storeFilter.Type = cardType
	}

	boardCards, err := s.store.ListCards(ctx, sess.BoardID, storeFilter)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountsByColumn(ctx, sess.BoardID)
	if err != nil {
		return nil, err
	}

	childrenByParent := make(map[string][]store.Card)
	for _, card := range boardCards {
		if card.ParentID != "" {
			childrenByParent[card.ParentID] = append(childrenByParent[card.ParentID], card)
		}
	}

	payload := make([]map[string]any, 0, len(boardCards))
	for _, card := range boardCards {
		if card.ParentID != "" {
			continue
		}
		payload = append(payload, cardPayload(card, childrenByParent[card.ID]))
	}

	return map[string]any{
		"cards":          payload,
		"totalCount":     len(boardCards),
		"countsByColumn": counts,
	}, nil
}

func (s *Service) UpdateCard(ctx context.Context, sess Session, cardID string, input UpdateCardInput) (map[string]any, error) {
	if _, err := s.openBoard(ctx, sess.BoardID); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errValidation("content is required")
	}
	if len(content) > maxContentLength {
		return nil, errValidation("content is too long")
	}

	card, err := s.boardCard(ctx, sess, cardID)
	if err != nil {
		return nil, err
	}

	// Admins bypass the creator condition on the write itself.
	creator := sess.Identity
	if sess.Admin {
		creator = ""
	}
	applied, err := s.store.UpdateCardContent(ctx, cardID, creator, content)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errForbidden()
	}

	card.Content = content
	s.indexCard(card)
	payload := map[string]any{"cardId": cardID, "content": content}
	s.emit(sess.BoardID, "card.updated", payload)
	return payload, nil
}

func (s *Service) MoveCard(ctx context.Context, sess Session, cardID string, input MoveCardInput) (map[string]any, error) {
	board, err := s.openBoard(ctx, sess.BoardID)
	if err != nil {
		return nil, err
	}
	if !boardHasColumn(board, input.ColumnID) {
		return nil, errValidation("unknown column")
	}
	if _, err := s.boardCard(ctx, sess, cardID); err != nil {
		return nil, err
	}

	creator := sess.Identity
	if sess.Admin {
		creator = ""
	}
	applied, err := s.store.MoveCard(ctx, cardID, creator, input.ColumnID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, errForbidden()
	}

	payload := map[string]any{"cardId": cardID, "columnId": input.ColumnID}
	s.emit(sess.BoardID, "card.moved", payload)
	return payload, nil
}

func (s *Service) DeleteCard(ctx context.Context, sess Session, cardID string) (map[string]any, error) {
	board, err := s.store.GetBoard(ctx, sess.BoardID)
	if err != nil {
		return nil, mapStoreError(err, "board")
	}
	// A closed board is read-only for participants; admins may still clean up.
	if board.State == "closed" && !sess.Admin {
		return nil, errBoardClosed()
	}

	card, err := s.boardCard(ctx, sess, cardID)
	if err != nil {
		return nil, err
	}
	if card.CreatedBy != sess.Identity && !sess.Admin {
		return nil, errForbidden()
	}

	result, err := s.store.DeleteCard(ctx, cardID)
	if err != nil {
		return nil, mapStoreError(err, "card")
	}

	if card.Type == cards.TypeFeedback && board.CardLimit > 0 {
		_ = s.quota.Release(ctx, board.ID, card.CreatedBy, quota.KindCard)
	}
	if s.searcher != nil {
		s.searcher.DeleteCard(cardID)
	}

	payload := map[string]any{
		"cardId":      cardID,
		"orphanedIds": result.OrphanedIDs,
	}
	if result.ParentID != "" {
		payload["affectedParent"] = result.ParentID
		payload["newAggregate"] = result.ParentAggregate
	}
	s.emit(sess.BoardID, "card.deleted", payload)
	return payload, nil
}

// LinkCards creates the relationship a legal drop implies: the target
// becomes a child of the source (Feedback on Feedback, with the aggregate
// picking up the child's direct count) or the target is added to the
// source's addressed set (Action on Feedback).
func (s *Service) LinkCards(ctx context.Context, sess Session, sourceID string, input LinkInput) (map[string]any, error) {
	source, target, err := s.linkPair(ctx, sess, sourceID, input.TargetID)
	if err != nil {
		return nil, err
	}

	view := storeView{ctx: ctx, store: s.store}
	if err := cards.ValidateDrop(view, source.ID, cards.Target{Kind: cards.TargetCard, ID: target.ID}); err != nil {
		return nil, ruleToDomain(err)
	}

	kind, ok := cards.Kind(source.Type, target.Type)
	if !ok {
		return nil, ruleToDomain(cards.ErrTypeMismatch)
	}

	switch kind {
	case cards.KindParent:
		if err := s.store.LinkParent(ctx, source.ID, target.ID); err != nil {
			return nil, mapStoreError(err, "card")
		}
	case cards.KindAddresses:
		if err := s.store.AddActionLink(ctx, source.ID, target.ID); err != nil {
			return nil, err
		}
	}

	payload := map[string]any{
		"source": source.ID,
		"target": target.ID,
		"kind":   string(kind),
	}
	s.emit(sess.BoardID, "card.linked", payload)
	return payload, nil
}

func (s *Service) UnlinkCards(ctx context.Context, sess Session, sourceID string, input LinkInput) (map[string]any, error) {
	source, target, err := s.linkPair(ctx, sess, sourceID, input.TargetID)
	if err != nil {
		return nil, err
	}

	kind, ok := cards.Kind(source.Type, target.Type)
	if !ok {
		return nil, ruleToDomain(cards.ErrTypeMismatch)
	}

	switch kind {
	case cards.KindParent:
		applied, err := s.store.UnlinkParent(ctx, source.ID, target.ID)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, errValidation("not a child of source")
		}
	case cards.KindAddresses:
		// Idempotent: removing an absent link is a no-op success.
		if err := s.store.RemoveActionLink(ctx, source.ID, target.ID); err != nil {
			return nil, err
		}
	}

	payload := map[string]any{
		"source": source.ID,
		"target": target.ID,
		"kind":   string(kind),
	}
	s.emit(sess.BoardID, "card.unlinked", payload)
	return payload, nil
}

// linkPair runs the shared preamble of link and unlink: both cards exist,
// the board is open, the caller owns the source or is an admin, and both
// cards live on the caller's board.
func (s *Service) linkPair(ctx context.Context, sess Session, sourceID, targetID string) (store.Card, store.Card, error) {
	var zero store.Card
	if strings.TrimSpace(targetID) == "" {
		return zero, zero, errValidation("targetId is required")
	}

	source, err := s.store.GetCard(ctx, sourceID)
	if err != nil {
		return zero, zero, mapStoreError(err, "card")
	}
	target, err := s.store.GetCard(ctx, targetID)
	if err != nil {
		return zero, zero, mapStoreError(err, "card")
	}

	if _, err := s.openBoard(ctx, source.BoardID); err != nil {
		return zero, zero, err
	}
	if source.CreatedBy != sess.Identity && !sess.Admin {
		return zero, zero, errForbidden()
	}
	if source.BoardID != target.BoardID {
		return zero, zero, errValidation("cards belong to different boards")
	}
	if source.BoardID != sess.BoardID {
		return zero, zero, errNotFound("card")
	}
	return source, target, nil
}

// React adds one reaction by the caller. The card's direct count rises by
// one and, when the card is grouped, the parent's aggregate rises with it.
func (s *Service) React(ctx context.Context, sess Session, cardID string) (map[string]any, error) {
	board, err := s.openBoard(ctx, sess.BoardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.boardCard(ctx, sess, cardID); err != nil {
		return nil, err
	}

	allowed, err := s.quota.Reserve(ctx, board.ID, sess.Identity, quota.KindReaction, board.ReactionLimit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errLimitReached("reaction")
	}

	result, err := s.store.AddReaction(ctx, cardID, sess.Identity)
	if err != nil {
		if board.ReactionLimit > 0 {
			_ = s.quota.Release(ctx, board.ID, sess.Identity, quota.KindReaction)
		}
		return nil, mapStoreError(err, "card")
	}

	payload := reactionPayload(result)
	s.emit(sess.BoardID, "card.reacted", payload)
	return payload, nil
}

func (s *Service) Unreact(ctx context.Context, sess Session, cardID string) (map[string]any, error) {
	board, err := s.openBoard(ctx, sess.BoardID)
	if err != nil {
		return nil, err
	}
	if _, err := s.boardCard(ctx, sess, cardID); err != nil {
		return nil, err
	}

	result, removed, err := s.store.RemoveReaction(ctx, cardID, sess.Identity)
	if err != nil {
		return nil, mapStoreError(err, "card")
	}
	if !removed {
		return nil, errValidation("no reaction to remove")
	}
	if board.ReactionLimit > 0 {
		_ = s.quota.Release(ctx, board.ID, sess.Identity, quota.KindReaction)
	}

	payload := reactionPayload(result)
	s.emit(sess.BoardID, "card.reacted", payload)
	return payload, nil
}

func (s *Service) GetCardQuota(ctx context.Context, sess Session) (map[string]any, error) {
	board, err := s.store.GetBoard(ctx, sess.BoardID)
	if err != nil {
		return nil, mapStoreError(err, "board")
	}

	usedCards, err := s.store.CountByCreatorAndType(ctx, board.ID, sess.Identity, cards.TypeFeedback)
	if err != nil {
		return nil, err
	}
	usedReactions, err := s.quota.Used(ctx, board.ID, sess.Identity, quota.KindReaction)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"cards": map[string]any{
			"used":      usedCards,
			"limit":     board.CardLimit,
			"unlimited": board.CardLimit <= 0,
		},
		"reactions": map[string]any{
			"used":      usedReactions,
			"limit":     board.ReactionLimit,
			"unlimited": board.ReactionLimit <= 0,
		},
	}, nil
}

// ---- search / export / repair ----

func (s *Service) SearchCards(ctx context.Context, sess Session, query search.Query) (search.Response, error) {
	if s.searcher == nil {
		return search.Response{Results: []search.Result{}, Query: query.Text}, nil
	}
	query.BoardID = sess.BoardID
	return s.searcher.Search(query), nil
}

func (s *Service) ExportBoard(ctx context.Context, sess Session, format string, archive bool) (*export.Result, error) {
	if s.exporter == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export service not configured", nil)
	}
	if archive && !sess.Admin {
		return nil, errForbidden()
	}
	result, err := s.exporter.Export(ctx, export.Request{
		BoardID: sess.BoardID,
		Format:  export.Format(format),
		Archive: archive,
	})
	if err != nil {
		switch {
		case errors.Is(err, export.ErrUnsupportedFormat):
			return nil, errValidation("format must be json, markdown, or pdf")
		case errors.Is(err, export.ErrPDFDependencyMissing):
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF rendering is not available", nil)
		case errors.Is(err, export.ErrArchiveUnavailable):
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Archive storage is not configured", nil)
		}
		return nil, err
	}
	return result, nil
}

// RepairBoard recomputes every drifted aggregate from the children's actual
// direct counts and reports parent chains that loop. Admin tooling; the hot
// path never calls this.
func (s *Service) RepairBoard(ctx context.Context, sess Session) (map[string]any, error) {
	if !sess.Admin {
		return nil, errForbidden()
	}

	fixes, err := s.store.RecomputeAggregates(ctx, sess.BoardID)
	if err != nil {
		return nil, err
	}

	boardCards, err := s.store.ListCards(ctx, sess.BoardID, store.ListFilter{})
	if err != nil {
		return nil, err
	}
	loops := findParentLoops(boardCards)

	// Heal card quota counters from the authoritative card rows.
	board, err := s.store.GetBoard(ctx, sess.BoardID)
	if err != nil {
		return nil, mapStoreError(err, "board")
	}
	if board.CardLimit > 0 {
		perCreator := make(map[string]int)
		for _, card := range boardCards {
			if card.Type == cards.TypeFeedback {
				perCreator[card.CreatedBy]++
			}
		}
		for creator, used := range perCreator {
			if err := s.quota.Sync(ctx, sess.BoardID, creator, quota.KindCard, used); err != nil {
				return nil, err
			}
		}
	}

	if s.searcher != nil {
		s.searcher.ReindexBoard(ctx, sess.BoardID)
	}

	fixedPayload := make([]map[string]any, 0, len(fixes))
	for _, fix := range fixes {
		fixedPayload = append(fixedPayload, map[string]any{
			"cardId":       fix.CardID,
			"newAggregate": fix.NewAggregate,
		})
	}
	return map[string]any{
		"aggregatesFixed": fixedPayload,
		"parentLoops":     loops,
	}, nil
}

// findParentLoops reports every card whose ancestor chain revisits a card.
// The validator tolerates these chains; the repair report surfaces them so
// an operator can break the loop by hand.
func findParentLoops(boardCards []store.Card) []string {
	parents := make(map[string]string, len(boardCards))
	for _, card := range boardCards {
		if card.ParentID != "" {
			parents[card.ID] = card.ParentID
		}
	}

	looped := make(map[string]struct{})
	for id := range parents {
		visited := map[string]struct{}{}
		current := id
		for current != "" {
			if _, seen := visited[current]; seen {
				looped[id] = struct{}{}
				break
			}
			visited[current] = struct{}{}
			current = parents[current]
		}
	}

	loops := make([]string, 0, len(looped))
	for id := range looped {
		loops = append(loops, id)
	}
	sort.Strings(loops)
	return loops
}

// ---- helpers ----

func (s *Service) openBoard(ctx context.Context, boardID string) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, mapStoreError(err, "board")
	}
	if board.State == "closed" {
		return store.Board{}, errBoardClosed()
	}
	return board, nil
}

// boardCard loads a card and hides cards from other boards behind NotFound.
func (s *Service) boardCard(ctx context.Context, sess Session, cardID string) (store.Card, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return store.Card{}, mapStoreError(err, "card")
	}
	if card.BoardID != sess.BoardID {
		return store.Card{}, errNotFound("card")
	}
	return card, nil
}

func (s *Service) indexCard(card store.Card) {
	if s.searcher == nil {
		return
	}
	alias := card.Alias
	if card.Anonymous {
		alias = ""
	}
	s.searcher.IndexCard(search.CardRecord{
		ID:       card.ID,
		BoardID:  card.BoardID,
		ColumnID: card.ColumnID,
		CardType: string(card.Type),
		Content:  card.Content,
		Alias:    alias,
	})
}

func boardHasColumn(board store.Board, columnID string) bool {
	for _, column := range board.Columns {
		if column.ID == columnID {
			return true
		}
	}
	return false
}

func boardPayload(board store.Board) map[string]any {
	columns := make([]map[string]any, 0, len(board.Columns))
	for _, column := range board.Columns {
		columns = append(columns, map[string]any{
			"id":        column.ID,
			"label":     column.Label,
			"sortOrder": column.SortOrder,
		})
	}
	return map[string]any{
		"id":                   board.ID,
		"name":                 board.Name,
		"state":                board.State,
		"columns":              columns,
		"cardLimitPerUser":     board.CardLimit,
		"reactionLimitPerUser": board.ReactionLimit,
		"createdAt":            board.CreatedAt,
	}
}

func cardPayload(card store.Card, children []store.Card) map[string]any {
	payload := map[string]any{
		"id":                      card.ID,
		"boardId":                 card.BoardID,
		"columnId":                card.ColumnID,
		"cardType":                string(card.Type),
		"content":                 card.Content,
		"anonymous":               card.Anonymous,
		"createdBy":               card.CreatedBy,
		"directReactionCount":     card.Direct,
		"aggregatedReactionCount": card.Aggregate,
		"createdAt":               card.CreatedAt,
		"updatedAt":               card.UpdatedAt,
	}
	if !card.Anonymous {
		payload["alias"] = card.Alias
	}
	if card.ParentID != "" {
		payload["parentId"] = card.ParentID
	}
	if card.Type == cards.TypeAction {
		linked := card.Linked
		if linked == nil {
			linked = []string{}
		}
		payload["linkedFeedbackIds"] = linked
	}
	if children != nil {
		childPayloads := make([]map[string]any, 0, len(children))
		for _, child := range children {
			childPayloads = append(childPayloads, cardPayload(child, nil))
		}
		payload["children"] = childPayloads
	}
	return payload
}

func reactionPayload(result store.ReactionResult) map[string]any {
	payload := map[string]any{
		"card":           result.CardID,
		"newDirectCount": result.NewDirect,
	}
	if result.ParentID != "" {
		payload["affectedParent"] = result.ParentID
		payload["newAggregate"] = result.ParentAggregate
	} else {
		payload["newAggregate"] = result.NewAggregate
	}
	return payload
}

func mapStoreError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound(what)
	}
	return err
}
