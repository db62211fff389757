package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"retroboard/api/internal/store"
)

// DataStore is the slice of the card store the exporter reads from.
type DataStore interface {
	GetBoard(ctx context.Context, id string) (store.Board, error)
	ListCards(ctx context.Context, boardID string, filter store.ListFilter) ([]store.Card, error)
}

// Service renders board exports.
type Service struct {
	store   DataStore
	archive *Archive // nil when object storage is not configured
}

// NewService creates a new export service. archive may be nil.
func NewService(store DataStore, archive *Archive) *Service {
	return &Service{store: store, archive: archive}
}

// Export renders the board in the requested format and, when asked, uploads
// the result to the archive bucket.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	board, err := s.store.GetBoard(ctx, req.BoardID)
	if err != nil {
		return nil, fmt.Errorf("get board: %w", err)
	}
	boardCards, err := s.store.ListCards(ctx, req.BoardID, store.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	snapshot := BuildSnapshot(board, boardCards, time.Now())

	var result *Result
	switch req.Format {
	case FormatJSON:
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot: %w", err)
		}
		result = &Result{
			Data:     data,
			Filename: sanitizeFilename(board.Name) + ".json",
			MimeType: "application/json",
		}
	case FormatMarkdown:
		result = &Result{
			Data:     []byte(renderMarkdown(snapshot)),
			Filename: sanitizeFilename(board.Name) + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}
	case FormatPDF:
		html, err := RenderBoardHTML(snapshot)
		if err != nil {
			return nil, fmt.Errorf("render board html: %w", err)
		}
		result, err = exportPDF(html, board.Name)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	if req.Archive {
		if s.archive == nil {
			return nil, ErrArchiveUnavailable
		}
		ref, err := s.archive.Upload(ctx, req.BoardID, result)
		if err != nil {
			return nil, fmt.Errorf("archive export: %w", err)
		}
		result.ArchiveRef = ref
	}

	return result, nil
}
