// Package export renders a board into downloadable formats and optionally
// archives the rendered snapshot to object storage.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	BoardID string
	Format  Format
	Archive bool // also upload the result to object storage
}

// Result contains the export output
type Result struct {
	Data       []byte
	Filename   string
	MimeType   string
	ArchiveRef string // object name when archived, empty otherwise
}

// BoardSnapshot is the complete exportable state of a board: columns in
// display order, cards grouped under their parents.
type BoardSnapshot struct {
	BoardID    string           `json:"boardId"`
	Name       string           `json:"name"`
	State      string           `json:"state"`
	ExportedAt time.Time        `json:"exportedAt"`
	Columns    []ColumnSnapshot `json:"columns"`
}

// ColumnSnapshot holds a column and its top-level cards.
type ColumnSnapshot struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Cards []CardSnapshot `json:"cards"`
}

// CardSnapshot is one card with its children nested one level deep.
type CardSnapshot struct {
	ID        string         `json:"id"`
	CardType  string         `json:"cardType"`
	Content   string         `json:"content"`
	Alias     string         `json:"alias,omitempty"`
	Direct    int            `json:"directReactionCount"`
	Aggregate int            `json:"aggregatedReactionCount"`
	Linked    []string       `json:"linkedFeedbackIds,omitempty"`
	Children  []CardSnapshot `json:"children,omitempty"`
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates the requested format is not one of json, markdown, pdf.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrArchiveUnavailable indicates no object storage is configured.
	ErrArchiveUnavailable = errors.New("archive storage not configured")
)
