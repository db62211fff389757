package search

// Result is a single card hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	ColumnID string `json:"columnId"`
	CardType string `json:"cardType"`
	Snippet  string `json:"snippet"`
	Alias    string `json:"alias,omitempty"`
}

// Query describes a search request. BoardID is mandatory; searches never
// cross board boundaries.
type Query struct {
	Text           string
	BoardID        string
	FilterColumnID string
	FilterCardType string // empty = all types
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over cards.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// CardRecord is the data we index for a card. Anonymous cards are indexed
// without an alias.
type CardRecord struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId"`
	ColumnID string `json:"columnId"`
	CardType string `json:"cardType"`
	Content  string `json:"content"`
	Alias    string `json:"alias"`
}
