package llm

import "context"

// CatalogEntry is the compact view of a catalog record sent to the model.
type CatalogEntry struct {
	ID      int64    `json:"id"`
	Label   string   `json:"label"`
	Aliases []string `json:"aliases,omitempty"`
}

// MatchRequest asks for the catalog entry a recognized text refers to.
type MatchRequest struct {
	Query  string
	Sample []CatalogEntry
}

// MatchSuggestion is the model's answer. Confidence is on a 0..100 scale.
type MatchSuggestion struct {
	RecordID   int64   `json:"record_id"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// SemanticMatcher suggests a catalog record for a query. (nil, nil) means no candidate.
type SemanticMatcher interface {
	SuggestMatch(ctx context.Context, req MatchRequest) (*MatchSuggestion, error)
}

// ColumnSuggestion locates the interesting columns of a table sample.
// All indexes are 1-based; 0 means absent.
type ColumnSuggestion struct {
	HeaderRow         int `json:"header_row"`
	IdentifierColumn  int `json:"identifier_column"`
	DescriptiveColumn int `json:"descriptive_column"`
}

// ColumnInferrer infers column roles from a sample of rows.
type ColumnInferrer interface {
	InferColumns(ctx context.Context, sample [][]string) (*ColumnSuggestion, error)
}
