package entity

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/article-matcher/constants"
)

// RecognizedLine is a unit of text to be matched.
type RecognizedLine struct {
	DocumentID uuid.UUID `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Offset     int       `json:"offset"`          // byte offset in extracted text, or 0-based row index for tables
	Sheet      string    `json:"sheet,omitempty"` // tabular sources only
	Row        int       `json:"row,omitempty"`   // 1-based spreadsheet row
	Context    string    `json:"context,omitempty"`
}

// MatchResult is the outcome of matching one line. Record is set only for matched results;
// Candidate keeps the best below-threshold record.
type MatchResult struct {
	Line       RecognizedLine        `json:"line"`
	Record     *CatalogRecord        `json:"record,omitempty"`
	Candidate  *CatalogRecord        `json:"candidate,omitempty"`
	Field      string                `json:"field,omitempty"`
	Value      string                `json:"value,omitempty"`
	Score      float64               `json:"score"`
	Provenance constants.Provenance  `json:"provenance"`
	Status     constants.MatchStatus `json:"status"`
}

// Matched reports whether the result carries a record at or above the threshold.
func (m MatchResult) Matched() bool {
	return m.Status == constants.MatchStatusMatched
}

// Best returns the record behind the result, matched or not.
func (m MatchResult) Best() *CatalogRecord {
	if m.Record != nil {
		return m.Record
	}
	return m.Candidate
}

// NewMatched builds a result for a record at or above the threshold.
func NewMatched(line RecognizedLine, rec *CatalogRecord, field, value string, score float64, prov constants.Provenance) MatchResult {
	return MatchResult{
		Line:       line,
		Record:     rec,
		Field:      field,
		Value:      value,
		Score:      RoundScore(score),
		Provenance: prov,
		Status:     constants.MatchStatusMatched,
	}
}

// NewBelowThreshold retains the best candidate of a line that did not reach the threshold.
func NewBelowThreshold(line RecognizedLine, rec *CatalogRecord, field, value string, score float64, prov constants.Provenance) MatchResult {
	return MatchResult{
		Line:       line,
		Candidate:  rec,
		Field:      field,
		Value:      value,
		Score:      RoundScore(score),
		Provenance: prov,
		Status:     constants.MatchStatusBelowThreshold,
	}
}

// NewNotFound is the result of a line with no candidate at all.
func NewNotFound(line RecognizedLine) MatchResult {
	return MatchResult{
		Line:       line,
		Provenance: constants.ProvenanceNone,
		Status:     constants.MatchStatusNotFound,
	}
}

// RoundScore clamps to [0,100] and rounds to two decimals.
func RoundScore(s float64) float64 {
	if s < 0 || math.IsNaN(s) {
		return 0
	}
	if s > 100 {
		s = 100
	}
	return math.Round(s*100) / 100
}

// ConfirmedMapping is an operator-confirmed association of recognized text to a record.
type ConfirmedMapping struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	RecordID  int64     `json:"record_id"`
	Count     int       `json:"count"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
