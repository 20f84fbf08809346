// Package match resolves recognized lines to catalog records.
//
// Per line: a confirmed mapping wins outright; otherwise an optional semantic assistant
// proposes a record, and unless that proposal is trusted the local similarity scorer
// runs over every identifying field of every record. The higher of the two is kept.
package match

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/article-matcher/constants"
	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/llm"
	"github.com/joseph-ayodele/article-matcher/internal/similarity"
)

// Options tune one matching run. Scores and confidences are on a 0..100 scale.
type Options struct {
	MinScore            float64
	TrustScore          float64
	AssistMinConfidence float64
	AssistTimeout       time.Duration
	SampleSize          int
	// Fields restricts scoring to these field names; "competitor:*" selects all competitor
	// aliases. Empty means every field except unit and packaging.
	Fields []string
}

// DefaultOptions returns the interactive defaults.
func DefaultOptions() Options {
	return Options{
		MinScore:            50,
		TrustScore:          80,
		AssistMinConfidence: 50,
		AssistTimeout:       10 * time.Second,
		SampleSize:          40,
	}
}

// Confirmations resolves text against operator-confirmed mappings.
type Confirmations interface {
	Lookup(ctx context.Context, text string) (*entity.ConfirmedMapping, bool)
}

// Matcher is safe for concurrent use.
type Matcher struct {
	confirmed Confirmations
	assist    llm.SemanticMatcher
	logger    *slog.Logger
}

// NewMatcher creates a Matcher. confirmed and assist may be nil.
func NewMatcher(confirmed Confirmations, assist llm.SemanticMatcher, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{confirmed: confirmed, assist: assist, logger: logger}
}

// MatchLine matches one line. It never fails: assistant errors degrade to local scoring
// and an empty catalog yields a not-found result.
func (m *Matcher) MatchLine(ctx context.Context, line entity.RecognizedLine, cat *Catalog, opts Options) entity.MatchResult {
	if strings.TrimSpace(line.Text) == "" || cat.Len() == 0 {
		return entity.NewNotFound(line)
	}
	text := similarity.Prepare(line.Text)
	filter := newFieldFilter(opts.Fields)

	if m.confirmed != nil {
		if cm, ok := m.confirmed.Lookup(ctx, line.Text); ok {
			if rec, ok := cat.Record(cm.RecordID); ok {
				field, value := cat.describe(cat.byID[rec.ID], text, filter)
				m.logger.Debug("match.confirmed.hit", "line", line.Index, "record_id", rec.ID, "count", cm.Count)
				return entity.NewMatched(line, rec, field, value, 100, constants.ProvenanceConfirmed)
			}
			m.logger.Warn("match.confirmed.stale", "line", line.Index, "record_id", cm.RecordID)
		}
	}

	var sem *candidate
	if m.assist != nil {
		sem = m.suggest(ctx, line, text, cat, filter, opts)
	}

	final := sem
	prov := constants.ProvenanceSemantic
	if sem == nil || sem.score < opts.TrustScore {
		if local, ok := cat.best(text, filter); ok && (final == nil || local.score > final.score) {
			final = &local
			prov = constants.ProvenanceLocal
		}
	}
	if final == nil {
		return entity.NewNotFound(line)
	}

	rec := cat.records[final.idx]
	if final.score >= opts.MinScore {
		return entity.NewMatched(line, rec, final.field, final.value, final.score, prov)
	}
	return entity.NewBelowThreshold(line, rec, final.field, final.value, final.score, prov)
}

// suggest asks the assistant under a timeout. Any failure is "no candidate".
func (m *Matcher) suggest(ctx context.Context, line entity.RecognizedLine, text similarity.Text, cat *Catalog, filter fieldFilter, opts Options) *candidate {
	sampleSize := opts.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultOptions().SampleSize
	}
	timeout := opts.AssistTimeout
	if timeout <= 0 {
		timeout = DefaultOptions().AssistTimeout
	}
	req := llm.MatchRequest{Query: line.Text, Sample: cat.sample(line.Text, sampleSize)}

	start := time.Now()
	actx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()

	sug, err := m.assist.SuggestMatch(actx, req)
	if err != nil {
		m.logger.Warn("match.assist.failed",
			"line", line.Index,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}
	if sug == nil || sug.Confidence < opts.AssistMinConfidence {
		return nil
	}
	idx, ok := cat.byID[sug.RecordID]
	if !ok {
		m.logger.Warn("match.assist.unknown_record", "line", line.Index, "record_id", sug.RecordID)
		return nil
	}
	field, value := cat.describe(idx, text, filter)
	m.logger.Debug("match.assist.ok",
		"line", line.Index,
		"record_id", sug.RecordID,
		"confidence", sug.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &candidate{idx: idx, field: field, value: value, score: min(sug.Confidence, 100)}
}

// SearchHit is one ranked record of a catalog search.
type SearchHit struct {
	Record *entity.CatalogRecord `json:"record"`
	Field  string                `json:"field"`
	Value  string                `json:"value"`
	Score  float64               `json:"score"`
}

// Search ranks records by their best field score against query (query as the scored side).
// Hits below minScore are dropped; limit <= 0 selects 20.
func (m *Matcher) Search(ctx context.Context, query string, cat *Catalog, minScore float64, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchTo
	}
	q := similarity.Prepare(query)
	if q.Empty() || cat.Len() == 0 {
		return nil, nil
	}
	start := time.Now()

	var hits []SearchHit
	for i, rec := range cat.records {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		best := SearchHit{Score: -1}
		for _, pf := range cat.fields[i] {
			if pf.attribute {
				continue
			}
			if s := similarity.ScorePrepared(q, pf.text); s > best.Score {
				best = SearchHit{Record: rec, Field: pf.name, Value: pf.value, Score: s}
			}
		}
		if best.Record != nil && best.Score > 0 && best.Score >= minScore {
			best.Score = entity.RoundScore(best.Score)
			hits = append(hits, best)
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	m.logger.Debug("match.search.ok", "hits", len(hits), "elapsed_ms", time.Since(start).Milliseconds())
	return hits, nil
}
