package match

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/joseph-ayodele/article-matcher/internal/entity"
	"github.com/joseph-ayodele/article-matcher/internal/llm"
	"github.com/joseph-ayodele/article-matcher/internal/similarity"
)

const (
	maxAliases      = 5
	maxSampleRunes  = 200
	defaultSearchTo = 20
)

type preparedField struct {
	name      string
	value     string
	text      similarity.Text
	attribute bool
}

// Catalog is a read-only, prepared view of the catalog for one matching run.
// Records keep their input order, which decides ties.
type Catalog struct {
	records []*entity.CatalogRecord
	fields  [][]preparedField
	labels  []string
	byID    map[int64]int
}

// NewCatalog prepares records for matching. The records are copied.
func NewCatalog(records []entity.CatalogRecord) *Catalog {
	c := &Catalog{
		records: make([]*entity.CatalogRecord, 0, len(records)),
		fields:  make([][]preparedField, 0, len(records)),
		labels:  make([]string, 0, len(records)),
		byID:    make(map[int64]int, len(records)),
	}
	for i := range records {
		rec := records[i]
		if rec.Competitors != nil {
			comp := make(map[string]string, len(rec.Competitors))
			for k, v := range rec.Competitors {
				comp[k] = v
			}
			rec.Competitors = comp
		}
		rec.Normalize()
		fs := rec.Fields()
		pf := make([]preparedField, 0, len(fs))
		for _, f := range fs {
			pf = append(pf, preparedField{
				name:      f.Name,
				value:     f.Value,
				text:      similarity.Prepare(f.Value),
				attribute: entity.IsAttributeField(f.Name),
			})
		}
		c.byID[rec.ID] = len(c.records)
		c.records = append(c.records, &rec)
		c.fields = append(c.fields, pf)
		c.labels = append(c.labels, strings.ToLower(rec.Label()))
	}
	return c
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Record returns the record with the given id.
func (c *Catalog) Record(id int64) (*entity.CatalogRecord, bool) {
	if c == nil {
		return nil, false
	}
	i, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.records[i], true
}

// fieldFilter decides which fields take part in scoring.
type fieldFilter struct {
	names map[string]struct{}
}

func newFieldFilter(names []string) fieldFilter {
	if len(names) == 0 {
		return fieldFilter{}
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return fieldFilter{names: set}
}

func (f fieldFilter) allows(pf *preparedField) bool {
	if f.names == nil {
		return !pf.attribute
	}
	if _, ok := f.names[pf.name]; ok {
		return true
	}
	if strings.HasPrefix(pf.name, entity.CompetitorFieldPrefix) {
		_, ok := f.names[entity.CompetitorFieldPrefix+"*"]
		return ok
	}
	return false
}

type candidate struct {
	idx   int
	field string
	value string
	score float64
}

// best scans every allowed field of every record, field value as query and line as candidate.
// Strict comparison keeps the first-seen candidate on ties.
func (c *Catalog) best(line similarity.Text, filter fieldFilter) (candidate, bool) {
	best := candidate{idx: -1}
	for i := range c.records {
		if cand, ok := c.bestInRecord(i, line, filter, best.score); ok {
			best = cand
		}
	}
	return best, best.idx >= 0
}

// bestInRecord returns the record's best field when it beats floor.
func (c *Catalog) bestInRecord(i int, line similarity.Text, filter fieldFilter, floor float64) (candidate, bool) {
	best := candidate{idx: -1, score: floor}
	for j := range c.fields[i] {
		pf := &c.fields[i][j]
		if !filter.allows(pf) {
			continue
		}
		s, ok := similarity.ScoreAbove(pf.text, line, best.score)
		if ok && s > best.score {
			best = candidate{idx: i, field: pf.name, value: pf.value, score: s}
		}
	}
	return best, best.idx >= 0
}

// describe names the field that best explains why record i fits the line,
// falling back to the record label.
func (c *Catalog) describe(i int, line similarity.Text, filter fieldFilter) (string, string) {
	if cand, ok := c.bestInRecord(i, line, filter, 0); ok {
		return cand.field, cand.value
	}
	rec := c.records[i]
	switch {
	case rec.ArticleAGB != "":
		return entity.FieldArticleAGB, rec.ArticleAGB
	case rec.NomenclatureAGB != "":
		return entity.FieldNomenclatureAGB, rec.NomenclatureAGB
	}
	if fs := rec.Fields(); len(fs) > 0 {
		return fs[0].Name, fs[0].Value
	}
	return "", ""
}

// sample picks the n records whose labels are closest to text by normalized edit distance.
func (c *Catalog) sample(text string, n int) []llm.CatalogEntry {
	if n <= 0 || len(c.records) == 0 {
		return nil
	}
	q := []rune(strings.ToLower(strings.TrimSpace(text)))
	if len(q) > maxSampleRunes {
		q = q[:maxSampleRunes]
	}
	query := string(q)

	type ranked struct {
		idx int
		sim float64
	}
	rs := make([]ranked, len(c.records))
	for i, label := range c.labels {
		rs[i] = ranked{idx: i, sim: labelSimilarity(query, label)}
	}
	sort.SliceStable(rs, func(a, b int) bool { return rs[a].sim > rs[b].sim })

	out := make([]llm.CatalogEntry, 0, min(n, len(rs)))
	for _, r := range rs[:min(n, len(rs))] {
		out = append(out, c.entry(r.idx))
	}
	return out
}

func labelSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(max(la, lb))
}

func (c *Catalog) entry(i int) llm.CatalogEntry {
	rec := c.records[i]
	label := rec.Label()
	e := llm.CatalogEntry{ID: rec.ID, Label: label}
	for _, pf := range c.fields[i] {
		if pf.attribute || pf.value == label {
			continue
		}
		e.Aliases = append(e.Aliases, pf.value)
		if len(e.Aliases) == maxAliases {
			break
		}
	}
	return e
}
