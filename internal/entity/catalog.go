package entity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Catalog field names, stable across storage, reports and API responses.
const (
	FieldArticleAGB      = "article_agb"
	FieldArticleBL       = "article_bl"
	FieldCode1C          = "code_1c"
	FieldCode            = "code"
	FieldNomenclatureAGB = "nomenclature_agb"
	FieldBortlanger      = "bortlanger"
	FieldEpiroc          = "epiroc"
	FieldAlmazgeobur     = "almazgeobur"
	FieldUnit            = "unit"
	FieldPackaging       = "packaging"

	// CompetitorFieldPrefix prefixes alias fields built from Competitors keys.
	CompetitorFieldPrefix = "competitor:"
)

// VariantSlots is the number of variant (alias) columns a record carries.
const VariantSlots = 8

// VariantField returns the field name of the 1-based variant slot n.
func VariantField(n int) string {
	return "variant_" + strconv.Itoa(n)
}

// CatalogRecord is a product entry in the reference catalog.
type CatalogRecord struct {
	ID              int64                `json:"id"`
	ArticleAGB      string               `json:"article_agb,omitempty"`
	ArticleBL       string               `json:"article_bl,omitempty"`
	Code1C          string               `json:"code_1c,omitempty"`
	Code            string               `json:"code,omitempty"`
	NomenclatureAGB string               `json:"nomenclature_agb,omitempty"`
	Variants        [VariantSlots]string `json:"variants"`
	Bortlanger      string               `json:"bortlanger,omitempty"`
	Epiroc          string               `json:"epiroc,omitempty"`
	Almazgeobur     string               `json:"almazgeobur,omitempty"`
	Competitors     map[string]string    `json:"competitors,omitempty"`
	Unit            string               `json:"unit,omitempty"`
	Packaging       string               `json:"packaging,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Field is one populated (name, value) pair of a record.
type Field struct {
	Name  string
	Value string
}

// NormalizeValue trims a raw cell and maps placeholder values ("", "-", "none") to "".
func NormalizeValue(raw string) string {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "", "-", "none", "nan", "null":
		return ""
	}
	return v
}

// Fields yields the populated fields in a fixed order. Competitors are sorted by name.
func (r *CatalogRecord) Fields() []Field {
	out := make([]Field, 0, 12)
	add := func(name, value string) {
		if v := NormalizeValue(value); v != "" {
			out = append(out, Field{Name: name, Value: v})
		}
	}
	add(FieldArticleAGB, r.ArticleAGB)
	add(FieldArticleBL, r.ArticleBL)
	add(FieldCode1C, r.Code1C)
	add(FieldCode, r.Code)
	add(FieldNomenclatureAGB, r.NomenclatureAGB)
	for i, v := range r.Variants {
		add(VariantField(i+1), v)
	}
	add(FieldBortlanger, r.Bortlanger)
	add(FieldEpiroc, r.Epiroc)
	add(FieldAlmazgeobur, r.Almazgeobur)
	if len(r.Competitors) > 0 {
		names := make([]string, 0, len(r.Competitors))
		for name := range r.Competitors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			add(CompetitorFieldPrefix+name, r.Competitors[name])
		}
	}
	add(FieldUnit, r.Unit)
	add(FieldPackaging, r.Packaging)
	return out
}

// Label is the human-facing name of the record: its AGB article, else nomenclature, else first field.
func (r *CatalogRecord) Label() string {
	if v := NormalizeValue(r.ArticleAGB); v != "" {
		return v
	}
	if v := NormalizeValue(r.NomenclatureAGB); v != "" {
		return v
	}
	if fs := r.Fields(); len(fs) > 0 {
		return fs[0].Value
	}
	return fmt.Sprintf("#%d", r.ID)
}

// Get returns the value of a named field ("" when absent or unknown).
func (r *CatalogRecord) Get(name string) string {
	if p := r.ptr(name); p != nil {
		return *p
	}
	if comp, ok := strings.CutPrefix(name, CompetitorFieldPrefix); ok {
		return r.Competitors[comp]
	}
	return ""
}

// FillEmpty sets a field only when it is currently absent. It reports whether the record changed.
func (r *CatalogRecord) FillEmpty(name, value string) bool {
	value = NormalizeValue(value)
	if value == "" {
		return false
	}
	if comp, ok := strings.CutPrefix(name, CompetitorFieldPrefix); ok {
		if NormalizeValue(r.Competitors[comp]) != "" {
			return false
		}
		if r.Competitors == nil {
			r.Competitors = map[string]string{}
		}
		r.Competitors[comp] = value
		return true
	}
	p := r.ptr(name)
	if p == nil || NormalizeValue(*p) != "" {
		return false
	}
	*p = value
	return true
}

// AddVariant stores value in the first free variant slot unless it is already present.
func (r *CatalogRecord) AddVariant(value string) bool {
	value = NormalizeValue(value)
	if value == "" {
		return false
	}
	for _, v := range r.Variants {
		if strings.EqualFold(NormalizeValue(v), value) {
			return false
		}
	}
	for i, v := range r.Variants {
		if NormalizeValue(v) == "" {
			r.Variants[i] = value
			return true
		}
	}
	return false
}

// Normalize applies NormalizeValue to every field in place.
func (r *CatalogRecord) Normalize() {
	for _, name := range scalarFields {
		p := r.ptr(name)
		*p = NormalizeValue(*p)
	}
	for i := range r.Variants {
		r.Variants[i] = NormalizeValue(r.Variants[i])
	}
	for k, v := range r.Competitors {
		if nv := NormalizeValue(v); nv != "" {
			r.Competitors[k] = nv
		} else {
			delete(r.Competitors, k)
		}
	}
}

var scalarFields = []string{
	FieldArticleAGB, FieldArticleBL, FieldCode1C, FieldCode, FieldNomenclatureAGB,
	FieldBortlanger, FieldEpiroc, FieldAlmazgeobur, FieldUnit, FieldPackaging,
}

func (r *CatalogRecord) ptr(name string) *string {
	switch name {
	case FieldArticleAGB:
		return &r.ArticleAGB
	case FieldArticleBL:
		return &r.ArticleBL
	case FieldCode1C:
		return &r.Code1C
	case FieldCode:
		return &r.Code
	case FieldNomenclatureAGB:
		return &r.NomenclatureAGB
	case FieldBortlanger:
		return &r.Bortlanger
	case FieldEpiroc:
		return &r.Epiroc
	case FieldAlmazgeobur:
		return &r.Almazgeobur
	case FieldUnit:
		return &r.Unit
	case FieldPackaging:
		return &r.Packaging
	}
	if n, ok := strings.CutPrefix(name, "variant_"); ok {
		if i, err := strconv.Atoi(n); err == nil && i >= 1 && i <= VariantSlots {
			return &r.Variants[i-1]
		}
	}
	return nil
}

// IsAttributeField reports fields that describe a record rather than identify it.
func IsAttributeField(name string) bool {
	return name == FieldUnit || name == FieldPackaging
}
