// Package similarity scores how well a query string is represented in a candidate string.
//
// Scores are on a 0..100 scale and are computed in tiers:
//
//  1. either side has no tokens (empty or punctuation only): 0
//  2. exact token overlap: |query tokens found in candidate| / |query tokens|, 100 on full coverage
//  3. partial token overlap: 0.5 credit per query token that is a substring of (or contains)
//     a candidate token
//  4. otherwise a character-level LCS ratio 2*M/T over the lowercased strings
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Text is a normalized, tokenized string that can be scored repeatedly.
type Text struct {
	Raw    string
	norm   []rune
	tokens []string
	set    map[string]struct{}
}

// Tokens returns the unique tokens in first-seen order.
func (t Text) Tokens() []string { return t.tokens }

// Empty reports whether the text has no tokens. Punctuation-only input is empty.
func (t Text) Empty() bool { return len(t.tokens) == 0 }

// Prepare normalizes and tokenizes s.
func Prepare(s string) Text {
	lower := normalize(s)
	toks := Tokenize(s)
	set := make(map[string]struct{}, len(toks))
	uniq := toks[:0]
	for _, tok := range toks {
		if _, ok := set[tok]; ok {
			continue
		}
		set[tok] = struct{}{}
		uniq = append(uniq, tok)
	}
	return Text{Raw: s, norm: []rune(lower), tokens: uniq, set: set}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

// hyphens are removed before splitting so "BL-4590" stays one token.
var hyphens = strings.NewReplacer("-", "", "‐", "", "‑", "", "‒", "", "–", "")

// Tokenize lowercases s, removes hyphens and splits on every rune that is not a letter or digit.
func Tokenize(s string) []string {
	s = hyphens.Replace(normalize(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Score returns the similarity of query within candidate on a 0..100 scale.
func Score(query, candidate string) float64 {
	return ScorePrepared(Prepare(query), Prepare(candidate))
}

// ScorePrepared is Score over prepared texts.
func ScorePrepared(q, c Text) float64 {
	s, _ := ScoreAbove(q, c, -1)
	return s
}

// ScoreAbove scores q against c but skips the character-level tier when its upper
// bound cannot exceed floor. ok is false only when the computation was skipped.
func ScoreAbove(q, c Text, floor float64) (score float64, ok bool) {
	if q.Empty() || c.Empty() {
		return 0, true
	}
	n := len(q.tokens)
	hits := 0
	for _, tok := range q.tokens {
		if _, found := c.set[tok]; found {
			hits++
		}
	}
	if hits == n {
		return 100, true
	}
	if hits > 0 {
		return 100 * float64(hits) / float64(n), true
	}

	credit := 0.0
	for _, qt := range q.tokens {
		for _, ct := range c.tokens {
			if strings.Contains(ct, qt) || strings.Contains(qt, ct) {
				credit += 0.5
				break
			}
		}
	}
	if credit > 0 {
		return 100 * credit / float64(n), true
	}

	if lcsBound(len(q.norm), len(c.norm)) <= floor {
		return 0, false
	}
	return 100 * lcsRatio(q.norm, c.norm), true
}

func lcsBound(n, m int) float64 {
	if n+m == 0 {
		return 0
	}
	return 100 * 2 * float64(min(n, m)) / float64(n+m)
}

// lcsRatio is 2*LCS(a,b)/(len(a)+len(b)); symmetric in a and b.
func lcsRatio(a, b []rune) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return 2 * float64(prev[len(b)]) / float64(len(a)+len(b))
}
