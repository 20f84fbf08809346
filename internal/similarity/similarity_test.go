package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"hyphenated code stays whole", "Товар BL-4590 комплект", []string{"товар", "bl4590", "комплект"}},
		{"punctuation splits", "Коронка/76мм, (шт.)", []string{"коронка", "76мм", "шт"}},
		{"case folded", "ABC abc", []string{"abc", "abc"}},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreTiers(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		candidate string
		want      float64
	}{
		{"empty query", "", "BL-4590", 0},
		{"empty candidate", "BL-4590", "  ", 0},
		{"full coverage", "BL-4590", "Товар BL-4590 комплект", 100},
		{"case and hyphen insensitive", "bl 4590", "BL 4590", 100},
		{"partial exact overlap", "коронка 76 мм", "коронка 89", 100.0 / 3},
		{"half credit substring", "4590", "bl4590x", 50},
		{"half credit both tokens", "bl45 kit", "bl4590 kits", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.query, tt.candidate), 1e-9)
		})
	}
}

func TestScoreFullCoverageIsExactly100(t *testing.T) {
	assert.Equal(t, 100.0, Score("bl4590 коронка", "коронка bl-4590 76мм"))
}

func TestScoreCharacterTierIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"abcdef", "xbdxf"},
		{"qwerty", "wrt"},
		{"абвгд", "вгдеж"},
	}
	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		require.Greater(t, ab, 0.0)
		assert.InDelta(t, ab, ba, 1e-9, "pair %v", p)
	}
}

func TestScoreCharacterTierValue(t *testing.T) {
	// LCS("abcdef","xbdxf") = "bdf" -> 2*3/11
	assert.InDelta(t, 100*6.0/11.0, Score("abcdef", "xbdxf"), 1e-9)
}

func TestScoreBounds(t *testing.T) {
	inputs := []string{"", "a", "BL-4590", "коронка 76", "!!!", "x y z", "Товар BL-4590 комплект"}
	for _, q := range inputs {
		for _, c := range inputs {
			s := Score(q, c)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 100.0)
		}
	}
}

func TestScoreTokenlessInputsScoreZero(t *testing.T) {
	tests := []struct {
		query     string
		candidate string
	}{
		{"!!!", "!!!"},
		{"BL-4590", "-----"},
		{"-----", "BL-4590"},
		{"№ / *", "№ / * BL"},
	}
	for _, tt := range tests {
		t.Run(tt.query+" in "+tt.candidate, func(t *testing.T) {
			assert.Equal(t, 0.0, Score(tt.query, tt.candidate))
			s, ok := ScoreAbove(Prepare(tt.query), Prepare(tt.candidate), -1)
			assert.True(t, ok)
			assert.Equal(t, 0.0, s)
		})
	}
	assert.True(t, Prepare("№ / *").Empty())
	assert.False(t, Prepare("№ 5").Empty())
}

func TestScoreAbovePrunes(t *testing.T) {
	q := Prepare("abcdefghij")
	c := Prepare("zz")

	_, ok := ScoreAbove(q, c, 90)
	assert.False(t, ok, "bound 2*2/12 cannot beat 90")

	s, ok := ScoreAbove(q, c, -1)
	assert.True(t, ok)
	assert.Equal(t, 0.0, s)
}

func TestPrepareDedupsTokens(t *testing.T) {
	p := Prepare("bl bl 4590")
	assert.Equal(t, []string{"bl", "4590"}, p.Tokens())
}
