// AngelaMos | 2026
// compare_test.go

package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"spaces", "hello  world", []string{"hello", "world"}},
		{"zero width space", "ខ្ញុំ\u200bស្រឡាញ់\u200bភាសា", []string{"ខ្ញុំ", "ស្រឡាញ់", "ភាសា"}},
		{"khmer full stop", "ខ្ញុំ ទៅ។", []string{"ខ្ញុំ", "ទៅ"}},
		{"punctuation", "one, two; three!", []string{"one", "two", "three"}},
		{"empty", " \u200b ", []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.in)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTokenizeNormalizesToNFC(t *testing.T) {
	decomposed := "e\u0301"
	assert.Equal(t, []string{"\u00e9"}, Tokenize(decomposed))
}

func TestCompare(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		c := Compare("a b c d", "a b c d")
		assert.Equal(t, 4, c.TotalWords)
		assert.Equal(t, 4, c.CorrectWords)
		assert.Zero(t, c.IncorrectWords)
		assert.Equal(t, float64(100), c.Accuracy)
		assert.Empty(t, c.Mistakes)
	})

	t.Run("one homophone swapped", func(t *testing.T) {
		c := Compare("ខ្ញុំ ទៅ សាលា រៀន", "ខ្ញុំ ទៅ សាលារ រៀន")
		assert.Equal(t, 4, c.TotalWords)
		assert.Equal(t, 3, c.CorrectWords)
		assert.Equal(t, 1, c.IncorrectWords)
		assert.Equal(t, float64(75), c.Accuracy)
		assert.Equal(t, []Mistake{{Kind: MistakeReplaced, Position: 2, Expected: "សាលា", Got: "សាលារ"}}, c.Mistakes)
	})

	t.Run("missing and extra words", func(t *testing.T) {
		c := Compare("a b c", "a c d")
		assert.Equal(t, 3, c.TotalWords)
		assert.Equal(t, 2, c.CorrectWords)
		assert.Equal(t, 1, c.IncorrectWords)
		assert.Equal(t, 1, c.ExtraWords)
		assert.Equal(t, 66.67, c.Accuracy)

		m := c.Metrics()
		assert.Equal(t, 1, m["missing"])
		assert.Equal(t, 1, m["extra"])
	})

	t.Run("empty reference", func(t *testing.T) {
		c := Compare("", "anything")
		assert.Zero(t, c.TotalWords)
		assert.Zero(t, c.Accuracy)
	})
}
