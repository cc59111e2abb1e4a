// AngelaMos | 2026
// compare.go

package progress

import (
	"math"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"
)

const zeroWidthSpace = '\u200b'

const (
	MistakeReplaced = "replaced"
	MistakeMissing  = "missing"
	MistakeExtra    = "extra"
)

type Mistake struct {
	Kind     string `json:"kind"`
	Position int    `json:"position"`
	Expected string `json:"expected,omitempty"`
	Got      string `json:"got,omitempty"`
}

// Comparison is the alignment of a submitted text against its reference.
// TotalWords counts reference tokens, so CorrectWords+IncorrectWords always
// equals TotalWords. Extra tokens are listed as mistakes but not counted.
type Comparison struct {
	TotalWords     int       `json:"total_words"`
	CorrectWords   int       `json:"correct_words"`
	IncorrectWords int       `json:"incorrect_words"`
	ExtraWords     int       `json:"extra_words"`
	Accuracy       float64   `json:"accuracy"`
	Mistakes       []Mistake `json:"mistakes"`
}

func (c Comparison) Metrics() map[string]any {
	counts := map[string]int{}
	for _, m := range c.Mistakes {
		counts[m.Kind]++
	}
	return map[string]any{
		"replaced":    counts[MistakeReplaced],
		"missing":     counts[MistakeMissing],
		"extra":       counts[MistakeExtra],
		"extra_words": c.ExtraWords,
	}
}

// Tokenize normalises to NFC and splits on whitespace, zero width spaces
// and punctuation. Khmer is written without spaces between words, so
// writers mark word boundaries with U+200B.
func Tokenize(s string) []string {
	return strings.FieldsFunc(norm.NFC.String(s), func(r rune) bool {
		return r == zeroWidthSpace || unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func Compare(reference, submitted string) Comparison {
	ref := Tokenize(reference)
	got := Tokenize(submitted)

	c := Comparison{TotalWords: len(ref), Mistakes: []Mistake{}}

	m := difflib.NewMatcherWithJunk(ref, got, false, nil)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			c.CorrectWords += op.I2 - op.I1
		case 'r':
			n := max(op.I2-op.I1, op.J2-op.J1)
			for k := range n {
				mk := Mistake{Kind: MistakeReplaced, Position: op.I1 + k}
				if op.I1+k < op.I2 {
					mk.Expected = ref[op.I1+k]
				} else {
					mk.Kind = MistakeExtra
					mk.Position = op.I2
				}
				if op.J1+k < op.J2 {
					mk.Got = got[op.J1+k]
				} else {
					mk.Kind = MistakeMissing
				}
				c.Mistakes = append(c.Mistakes, mk)
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				c.Mistakes = append(c.Mistakes, Mistake{Kind: MistakeMissing, Position: i, Expected: ref[i]})
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				c.Mistakes = append(c.Mistakes, Mistake{Kind: MistakeExtra, Position: op.I1, Got: got[j]})
			}
		}
	}

	for _, mk := range c.Mistakes {
		if mk.Kind == MistakeExtra {
			c.ExtraWords++
		}
	}
	c.IncorrectWords = c.TotalWords - c.CorrectWords
	c.Accuracy = percent(c.CorrectWords, c.TotalWords)
	return c
}

func percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*100*100) / 100
}
