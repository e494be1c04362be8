// Package eval scores OCR output against hand-transcribed ground truth.
package eval

import (
	"errors"
	"unicode/utf8"
)

// ErrNoExpected is returned when there is no ground truth to score against.
var ErrNoExpected = errors.New("eval: no expected texts")

// shortTextRunes is the length at or below which a prediction is first
// checked for an exact match.
const shortTextRunes = 3

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, c1 := range ra {
		curr[0] = i + 1
		for j, c2 := range rb {
			cost := 1
			if c1 == c2 {
				cost = 0
			}
			curr[j+1] = min(prev[j+1]+1, curr[j]+1, prev[j]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Tolerance is the maximum edit distance at which a prediction still
// counts as correct. It is either absolute or proportional to the
// prediction's length.
type Tolerance struct {
	absolute int
	relative float64
	adaptive bool
}

// Absolute allows n edits regardless of text length.
func Absolute(n int) Tolerance { return Tolerance{absolute: n} }

// Relative allows int(f * len(prediction)) edits.
func Relative(f float64) Tolerance { return Tolerance{relative: f, adaptive: true} }

// DefaultTolerance is Relative(0.2).
func DefaultTolerance() Tolerance { return Relative(0.2) }

// Limit returns the allowed distance for a prediction.
func (t Tolerance) Limit(pred string) int {
	if t.adaptive {
		return int(t.relative * float64(utf8.RuneCountInString(pred)))
	}
	return t.absolute
}

// ZeroOneLoss counts the predictions that match some expected text within
// tolerance and divides by the number of distinct expected texts. Short
// predictions are accepted on an exact match before falling back to the
// distance check.
func ZeroOneLoss(expected, predicted []string, tol Tolerance) (float64, error) {
	set := make(map[string]struct{}, len(expected))
	for _, s := range expected {
		set[s] = struct{}{}
	}
	if len(set) == 0 {
		return 0, ErrNoExpected
	}

	correct := 0
	for _, pred := range predicted {
		if utf8.RuneCountInString(pred) <= shortTextRunes {
			if _, ok := set[pred]; ok {
				correct++
				continue
			}
		}
		limit := tol.Limit(pred)
		for exp := range set {
			if Levenshtein(pred, exp) <= limit {
				correct++
				break
			}
		}
	}
	return float64(correct) / float64(len(set)), nil
}
