package processor

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/MeKo-Tech/notely/internal/ocr"
)

// Histogram range: printable ASCII.
const (
	HistogramFirst = 32
	HistogramLast  = 126
)

// Summary aggregates the recognized text of one page. Blank tokens are
// excluded throughout.
type Summary struct {
	TextCounts map[string]int   `json:"text_counts"`
	Texts      []string         `json:"texts"`
	CharCounts map[string]int   `json:"char_counts"`
	Chars      []string         `json:"chars"`
	Left       []int            `json:"left"`
	Top        []int            `json:"top"`
	Width      []int            `json:"width"`
	Height     []int            `json:"height"`
	Confidence map[string][]int `json:"confidence"`
}

// NewSummary builds the summary of data. data must be valid.
func NewSummary(data *ocr.Data) *Summary {
	s := &Summary{
		TextCounts: make(map[string]int),
		CharCounts: make(map[string]int),
		Confidence: make(map[string][]int),
	}
	for _, tok := range data.Tokens() {
		if ocr.IsBlank(tok.Text) {
			continue
		}
		s.TextCounts[tok.Text]++
		for _, r := range tok.Text {
			s.CharCounts[string(r)]++
		}
		s.Left = append(s.Left, tok.Left)
		s.Top = append(s.Top, tok.Top)
		s.Width = append(s.Width, tok.Width)
		s.Height = append(s.Height, tok.Height)
		if !slices.Contains(s.Confidence[tok.Text], tok.Conf) {
			s.Confidence[tok.Text] = append(s.Confidence[tok.Text], tok.Conf)
		}
	}

	s.Texts = sortedKeys(s.TextCounts)
	s.Chars = sortedKeys(s.CharCounts)
	for _, confs := range s.Confidence {
		sort.Ints(confs)
	}
	return s
}

// CharHistogram returns the counts of characters 32..126, in order.
func (s *Summary) CharHistogram() []int {
	hist := make([]int, HistogramLast-HistogramFirst+1)
	for ch, n := range s.CharCounts {
		r := []rune(ch)
		if len(r) != 1 || r[0] < HistogramFirst || r[0] > HistogramLast {
			continue
		}
		hist[r[0]-HistogramFirst] += n
	}
	return hist
}

// TokenCount returns the number of non-blank tokens.
func (s *Summary) TokenCount() int { return len(s.Left) }

// Marshal encodes the summary for storage.
func (s *Summary) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode page summary: %w", err)
	}
	return b, nil
}

// UnmarshalSummary decodes a stored summary.
func UnmarshalSummary(b []byte) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode page summary: %w", err)
	}
	return &s, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
