package processor

import (
	"testing"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSummary(t *testing.T) {
	data := testutil.Tokens(
		ocr.Token{Left: 1, Top: 1, Width: 10, Height: 5, Conf: 90, Text: "the"},
		ocr.Token{Left: 2, Top: 2, Width: 10, Height: 5, Conf: 0, Text: " "},
		ocr.Token{Left: 3, Top: 3, Width: 10, Height: 5, Conf: 60, Text: "cat"},
		ocr.Token{Left: 4, Top: 4, Width: 10, Height: 5, Conf: 85, Text: "the"},
		ocr.Token{Left: 5, Top: 5, Width: 10, Height: 5, Conf: 90, Text: "the"},
		ocr.Token{Left: 6, Top: 6, Width: 10, Height: 5, Conf: 0, Text: ""},
	)

	s := NewSummary(data)
	assert.Equal(t, map[string]int{"the": 3, "cat": 1}, s.TextCounts)
	assert.Equal(t, []string{"cat", "the"}, s.Texts)
	assert.Equal(t, 4, s.CharCounts["t"])
	assert.Equal(t, 3, s.CharCounts["e"])
	assert.Equal(t, 1, s.CharCounts["c"])
	assert.Equal(t, []string{"a", "c", "e", "h", "t"}, s.Chars)
	assert.Equal(t, []int{1, 3, 4, 5}, s.Left)
	assert.Equal(t, []int{85, 90}, s.Confidence["the"])
	assert.Equal(t, []int{60}, s.Confidence["cat"])
	assert.Equal(t, 4, s.TokenCount())
}

func TestSummary_CharHistogram(t *testing.T) {
	s := NewSummary(testutil.Tokens(
		ocr.Token{Text: "A~"},
		ocr.Token{Text: "AÄ"},
	))
	hist := s.CharHistogram()
	require.Len(t, hist, 95)
	assert.Equal(t, 2, hist['A'-HistogramFirst])
	assert.Equal(t, 1, hist['~'-HistogramFirst])

	total := 0
	for _, n := range hist {
		total += n
	}
	assert.Equal(t, 3, total, "non-ASCII characters are not counted")
}

func TestSummary_MarshalRoundTrip(t *testing.T) {
	s := NewSummary(testutil.Words(80, "hello", "world"))
	b, err := s.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalSummary(b)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = UnmarshalSummary([]byte("{"))
	require.Error(t, err)
}
