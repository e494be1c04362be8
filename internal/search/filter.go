package search

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/notely/internal/store"
	"golang.org/x/text/cases"
)

// Mode selects what FilterDocuments matches against.
type Mode int

const (
	ByTitle Mode = iota
	ByContent
)

func (m Mode) String() string {
	switch m {
	case ByTitle:
		return "title"
	case ByContent:
		return "content"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "title" or "content".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title", "":
		return ByTitle, nil
	case "content", "text":
		return ByContent, nil
	default:
		return 0, fmt.Errorf("unknown filter mode %q (want title or content)", s)
	}
}

// FilterDocuments returns the documents matching query, keeping their order.
// ByTitle matches query as a case-insensitive substring of the name.
// ByContent matches documents with any block containing any query word,
// ignoring case; an empty query matches everything.
func FilterDocuments(docs []store.DocumentPages, query string, mode Mode) []store.Document {
	out := make([]store.Document, 0, len(docs))
	switch mode {
	case ByContent:
		m := newMatcher(query, false, 0)
		for _, d := range docs {
			if m.empty() || containsMatch(d.Pages, m) {
				out = append(out, d.Document)
			}
		}
	default:
		caser := cases.Fold()
		q := caser.String(query)
		for _, d := range docs {
			if strings.Contains(caser.String(d.Name), q) {
				out = append(out, d.Document)
			}
		}
	}
	return out
}

func containsMatch(pages []store.Page, m *matcher) bool {
	for _, p := range pages {
		for _, b := range p.Blocks {
			if m.match(b.Text) {
				return true
			}
		}
	}
	return false
}
