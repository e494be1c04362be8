// Package search answers "which pages contain X" over stored documents and
// filters the document list by title or content.
package search

import (
	"slices"
	"sort"
	"strings"

	"github.com/MeKo-Tech/notely/internal/eval"
	"github.com/MeKo-Tech/notely/internal/store"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// PageIndex maps page numbers to their matching blocks, in page order.
type PageIndex struct {
	pages   []int
	matches map[int][]store.Block
}

type options struct {
	maxDistance int
}

// Option configures BuildPageIndex.
type Option func(*options)

// WithApproximate also matches blocks whose text is within maxDistance
// edits of a query word.
func WithApproximate(maxDistance int) Option {
	return func(o *options) { o.maxDistance = max(0, maxDistance) }
}

// matcher tests block text against the words of a query.
type matcher struct {
	words       []string
	fold        func(string) string
	maxDistance int
}

// newMatcher normalises query and block text to NFC so precomposed and
// decomposed accents compare equal. Folding, when enabled, runs first.
func newMatcher(query string, caseSensitive bool, maxDistance int) *matcher {
	m := &matcher{maxDistance: maxDistance, fold: norm.NFC.String}
	if !caseSensitive {
		caser := cases.Fold()
		m.fold = func(s string) string { return norm.NFC.String(caser.String(s)) }
	}
	for _, w := range strings.Fields(query) {
		m.words = append(m.words, m.fold(w))
	}
	return m
}

func (m *matcher) empty() bool { return len(m.words) == 0 }

func (m *matcher) match(text string) bool {
	t := m.fold(text)
	for _, w := range m.words {
		if strings.Contains(t, w) {
			return true
		}
		if m.maxDistance > 0 && eval.Levenshtein(t, w) <= m.maxDistance {
			return true
		}
	}
	return false
}

// BuildPageIndex scans pages in order and records, per page, the blocks
// whose text contains any word of query. Pages without matches are left
// out, and a blank query yields an empty index. Each block is listed once.
func BuildPageIndex(pages []store.Page, query string, caseSensitive bool, opts ...Option) *PageIndex {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	idx := &PageIndex{matches: make(map[int][]store.Block)}
	m := newMatcher(query, caseSensitive, o.maxDistance)
	if m.empty() {
		return idx
	}

	ordered := slices.Clone(pages)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].Number < ordered[b].Number })
	for _, p := range ordered {
		for _, b := range p.Blocks {
			if !m.match(b.Text) {
				continue
			}
			if _, seen := idx.matches[p.Number]; !seen {
				idx.pages = append(idx.pages, p.Number)
			}
			idx.matches[p.Number] = append(idx.matches[p.Number], b)
		}
	}
	return idx
}

// Len returns the number of matching pages.
func (x *PageIndex) Len() int { return len(x.pages) }

// Pages returns the matching page numbers in order.
func (x *PageIndex) Pages() []int { return slices.Clone(x.pages) }

// Matches returns the matching blocks of page, or nil.
func (x *PageIndex) Matches(page int) []store.Block { return x.matches[page] }

// Contains reports whether page has a match.
func (x *PageIndex) Contains(page int) bool {
	_, ok := x.matches[page]
	return ok
}

// First returns the first matching page.
func (x *PageIndex) First() (int, bool) {
	if len(x.pages) == 0 {
		return 0, false
	}
	return x.pages[0], true
}

// Jump returns current if it matches, otherwise the first matching page.
func (x *PageIndex) Jump(current int) (int, bool) {
	if x.Contains(current) {
		return current, true
	}
	return x.First()
}

// Next returns the first matching page after current.
func (x *PageIndex) Next(current int) (int, bool) {
	i := sort.SearchInts(x.pages, current+1)
	if i >= len(x.pages) {
		return current, false
	}
	return x.pages[i], true
}

// Prev returns the last matching page before current.
func (x *PageIndex) Prev(current int) (int, bool) {
	i := sort.SearchInts(x.pages, current)
	if i == 0 {
		return current, false
	}
	return x.pages[i-1], true
}
