package store

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/processor"
)

// Document is one stored note with its page count.
type Document struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	PageCount int       `json:"page_count"`
}

// Block is one recognized word on a page, in page pixel coordinates.
type Block struct {
	ID     int64  `json:"id"`
	PageID int64  `json:"page_id"`
	Left   int    `json:"left"`
	Top    int    `json:"top"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Conf   int    `json:"conf"`
	Text   string `json:"text"`
}

// Page is a stored page without its image. Blocks keep insertion order.
type Page struct {
	ID         int64              `json:"id"`
	DocumentID int64              `json:"document_id"`
	Number     int                `json:"number"`
	Summary    *processor.Summary `json:"summary,omitempty"`
	Blocks     []Block            `json:"blocks"`
}

// DocumentPages is a document with all of its pages.
type DocumentPages struct {
	Document
	Pages []Page `json:"pages"`
}

// NewPage is a processed page ready to be committed. Index orders pages
// within a batch.
type NewPage struct {
	Index   int
	Image   []byte
	Summary []byte
	Tokens  []ocr.Token
}

// PageFromResult converts a processor result into a NewPage.
func PageFromResult(r *processor.PageResult) (NewPage, error) {
	if r == nil {
		return NewPage{}, fmt.Errorf("nil page result")
	}
	data := r.Data
	if data == nil {
		data = &ocr.Data{}
	}
	if err := data.Validate(); err != nil {
		return NewPage{}, fmt.Errorf("page %d: %w", r.Index, err)
	}
	summary := r.Summary
	if summary == nil {
		summary = processor.NewSummary(data)
	}
	b, err := summary.Marshal()
	if err != nil {
		return NewPage{}, fmt.Errorf("page %d: %w", r.Index, err)
	}
	np := NewPage{Index: r.Index, Image: r.Image, Summary: b, Tokens: data.Tokens()}
	return np, nil
}

// PagesFromResults converts a batch of processor results.
func PagesFromResults(results []*processor.PageResult) ([]NewPage, error) {
	pages := make([]NewPage, 0, len(results))
	for _, r := range results {
		p, err := PageFromResult(r)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}
