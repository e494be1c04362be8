package store

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/notely/internal/processor"
)

const documentColumns = `SELECT d.id, d.name, d.created_at,
	(SELECT COUNT(*) FROM pages p WHERE p.document_id = d.id)
	FROM documents d`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		d       Document
		created int64
	)
	if err := row.Scan(&d.ID, &d.Name, &created, &d.PageCount); err != nil {
		return Document{}, err
	}
	d.CreatedAt = time.Unix(created, 0).UTC()
	return d, nil
}

// Documents lists all documents ordered by name, ignoring case.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, documentColumns)
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, storageErr("list documents", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list documents", err)
	}
	sortDocuments(docs)
	return docs, nil
}

func sortDocuments(docs []Document) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// Document returns the document with id.
func (s *Store) Document(ctx context.Context, id int64) (Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, documentColumns+` WHERE d.id = ?`, id))
	return d, notFound("get document", err)
}

// DocumentByName returns the document called name.
func (s *Store) DocumentByName(ctx context.Context, name string) (Document, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, documentColumns+` WHERE d.name = ?`, name))
	return d, notFound("get document by name", err)
}

// NameExists reports whether a document is called name.
func (s *Store) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE name = ?)`, name).Scan(&exists)
	return exists, storageErr("check name", err)
}

// DocumentExists reports whether a document with id is stored.
func (s *Store) DocumentExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE id = ?)`, id).Scan(&exists)
	return exists, storageErr("check document", err)
}

// PageCount returns the number of pages stored for a document.
func (s *Store) PageCount(ctx context.Context, docID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE document_id = ?`, docID).Scan(&n)
	return n, storageErr("count pages", err)
}

// Pages returns a document's pages in order, with their blocks and
// summaries but without images.
func (s *Store) Pages(ctx context.Context, docID int64) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, number, summary FROM pages WHERE document_id = ? ORDER BY number`, docID)
	if err != nil {
		return nil, storageErr("list pages", err)
	}
	var (
		pages []Page
		byID  = make(map[int64]int)
	)
	for rows.Next() {
		var (
			p   Page
			raw []byte
		)
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Number, &raw); err != nil {
			rows.Close()
			return nil, storageErr("list pages", err)
		}
		if len(raw) > 0 {
			summary, err := processor.UnmarshalSummary(raw)
			if err != nil {
				s.logger.Warn("unreadable page summary", "page_id", p.ID, "error", err)
			} else {
				p.Summary = summary
			}
		}
		p.Blocks = []Block{}
		byID[p.ID] = len(pages)
		pages = append(pages, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, storageErr("list pages", err)
	}
	if len(pages) == 0 {
		return pages, nil
	}

	blocks, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.page_id, b.bbox_left, b.bbox_top, b.bbox_width, b.bbox_height, b.conf, b.text
		 FROM blocks b JOIN pages p ON p.id = b.page_id
		 WHERE p.document_id = ? ORDER BY p.number, b.id`, docID)
	if err != nil {
		return nil, storageErr("list blocks", err)
	}
	defer blocks.Close()
	for blocks.Next() {
		var b Block
		if err := blocks.Scan(&b.ID, &b.PageID, &b.Left, &b.Top, &b.Width, &b.Height, &b.Conf, &b.Text); err != nil {
			return nil, storageErr("list blocks", err)
		}
		if i, ok := byID[b.PageID]; ok {
			pages[i].Blocks = append(pages[i].Blocks, b)
		}
	}
	if err := blocks.Err(); err != nil {
		return nil, storageErr("list blocks", err)
	}
	return pages, nil
}

// PageImage returns the stored PNG of a page.
func (s *Store) PageImage(ctx context.Context, docID int64, number int) ([]byte, error) {
	var img []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT image FROM pages WHERE document_id = ? AND number = ?`, docID, number).Scan(&img)
	return img, notFound("get page image", err)
}

// LoadCorpus returns every document with its pages, ordered like Documents.
func (s *Store) LoadCorpus(ctx context.Context) ([]DocumentPages, error) {
	docs, err := s.Documents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DocumentPages, 0, len(docs))
	for _, d := range docs {
		pages, err := s.Pages(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, DocumentPages{Document: d, Pages: pages})
	}
	return out, nil
}

// DeleteDocument removes a document with its pages and blocks and returns
// the number of rows removed.
func (s *Store) DeleteDocument(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := s.runTx(ctx, "delete document", func(tx *sql.Tx) error {
		var pages, blocks int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pages WHERE document_id = ?`, id).Scan(&pages); err != nil {
			return storageErr("count pages", err)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM blocks b JOIN pages p ON p.id = b.page_id WHERE p.document_id = ?`,
			id).Scan(&blocks); err != nil {
			return storageErr("count blocks", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
		if err != nil {
			return storageErr("delete document", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("delete document", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		removed = blocks + pages + n
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("document deleted", "document_id", id, "rows", removed)
	return removed, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return storageErr(op, err)
}
