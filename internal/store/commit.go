package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"

	"github.com/MeKo-Tech/notely/internal/ocr"
)

// Commit writes a batch of pages in a single transaction and returns the
// document id they were stored under.
//
// When existingID names a stored document the pages are appended after its
// current last page. Otherwise a new document called name is created, which
// fails with ErrEmptyName or ErrDuplicateName before anything is written.
// Pages are numbered in Index order. Only tokens with visible text become
// blocks. On any error nothing is persisted.
func (s *Store) Commit(ctx context.Context, name string, existingID *int64, pages []NewPage) (int64, error) {
	if len(pages) == 0 {
		return 0, ErrNoPages
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	ordered := slices.Clone(pages)
	slices.SortStableFunc(ordered, func(a, b NewPage) int { return cmp.Compare(a.Index, b.Index) })

	var docID int64
	err := s.runTx(ctx, "commit", func(tx *sql.Tx) error {
		id, start, err := s.resolveTarget(ctx, tx, name, existingID)
		if err != nil {
			return err
		}
		docID = id

		pageStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO pages (document_id, number, image, summary) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return storageErr("prepare page insert", err)
		}
		defer pageStmt.Close()

		blockStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO blocks (page_id, bbox_left, bbox_top, bbox_width, bbox_height, conf, text)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return storageErr("prepare block insert", err)
		}
		defer blockStmt.Close()

		for i, p := range ordered {
			res, err := pageStmt.ExecContext(ctx, docID, start+i, nonNil(p.Image), nonNil(p.Summary))
			if err != nil {
				return storageErr("insert page", err)
			}
			pageID, err := res.LastInsertId()
			if err != nil {
				return storageErr("insert page", err)
			}
			for _, tok := range p.Tokens {
				if ocr.IsBlank(tok.Text) {
					continue
				}
				if _, err := blockStmt.ExecContext(ctx, pageID,
					max(0, tok.Left), max(0, tok.Top), max(0, tok.Width), max(0, tok.Height),
					ocr.ClampConfidence(tok.Conf), tok.Text); err != nil {
					return storageErr("insert block", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("batch committed", "document_id", docID, "pages", len(ordered))
	return docID, nil
}

// resolveTarget returns the document to write into and the first free page
// number.
func (s *Store) resolveTarget(ctx context.Context, tx *sql.Tx, name string, existingID *int64) (int64, int, error) {
	if existingID != nil {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE id = ?`, *existingID).Scan(&id)
		switch {
		case err == nil:
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM pages WHERE document_id = ?`, id).Scan(&n); err != nil {
				return 0, 0, storageErr("count pages", err)
			}
			return id, n, nil
		case errors.Is(err, sql.ErrNoRows):
			s.logger.Warn("append target missing, creating new document", "document_id", *existingID, "name", name)
		default:
			return 0, 0, storageErr("lookup document", err)
		}
	}

	if strings.TrimSpace(name) == "" {
		return 0, 0, ErrEmptyName
	}
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE name = ?)`, name).Scan(&exists); err != nil {
		return 0, 0, storageErr("check name", err)
	}
	if exists {
		return 0, 0, ErrDuplicateName
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, created_at) VALUES (?, ?)`, name, s.now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, 0, ErrDuplicateName
		}
		return 0, 0, storageErr("insert document", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, 0, storageErr("insert document", err)
	}
	return id, 0, nil
}

// runTx runs fn inside a transaction, rolling back if fn or the commit fail.
func (s *Store) runTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", "op", op, "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op+": commit", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
