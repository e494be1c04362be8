// Package worker runs OCR batches in the background: it takes jobs off a
// FIFO queue, fans their pages out over a goroutine pool, commits each
// finished batch and reports progress on an outbound message channel.
package worker

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/processor"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/google/uuid"
)

var (
	// ErrEmptyName rejects a new-document job without a name.
	ErrEmptyName = errors.New("document name is empty")
	// ErrNoFiles rejects a job without input files.
	ErrNoFiles = errors.New("no files selected")
	// ErrDuplicateName rejects a new-document job whose name is taken.
	ErrDuplicateName = errors.New("document name already exists")
	// ErrEmptyBatch reports a batch in which every page failed.
	ErrEmptyBatch = errors.New("batch produced no pages")
	// ErrShutdown is returned by Submit once the worker is stopping.
	ErrShutdown = errors.New("worker is shut down")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("worker is already running")
	// ErrPagePanic marks a page whose processing panicked.
	ErrPagePanic = errors.New("page processing panicked")
)

// Job is one batch of pages destined for a single document.
type Job struct {
	ID string
	// Name is used when a new document is created.
	Name string
	// ExistingID appends to a stored document when set.
	ExistingID *int64
	// Cleanup maps a source path to the temporary directory holding its
	// extracted pages. The directories are removed once the batch ends.
	Cleanup map[string]string
	Files   []string
	Config  ocr.Config
}

func (j *Job) clone() *Job {
	c := *j
	if j.ExistingID != nil {
		id := *j.ExistingID
		c.ExistingID = &id
	}
	c.Cleanup = maps.Clone(j.Cleanup)
	c.Files = slices.Clone(j.Files)
	return &c
}

// PageProcessor turns one page file into a result.
type PageProcessor interface {
	ProcessImage(ctx context.Context, index int, path string, cfg ocr.Config) (*processor.PageResult, error)
}

// Committer persists a finished batch.
type Committer interface {
	Commit(ctx context.Context, name string, existingID *int64, pages []store.NewPage) (int64, error)
}

// NameChecker reports whether a document name is taken and whether an
// append target is still stored.
type NameChecker interface {
	NameExists(ctx context.Context, name string) (bool, error)
	DocumentExists(ctx context.Context, id int64) (bool, error)
}

// validate checks a job before it is queued.
func validate(ctx context.Context, job *Job, names NameChecker) error {
	if len(job.Files) == 0 {
		return ErrNoFiles
	}
	if err := job.Config.Validate(); err != nil {
		return err
	}
	if job.ExistingID != nil {
		if names == nil {
			return nil
		}
		// A vanished target makes Commit create a new document, so the job
		// must then carry a usable name.
		found, err := names.DocumentExists(ctx, *job.ExistingID)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	if strings.TrimSpace(job.Name) == "" {
		return ErrEmptyName
	}
	if names == nil {
		return nil
	}
	exists, err := names.NameExists(ctx, job.Name)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateName
	}
	return nil
}

func newJobID() string {
	return uuid.NewString()
}
