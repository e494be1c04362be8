package worker

import "fmt"

// Message is an outbound notification from the worker. It is one of
// Progress, BatchDone, BatchFailed or Shutdown.
type Message interface {
	isMessage()
}

// Progress is emitted after every finished page of a batch.
type Progress struct {
	BatchID string  `json:"batch_id"`
	Done    int     `json:"done"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// PageFailure describes a page left out of a commit.
type PageFailure struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Err   error  `json:"-"`
}

func (f PageFailure) String() string {
	return fmt.Sprintf("page %d (%s): %v", f.Index, f.Path, f.Err)
}

// BatchDone is emitted once a batch has been committed.
type BatchDone struct {
	BatchID    string        `json:"batch_id"`
	DocumentID int64         `json:"document_id"`
	Pages      int           `json:"pages"`
	Failed     []PageFailure `json:"failed,omitempty"`
}

// BatchFailed is emitted when a batch ends without a commit.
type BatchFailed struct {
	BatchID string `json:"batch_id"`
	Err     error  `json:"-"`
}

// Shutdown is the last message before the channel closes.
type Shutdown struct{}

func (Progress) isMessage()    {}
func (BatchDone) isMessage()   {}
func (BatchFailed) isMessage() {}
func (Shutdown) isMessage()    {}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100.0
}
