package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Library is the read and delete side of the document store.
type Library interface {
	Documents(ctx context.Context) ([]store.Document, error)
	Document(ctx context.Context, id int64) (store.Document, error)
	DocumentByName(ctx context.Context, name string) (store.Document, error)
	DocumentExists(ctx context.Context, id int64) (bool, error)
	Pages(ctx context.Context, docID int64) ([]store.Page, error)
	PageImage(ctx context.Context, docID int64, number int) ([]byte, error)
	LoadCorpus(ctx context.Context) ([]store.DocumentPages, error)
	DeleteDocument(ctx context.Context, id int64) (int64, error)
}

// Batches is the submission side of the background worker.
type Batches interface {
	Submit(ctx context.Context, job worker.Job) (string, error)
	Withdraw(id string) bool
	Cancel(id string) bool
}

// ProgressSource lets the server subscribe to worker messages.
type ProgressSource interface {
	Add(l worker.Listener) (remove func())
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	library     Library
	batches     Batches
	progress    ProgressSource
	hub         *progressHub
	rateLimiter *RateLimiter
	logger      *slog.Logger
	stopPrune   chan struct{}
	closeOnce   sync.Once

	corsOrigin    string
	maxUploadMB   int64
	timeoutSec    int
	uploadDir     string
	ocrConfig     ocr.Config
	caseSensitive bool
	fuzzyDistance int
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// UploadDir receives uploaded files until their batch ends. Empty means
	// the system temp directory.
	UploadDir string
	// OCR is the default recognition config for uploads.
	OCR           ocr.Config
	CaseSensitive bool
	FuzzyDistance int
	RateLimit     RateLimitConfig
	Logger        *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type DocumentListResponse struct {
	Documents []store.Document `json:"documents"`
	Count     int              `json:"count"`
}

type DocumentResponse struct {
	store.Document
	Pages []store.Page `json:"pages"`
}

type SubmitResponse struct {
	BatchID string `json:"batch_id"`
	Files   int    `json:"files"`
}

type DeleteResponse struct {
	ID      int64 `json:"id"`
	Removed int64 `json:"removed"`
}

type WithdrawResponse struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"` // "withdrawn" or "canceled"
}

// SearchBlock is a matched block with its confidence tier.
type SearchBlock struct {
	store.Block
	Tier string `json:"tier"`
}

type SearchPage struct {
	Number int           `json:"number"`
	Blocks []SearchBlock `json:"blocks"`
}

type SearchResponse struct {
	Query string       `json:"query"`
	Pages []SearchPage `json:"pages"`
	Count int          `json:"count"`
}

// ErrMissingDependency is returned by NewServer without a library.
var ErrMissingDependency = errors.New("server requires a document library")

// NewServer creates a new server. batches and progress may be nil for a
// read-only server.
func NewServer(config Config, library Library, batches Batches, progress ProgressSource) (*Server, error) {
	if library == nil {
		return nil, ErrMissingDependency
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	uploadDir := config.UploadDir
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	s := &Server{
		library:       library,
		batches:       batches,
		progress:      progress,
		logger:        logger,
		corsOrigin:    config.CORSOrigin,
		maxUploadMB:   config.MaxUploadMB,
		timeoutSec:    config.TimeoutSec,
		uploadDir:     uploadDir,
		ocrConfig:     config.OCR,
		caseSensitive: config.CaseSensitive,
		fuzzyDistance: config.FuzzyDistance,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if config.RateLimit.Enabled {
		rl := config.RateLimit
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
		s.stopPrune = make(chan struct{})
		go s.pruneClients(rateLimitPruneInterval)
	}
	s.hub = newProgressHub(logger)
	return s, nil
}

// rateLimitPruneInterval is how often clients idle for a day are dropped.
const rateLimitPruneInterval = time.Hour

func (s *Server) pruneClients(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.rateLimiter.Prune(24 * time.Hour); n > 0 {
				s.logger.Debug("Pruned idle rate limit clients", "count", n)
			}
		case <-s.stopPrune:
			return
		}
	}
}

// Close detaches from the progress source and closes websocket clients.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		if s.stopPrune != nil {
			close(s.stopPrune)
		}
		s.hub.close()
	})
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/documents", s.corsMiddleware(s.rateLimitMiddleware(s.documentsHandler)))
	mux.HandleFunc("/documents/{id}", s.corsMiddleware(s.documentHandler))
	mux.HandleFunc("/documents/{id}/search", s.corsMiddleware(s.searchHandler))
	mux.HandleFunc("/documents/{id}/pages/{n}/image", s.corsMiddleware(s.pageImageHandler))
	mux.HandleFunc("/batches/{id}", s.corsMiddleware(s.batchHandler))
	mux.HandleFunc("/ws/progress", s.progressWebSocketHandler)
	if s.progress != nil {
		s.hub.attach(s.progress)
	}
}
