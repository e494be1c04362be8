package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/notely/internal/search"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/MeKo-Tech/notely/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// documentsHandler lists documents (GET) or submits an upload batch (POST).
func (s *Server) documentsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listDocuments(w, r)
	case http.MethodPost:
		s.uploadHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	mode, err := search.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var corpus []store.DocumentPages
	if mode == search.ByContent && query != "" {
		corpus, err = s.library.LoadCorpus(r.Context())
	} else {
		var docs []store.Document
		docs, err = s.library.Documents(r.Context())
		corpus = make([]store.DocumentPages, len(docs))
		for i, d := range docs {
			corpus[i] = store.DocumentPages{Document: d}
		}
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	docs := search.FilterDocuments(corpus, query, mode)
	if docs == nil {
		docs = []store.Document{}
	}
	s.writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs, Count: len(docs)})
}

// documentHandler returns (GET) or deletes (DELETE) one document.
func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := s.library.Document(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		pages, err := s.library.Pages(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, DocumentResponse{Document: doc, Pages: pages})
	case http.MethodDelete:
		removed, err := s.library.DeleteDocument(r.Context(), id)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, DeleteResponse{ID: id, Removed: removed})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// searchHandler returns the pages of a document whose blocks match q.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}

	idx, ok := s.pageIndex(w, r, id, r.URL.Query().Get("q"))
	if !ok {
		return
	}

	resp := SearchResponse{Query: r.URL.Query().Get("q"), Pages: []SearchPage{}}
	for _, n := range idx.Pages() {
		page := SearchPage{Number: n}
		for _, b := range idx.Matches(n) {
			page.Blocks = append(page.Blocks, SearchBlock{Block: b, Tier: search.Tier(b.Conf).String()})
		}
		resp.Pages = append(resp.Pages, page)
	}
	resp.Count = len(resp.Pages)
	searchQueriesTotal.WithLabelValues(strconv.FormatBool(resp.Count > 0)).Inc()
	s.writeJSON(w, http.StatusOK, resp)
}

// pageImageHandler returns a stored page as PNG. With ?highlight=q the
// matching blocks are outlined in their confidence color.
func (s *Server) pageImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}
	number, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || number < 0 {
		s.writeErrorResponse(w, "Invalid page number", http.StatusBadRequest)
		return
	}

	data, err := s.library.PageImage(r.Context(), id, number)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	query := r.URL.Query().Get("highlight")
	if query == "" {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
		return
	}

	idx, ok := s.pageIndex(w, r, id, query)
	if !ok {
		return
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Stored page is not a valid image: %v", err), http.StatusInternalServerError)
		return
	}
	out := search.RenderHighlights(img, idx.Matches(number))

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, out); err != nil {
		s.logger.Error("Failed to encode highlighted page", "error", err)
	}
}

// batchHandler withdraws a queued batch or cancels the running one.
func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.batches == nil {
		s.writeErrorResponse(w, "Batch processing not available", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	switch {
	case s.batches.Withdraw(id):
		s.writeJSON(w, http.StatusOK, WithdrawResponse{BatchID: id, Status: "withdrawn"})
	case s.batches.Cancel(id):
		s.writeJSON(w, http.StatusOK, WithdrawResponse{BatchID: id, Status: "canceled"})
	default:
		s.writeErrorResponse(w, "Batch not found or already finished", http.StatusNotFound)
	}
}

// pageIndex loads a document's pages and indexes them for query.
func (s *Server) pageIndex(w http.ResponseWriter, r *http.Request, id int64, query string) (*search.PageIndex, bool) {
	caseSensitive := s.caseSensitive
	if v := r.URL.Query().Get("case_sensitive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeErrorResponse(w, "Invalid case_sensitive value", http.StatusBadRequest)
			return nil, false
		}
		caseSensitive = b
	}
	fuzzy := s.fuzzyDistance
	if v := r.URL.Query().Get("fuzzy"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeErrorResponse(w, "Invalid fuzzy value", http.StatusBadRequest)
			return nil, false
		}
		fuzzy = n
	}

	if _, err := s.library.Document(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return nil, false
	}
	pages, err := s.library.Pages(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return nil, false
	}
	return search.BuildPageIndex(pages, query, caseSensitive, search.WithApproximate(fuzzy)), true
}

func (s *Server) documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeErrorResponse(w, "Invalid document id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeStoreError maps store errors to status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeErrorResponse(w, "Not found", http.StatusNotFound)
	case errors.Is(err, store.ErrDuplicateName):
		s.writeErrorResponse(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error("Store request failed", "error", err)
		s.writeErrorResponse(w, "Storage error", http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
