package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/notely/internal/ocr"
	"github.com/MeKo-Tech/notely/internal/pdf"
	"github.com/MeKo-Tech/notely/internal/store"
	"github.com/MeKo-Tech/notely/internal/utils"
	"github.com/MeKo-Tech/notely/internal/worker"
)

// uploadFormField is the multipart field carrying page files.
const uploadFormField = "files"

// uploadHandler stores the uploaded files, splits PDFs into page images and
// submits one batch. It answers 202 with the batch id; progress follows on
// /ws/progress.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if s.batches == nil {
		s.writeErrorResponse(w, "Batch processing not available", http.StatusServiceUnavailable)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		s.handleFormParseError(w, err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadFormField]
	if len(headers) == 0 {
		uploadsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, "No files provided", http.StatusBadRequest)
		return
	}

	job, status, err := s.parseJob(r)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, err.Error(), status)
		return
	}

	dir, saved, status, err := s.saveUploads(headers)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, err.Error(), status)
		return
	}

	files, cleanup, err := pdf.SplitAll(r.Context(), saved, pdf.WithPages(r.FormValue("pages")))
	if err != nil {
		_ = os.RemoveAll(dir)
		uploadsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Failed to split PDF: %v", err), http.StatusBadRequest)
		return
	}
	cleanup[dir] = dir
	job.Files = files
	job.Cleanup = cleanup

	id, err := s.batches.Submit(r.Context(), job)
	if err != nil {
		pdf.RemoveAll(cleanup)
		uploadsTotal.WithLabelValues("rejected").Inc()
		s.writeErrorResponse(w, err.Error(), submitStatus(err))
		return
	}

	uploadsTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("Batch submitted", "batch_id", id, "name", job.Name, "pages", len(files))
	s.writeJSON(w, http.StatusAccepted, SubmitResponse{BatchID: id, Files: len(files)})
}

// parseJob reads the target document and recognition options from the form.
func (s *Server) parseJob(r *http.Request) (worker.Job, int, error) {
	job := worker.Job{Name: strings.TrimSpace(r.FormValue("name")), Config: s.ocrConfig}

	if v := r.FormValue("document_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return job, http.StatusBadRequest, errors.New("invalid document_id")
		}
		found, err := s.library.DocumentExists(r.Context(), id)
		if err != nil {
			return job, http.StatusInternalServerError, errors.New("storage error")
		}
		if !found {
			return job, http.StatusNotFound, fmt.Errorf("document %d not found", id)
		}
		job.ExistingID = &id
	} else if appendTo, _ := strconv.ParseBool(r.FormValue("append")); appendTo {
		doc, err := s.library.DocumentByName(r.Context(), job.Name)
		if errors.Is(err, store.ErrNotFound) {
			return job, http.StatusNotFound, fmt.Errorf("document %q not found", job.Name)
		}
		if err != nil {
			return job, http.StatusInternalServerError, errors.New("storage error")
		}
		job.ExistingID = &doc.ID
	}

	for field, dst := range map[string]*int{"oem": &job.Config.EngineMode, "psm": &job.Config.SegmentationMode} {
		if v := r.FormValue(field); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return job, http.StatusBadRequest, fmt.Errorf("invalid %s value", field)
			}
			*dst = n
		}
	}
	for field, dst := range map[string]*bool{"best": &job.Config.UseBestModel, "preprocess": &job.Config.Preprocess} {
		if v := r.FormValue(field); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return job, http.StatusBadRequest, fmt.Errorf("invalid %s value", field)
			}
			*dst = b
		}
	}
	return job, http.StatusOK, nil
}

// saveUploads copies the uploaded files into a fresh directory below
// uploadDir. Names are prefixed with their position so order survives.
func (s *Server) saveUploads(headers []*multipart.FileHeader) (string, []string, int, error) {
	dir, err := os.MkdirTemp(s.uploadDir, "notely-upload-*")
	if err != nil {
		s.logger.Error("Failed to create upload dir", "error", err)
		return "", nil, http.StatusInternalServerError, errors.New("failed to store upload")
	}

	saved := make([]string, 0, len(headers))
	for i, h := range headers {
		name := fmt.Sprintf("%03d_%s", i, filepath.Base(h.Filename))
		if !utils.IsSupportedImage(name) && !pdf.IsPDF(name) {
			_ = os.RemoveAll(dir)
			return "", nil, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported file type: %s", h.Filename)
		}
		path := filepath.Join(dir, name)
		if err := copyUpload(h, path); err != nil {
			_ = os.RemoveAll(dir)
			s.logger.Error("Failed to store upload", "file", h.Filename, "error", err)
			return "", nil, http.StatusInternalServerError, errors.New("failed to store upload")
		}
		uploadSizeBytes.Observe(float64(h.Size))
		saved = append(saved, path)
	}
	return dir, saved, http.StatusOK, nil
}

func copyUpload(h *multipart.FileHeader, path string) error {
	src, err := h.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(path) //nolint:gosec // path is below our own temp dir
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// submitStatus maps a Submit error to a status code.
func submitStatus(err error) int {
	switch {
	case errors.Is(err, worker.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, worker.ErrEmptyName), errors.Is(err, worker.ErrNoFiles), errors.Is(err, ocr.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, worker.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "body too large") {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
}
