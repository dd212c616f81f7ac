// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"fjacquet/bill-csv/internal/common"
	"fjacquet/bill-csv/internal/currencyutils"
	"fjacquet/bill-csv/internal/logging"
	"fjacquet/bill-csv/internal/models"
	"fjacquet/bill-csv/internal/parsererror"
	"fjacquet/bill-csv/internal/report"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Response headers carrying batch metadata next to the CSV body.
const (
	HeaderAverageAmount   = "X-Average-Amount"
	HeaderBatchID         = "X-Batch-ID"
	HeaderFailedDocuments = "X-Failed-Documents"
)

const (
	formField       = "files"
	maxMemoryBuffer = 32 << 20
	shutdownTimeout = 10 * time.Second
)

// BatchRunner runs a batch of documents.
type BatchRunner interface {
	Run(ctx context.Context, docs []models.Document) (*models.BatchReport, error)
}

// Config controls the HTTP server.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	Delimiter      rune
	FileName       string
}

// Server serves the upload endpoint.
type Server struct {
	cfg     Config
	runner  BatchRunner
	reports *report.Generator
	logger  logging.Logger
	router  *chi.Mux
}

// New creates a server and its routes.
func New(cfg Config, runner BatchRunner, reports *report.Generator, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	if cfg.FileName == "" {
		cfg.FileName = models.DefaultOutputFile
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = maxMemoryBuffer
	}
	if reports == nil {
		reports = report.NewGenerator(logger)
	}

	s := &Server{cfg: cfg, runner: runner, reports: reports, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/extract", s.handleExtract)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.Field{Key: "addr", Value: s.cfg.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			logging.Field{Key: logging.FieldRequestID, Value: middleware.GetReqID(r.Context())},
			logging.Field{Key: "method", Value: r.Method},
			logging.Field{Key: "path", Value: r.URL.Path},
			logging.Field{Key: logging.FieldStatus, Value: ww.Status()},
			logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(min(s.cfg.MaxUploadBytes, maxMemoryBuffer)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.WithError(err).Warn("Failed to remove multipart temp files")
		}
	}()

	files := r.MultipartForm.File[formField]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("no files uploaded in field %q", formField))
		return
	}

	docs, err := readDocuments(files)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batchReport, err := s.runner.Run(r.Context(), docs)
	if err != nil {
		s.logger.WithError(err).Warn("Extraction request failed",
			logging.Field{Key: logging.FieldRequestID, Value: middleware.GetReqID(r.Context())})
		writeError(w, statusFor(err), err.Error())
		return
	}

	if r.URL.Query().Get("format") == report.FormatJSON {
		body, err := s.reports.Generate(batchReport, report.FormatJSON)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to render report")
			return
		}
		setBatchHeaders(w, batchReport)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	var buf bytes.Buffer
	if err := common.WriteRecordsCSV(&buf, batchReport.Table, s.cfg.Delimiter); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render CSV")
		return
	}

	setBatchHeaders(w, batchReport)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.cfg.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func readDocuments(files []*multipart.FileHeader) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("cannot read upload %s: %w", fh.Filename, err)
		}
		docs = append(docs, models.Document{Name: filepath.Base(fh.Filename), Data: data})
	}
	return docs, nil
}

func setBatchHeaders(w http.ResponseWriter, r *models.BatchReport) {
	w.Header().Set(HeaderBatchID, r.BatchID)
	w.Header().Set(HeaderAverageAmount, currencyutils.FormatAverage(r.Average()))
	w.Header().Set(HeaderFailedDocuments, strconv.Itoa(len(r.Failures)))
}

func statusFor(err error) int {
	switch parsererror.KindOf(err) {
	case models.FailureRemoteService:
		return http.StatusBadGateway
	case models.FailureTimeout:
		return http.StatusGatewayTimeout
	case models.FailureCanceled:
		return http.StatusServiceUnavailable
	case models.FailureInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
