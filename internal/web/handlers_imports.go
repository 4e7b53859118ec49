package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
	"github.com/go-chi/chi/v5"
)

// importsResponse wraps the history listing.
type importsResponse struct {
	Imports []core.ImportRun `json:"imports"`
}

// handleImport imports an uploaded CSV or XLSX file for a tenant and returns
// the import report.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	if r.ContentLength > maxSize {
		respondError(w, r, errFileTooLarge, http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: %v", errFileTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	ct, err := core.ParseContentType(header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		respondError(w, r, err, http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		respondError(w, r, errEmptyFile, http.StatusBadRequest)
		return
	}

	ctx := withRequestMetadata(r.Context(), r, tenantID)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.Timeout)
	defer cancel()

	logging.FromContext(ctx).Info("import received",
		"file", header.Filename,
		"size", len(data),
		"content_type", ct.String(),
	)

	report, err := s.service.Import(ctx, core.ImportRequest{
		TenantID:    tenantID,
		FileName:    header.Filename,
		ContentType: ct,
		Data:        data,
		DryRun:      parseBoolParam(r, "dry_run", false),
	})
	if err != nil {
		status := importStatus(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.Upload.MaxWaitTime.Seconds())))
		}
		respondError(w, r, err, status)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleListImports returns the tenant's most recent import runs.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantParam(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	limit := parseIntParam(r, "limit", s.cfg.Import.HistoryLimit)

	ctx := logging.ContextWithTenant(r.Context(), tenantID)
	runs, err := s.service.ListImports(ctx, tenantID, limit)
	if err != nil {
		respondError(w, r, err, importStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, importsResponse{Imports: runs})
}

// tenantParam parses the {tenantID} path parameter.
func tenantParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "tenantID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidTenant, raw)
	}
	return id, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseBoolParam parses a boolean query parameter with a default value.
func parseBoolParam(r *http.Request, name string, defaultVal bool) bool {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
