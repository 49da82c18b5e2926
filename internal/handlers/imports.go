package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ralph-api/internal/auth"
	"ralph-api/pkg/importer"
)

// ExcelImporter is implemented by *importer.Importer
type ExcelImporter interface {
	ImportExcel(ctx context.Context, r io.Reader, opts importer.Options) (importer.Summary, error)
}

// ImportsHandler handles Excel import operations
type ImportsHandler struct {
	Importer ExcelImporter
	MaxBytes int64
	Log      logrus.FieldLogger
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(imp ExcelImporter, log logrus.FieldLogger) *ImportsHandler {
	return &ImportsHandler{
		Importer: imp,
		MaxBytes: 20 << 20, // 20 MB
		Log:      log,
	}
}

// UploadExcel imports the objects of an uploaded workbook. The form carries
// the file, and either a YAML mapping file or the kind every sheet holds.
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		badRequest(w, "file", "Content-Type must be multipart/form-data.")
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		badRequest(w, "file", "Invalid multipart form: "+err.Error())
		return
	}

	opts := importer.Options{
		Kind:      strings.TrimSpace(r.FormValue("kind")),
		DryRun:    r.FormValue("dry_run") == "true",
		MaxErrors: importer.DefaultMaxErrors,
	}
	if v := r.FormValue("max_errors"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxErrors = n
		}
	}

	mf, _, err := r.FormFile("mapping")
	switch {
	case err == nil:
		defer mf.Close()
		if opts.Mapping, err = importer.LoadMapping(mf); err != nil {
			badRequest(w, "mapping", err.Error())
			return
		}
	case errors.Is(err, http.ErrMissingFile):
		if opts.Kind == "" {
			badRequest(w, "kind", "This field is required when no mapping is uploaded.")
			return
		}
	default:
		badRequest(w, "mapping", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file", "This field is required.")
		return
	}
	defer file.Close()
	if !isXLSX(header) {
		badRequest(w, "file", "Only .xlsx files are accepted.")
		return
	}

	log := h.Log.WithFields(logrus.Fields{
		"file":     header.Filename,
		"username": auth.UsernameFromContext(r.Context()),
		"dry_run":  opts.DryRun,
	})
	sum, err := h.Importer.ImportExcel(r.Context(), file, opts)
	if err != nil {
		log.WithError(err).Warn("excel import failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": err.Error(),
			"code":  "IMPORT_FAILED",
			"data":  sum,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

func badRequest(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "Validation failed",
		"code":   "VALIDATION_ERROR",
		"fields": map[string][]string{field: {msg}},
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
