package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ralph-api/internal/auth"
	"ralph-api/internal/logging"
	"ralph-api/pkg/importer"
)

type fakeImporter struct {
	opts    importer.Options
	body    []byte
	summary importer.Summary
	err     error
}

func (f *fakeImporter) ImportExcel(_ context.Context, r io.Reader, opts importer.Options) (importer.Summary, error) {
	f.opts = opts
	f.body, _ = io.ReadAll(r)
	return f.summary, f.err
}

type formFile struct {
	field, name string
	content     []byte
}

func uploadRequest(t *testing.T, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports/excel", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		UserID:   1,
		Username: "editor",
		Roles:    []string{"editor"},
	}))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestImportsHandler_UploadExcel(t *testing.T) {
	workbook := formFile{field: "file", name: "assets.xlsx", content: []byte("PK fake workbook")}

	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		handler := NewImportsHandler(&fakeImporter{}, logging.Discard())
		req := httptest.NewRequest(http.MethodPost, "/imports/excel", nil)
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "multipart/form-data")
	})

	t.Run("Requires kind without mapping", func(t *testing.T) {
		handler := NewImportsHandler(&fakeImporter{}, logging.Discard())
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, nil, workbook))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		fields := decodeBody(t, w)["fields"].(map[string]any)
		assert.Contains(t, fields, "kind")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		handler := NewImportsHandler(&fakeImporter{}, logging.Discard())
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, map[string]string{"kind": "domain"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		fields := decodeBody(t, w)["fields"].(map[string]any)
		assert.Contains(t, fields, "file")
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		handler := NewImportsHandler(&fakeImporter{}, logging.Discard())
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, map[string]string{"kind": "domain"},
			formFile{field: "file", name: "assets.xls", content: []byte("x")}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Only .xlsx files are accepted.")
	})

	t.Run("Rejects an invalid mapping", func(t *testing.T) {
		handler := NewImportsHandler(&fakeImporter{}, logging.Discard())
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, nil, workbook,
			formFile{field: "mapping", name: "map.yaml", content: []byte("sheets:\n  Hosts:\n    kind: spaceship\n")}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		fields := decodeBody(t, w)["fields"].(map[string]any)
		assert.Contains(t, fields, "mapping")
	})

	t.Run("Passes options to the importer", func(t *testing.T) {
		fake := &fakeImporter{summary: importer.Summary{Inserted: 2, DryRun: true}}
		handler := NewImportsHandler(fake, logging.Discard())
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, map[string]string{
			"kind":       "domain",
			"dry_run":    "true",
			"max_errors": "5",
		}, workbook))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "domain", fake.opts.Kind)
		assert.True(t, fake.opts.DryRun)
		assert.Equal(t, 5, fake.opts.MaxErrors)
		assert.Nil(t, fake.opts.Mapping)
		assert.Equal(t, workbook.content, fake.body)

		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, float64(2), data["inserted"])
		assert.Equal(t, true, data["dry_run"])
	})

	t.Run("Uses an uploaded mapping", func(t *testing.T) {
		fake := &fakeImporter{}
		handler := NewImportsHandler(fake, logging.Discard())
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, nil, workbook,
			formFile{field: "mapping", name: "map.yaml", content: []byte("version: 1\nsheets:\n  Domains:\n    kind: domain\n    natural_key: [name]\n")}))

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, fake.opts.Mapping)
		assert.Equal(t, "domain", fake.opts.Mapping.Sheets["Domains"].Kind)
		assert.Equal(t, importer.DefaultMaxErrors, fake.opts.MaxErrors)
	})

	t.Run("Reports import failures", func(t *testing.T) {
		fake := &fakeImporter{
			summary: importer.Summary{Errors: 51},
			err:     errors.Wrap(importer.ErrTooManyErrors, "51 errors"),
		}
		handler := NewImportsHandler(fake, logging.Discard())
		w := httptest.NewRecorder()
		handler.UploadExcel(w, uploadRequest(t, map[string]string{"kind": "domain"}, workbook))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "IMPORT_FAILED", body["code"])
		assert.Contains(t, body["error"], "too many errors")
	})
}

func TestIsXLSX(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Valid xlsx", "test.xlsx", true},
		{"Valid xlsx uppercase", "TEST.XLSX", true},
		{"Valid xlsx mixed case", "Test.XlSx", true},
		{"Invalid xls", "test.xls", false},
		{"Invalid xlsm", "test.xlsm", false},
		{"No extension", "test", false},
		{"Empty filename", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &multipart.FileHeader{Filename: tt.filename}
			assert.Equal(t, tt.expected, isXLSX(header))
		})
	}
}
