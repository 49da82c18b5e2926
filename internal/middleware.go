package internal

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for the request id
	RequestIDKey contextKey = "requestID"
)

// RequestIDFromContext returns the id assigned by requestLogger
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// requestLogger assigns a request id, echoes it in X-Request-ID and writes
// one access log entry per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), RequestIDKey, id)

		rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(ctx))

		route := r.URL.Path
		if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil && len(chiCtx.RoutePatterns) > 0 {
			route = chiCtx.RoutePatterns[len(chiCtx.RoutePatterns)-1]
		}
		entry := s.Log.WithFields(logrus.Fields{
			"request_id":  id,
			"method":      r.Method,
			"route":       route,
			"status":      rw.code,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if rw.code >= http.StatusInternalServerError {
			entry.Error("request failed")
			return
		}
		entry.Info("request served")
	})
}

// errRollback aborts the request transaction after a client or server error
var errRollback = errors.New("rollback")

// withTx runs the handler inside a store transaction. The response is
// buffered and the transaction commits only when the status is below 400.
func (s *Server) withTx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := newBufferedWriter()
		err := s.Store.WithTx(r.Context(), func(ctx context.Context) error {
			next.ServeHTTP(buf, r.WithContext(ctx))
			if buf.code >= http.StatusBadRequest {
				return errRollback
			}
			return nil
		})
		if err != nil && !errors.Is(err, errRollback) {
			s.Log.WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).Error("commit failed")
			writeError(w, r, s.Log, err)
			return
		}
		buf.flush(w)
	})
}

// bufferedWriter holds a response until the transaction outcome is known
type bufferedWriter struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: http.Header{}, code: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferedWriter) WriteHeader(code int) { b.code = code }

func (b *bufferedWriter) flush(w http.ResponseWriter) {
	for k, v := range b.header {
		w.Header()[k] = v
	}
	w.WriteHeader(b.code)
	w.Write(b.body.Bytes())
}
