package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ralph-api/internal/auth"
	"ralph-api/internal/inventory"
	"ralph-api/internal/store"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func sendError(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError maps inventory and store errors onto HTTP responses
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	var verr *store.ValidationError
	var cerr *store.ConflictError
	switch {
	case errors.As(err, &verr):
		sendError(w, http.StatusBadRequest, errorBody{Error: "Validation failed", Code: "VALIDATION_ERROR", Fields: verr.Fields})
	case errors.As(err, &cerr):
		sendError(w, http.StatusBadRequest, errorBody{Error: "Validation failed", Code: "VALIDATION_ERROR", Fields: conflictFields(cerr.Field)})
	case errors.Is(err, store.ErrProtected):
		sendError(w, http.StatusBadRequest, errorBody{Error: store.ProtectedMessage(err), Code: "PROTECTED"})
	case errors.Is(err, store.ErrNotFound):
		sendError(w, http.StatusNotFound, errorBody{Error: "Not found.", Code: "NOT_FOUND"})
	case errors.Is(err, inventory.ErrReadOnly):
		sendMethodNotAllowed(w, r)
	default:
		log.WithError(err).WithField("request_id", RequestIDFromContext(r.Context())).Error("request failed")
		auth.SendErrorResponse(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// conflictFields renders a unique violation. Composite keys become a
// non-field error.
func conflictFields(field string) map[string][]string {
	if field == "" {
		return map[string][]string{"non_field_errors": {"This object already exists."}}
	}
	if strings.Contains(field, ",") {
		return map[string][]string{"non_field_errors": {fmt.Sprintf("The fields %s must make a unique set.", field)}}
	}
	return map[string][]string{field: {fmt.Sprintf("Object with this %s already exists.", field)}}
}

func sendMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	sendError(w, http.StatusMethodNotAllowed, errorBody{
		Error: fmt.Sprintf("Method \"%s\" not allowed.", r.Method),
		Code:  "METHOD_NOT_ALLOWED",
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	sendMethodNotAllowed(w, r)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	sendError(w, http.StatusNotFound, errorBody{Error: "Not found.", Code: "NOT_FOUND"})
}

func sendInvalidJSON(w http.ResponseWriter, err error) {
	sendError(w, http.StatusBadRequest, errorBody{Error: "Invalid request body: " + err.Error(), Code: "INVALID_JSON"})
}
