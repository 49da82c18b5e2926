package internal

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ralph-api/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// parseListParams parses limit, offset, q and sort from the request.
// Defaults: limit=50 (max 500), offset=0. `ordering` is accepted as an
// alias of sort.
func parseListParams(r *http.Request) store.ListOptions {
	values := r.URL.Query()

	limit := defaultLimit
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > maxLimit {
				v = maxLimit
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	sort := strings.TrimSpace(values.Get("sort"))
	if sort == "" {
		sort = strings.TrimSpace(values.Get("ordering"))
	}

	return store.ListOptions{
		Limit:  limit,
		Offset: offset,
		Query:  strings.TrimSpace(values.Get("q")),
		Name:   strings.TrimSpace(values.Get("name")),
		Sort:   sort,
	}
}

// listResponse is the paginated envelope of list endpoints
type listResponse struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// sendListResponse writes a page with links to the neighbouring pages
func (s *Server) sendListResponse(w http.ResponseWriter, r *http.Request, results any, total int, opts store.ListOptions) {
	resp := listResponse{Count: total, Results: results}
	if opts.Offset+opts.Limit < total {
		resp.Next = s.pageURL(r, opts.Limit, opts.Offset+opts.Limit)
	}
	if opts.Offset > 0 {
		prev := opts.Offset - opts.Limit
		if prev < 0 {
			prev = 0
		}
		resp.Previous = s.pageURL(r, opts.Limit, prev)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pageURL(r *http.Request, limit, offset int) *string {
	values := r.URL.Query()
	values.Set("limit", strconv.Itoa(limit))
	values.Set("offset", strconv.Itoa(offset))
	u := s.baseURL(r) + r.URL.Path + "?" + values.Encode()
	return &u
}

// baseURL returns the configured public URL or the one the request came on
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg != nil && s.cfg.HTTP.BaseURL != "" {
		return strings.TrimRight(s.cfg.HTTP.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return (&url.URL{Scheme: scheme, Host: r.Host}).String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendInvalidJSON(w, err)
		return false
	}
	return true
}

// pathID parses the {id} URL parameter, answering 404 when malformed
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(w, http.StatusNotFound, errorBody{Error: "Not found.", Code: "NOT_FOUND"})
		return 0, false
	}
	return id, true
}

// queryID parses an optional id filter; ok is false after a 400
func queryID(w http.ResponseWriter, r *http.Request, name string) (*int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, errorBody{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: map[string][]string{name: {"A valid integer is required."}},
		})
		return nil, false
	}
	return &id, true
}
