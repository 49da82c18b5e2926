package internal

import (
	"net/http"
	"strings"

	"ralph-api/internal/filter"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

// LIST configuration modules, filterable by parent. parent__isnull=true
// selects the roots.
func (s *Server) listConfigurationModules(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	f := store.ModuleFilter{}
	var ok bool
	if f.ParentID, ok = queryID(w, r, "parent"); !ok {
		return
	}
	if raw := r.URL.Query().Get("parent__isnull"); raw != "" {
		root, err := filter.ParseBool(raw)
		if err != nil {
			s.fail(w, r, store.NewValidationError("parent__isnull", err.Error()))
			return
		}
		f.RootOnly = root
	}

	items, total, err := s.Inventory.ListConfigurationModules(r.Context(), f, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]moduleView, 0, len(items))
	for i := range items {
		children, err := s.Inventory.ChildModules(r.Context(), items[i].ID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, rd.module(&items[i], children))
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) writeModule(w http.ResponseWriter, r *http.Request, status int, m *models.ConfigurationModule) {
	children, err := s.Inventory.ChildModules(r.Context(), m.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, s.renderer(r).module(m, children))
}

func (s *Server) getConfigurationModule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := s.Inventory.GetConfigurationModule(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeModule(w, r, http.StatusOK, m)
}

func (s *Server) createConfigurationModule(w http.ResponseWriter, r *http.Request) {
	var req models.ConfigurationModuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.Inventory.CreateConfigurationModule(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeModule(w, r, http.StatusCreated, m)
}

func (s *Server) updateConfigurationModule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.ConfigurationModuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.Inventory.UpdateConfigurationModule(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeModule(w, r, http.StatusOK, m)
}

func (s *Server) deleteConfigurationModule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteConfigurationModule(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LIST configuration classes by module, path or path prefix
func (s *Server) listConfigurationClasses(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	values := r.URL.Query()
	f := store.ClassFilter{
		Path:       strings.TrimSpace(values.Get("path")),
		PathPrefix: strings.TrimSpace(values.Get("path__startswith")),
	}
	for _, raw := range values["module"] {
		id, err := filter.ParseID(raw)
		if err != nil {
			s.fail(w, r, store.NewValidationError("module", err.Error()))
			return
		}
		f.ModuleIDs = append(f.ModuleIDs, id)
	}

	items, total, err := s.Inventory.ListConfigurationClasses(r.Context(), f, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]classView, 0, len(items))
	for i := range items {
		out = append(out, rd.class(&items[i]))
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getConfigurationClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.Inventory.GetConfigurationClass(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).class(c))
}

func (s *Server) createConfigurationClass(w http.ResponseWriter, r *http.Request) {
	var req models.ConfigurationClassRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.Inventory.CreateConfigurationClass(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.renderer(r).class(c))
}

func (s *Server) updateConfigurationClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.ConfigurationClassRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.Inventory.UpdateConfigurationClass(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).class(c))
}

func (s *Server) deleteConfigurationClass(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteConfigurationClass(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
