package internal

import (
	"net/http"
	"strconv"
	"strings"

	"ralph-api/internal/filter"
	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

func (s *Server) renderService(r *http.Request, rd *renderer, svc *models.Service) (serviceView, error) {
	envs, err := s.Inventory.ServiceEnvironments(r.Context(), svc.ID)
	if err != nil {
		return serviceView{}, err
	}
	return rd.service(svc, envs), nil
}

// LIST services, filterable by uid and active
func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	f := store.ServiceFilter{UID: strings.TrimSpace(r.URL.Query().Get("uid"))}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := filter.ParseBool(raw)
		if err != nil {
			s.fail(w, r, store.NewValidationError("active", err.Error()))
			return
		}
		f.Active = &active
	}

	items, total, err := s.Inventory.ListServices(r.Context(), f, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]serviceView, 0, len(items))
	for i := range items {
		v, err := s.renderService(r, rd, &items[i])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, v)
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	svc, err := s.Inventory.GetService(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeService(w, r, http.StatusOK, svc)
}

func (s *Server) createService(w http.ResponseWriter, r *http.Request) {
	var req models.CreateServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := s.Inventory.CreateService(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeService(w, r, http.StatusCreated, svc)
}

func (s *Server) updateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.UpdateServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	svc, err := s.Inventory.UpdateService(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeService(w, r, http.StatusOK, svc)
}

func (s *Server) writeService(w http.ResponseWriter, r *http.Request, status int, svc *models.Service) {
	v, err := s.renderService(r, s.renderer(r), svc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) deleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteService(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LIST service environments, filterable by service and environment ids
func (s *Server) listServiceEnvironments(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	q := store.ObjectQuery{Kinds: []string{kinds.ServiceEnvironment}, ListOptions: opts}
	for _, name := range []string{"service", "environment"} {
		id, ok := queryID(w, r, name)
		if !ok {
			return
		}
		if id != nil {
			q.Lookups = append(q.Lookups, store.Lookup{Field: name, Op: store.OpExact, Value: strconv.FormatInt(*id, 10)})
		}
	}

	objs, total, err := s.Inventory.ListObjects(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]map[string]any, 0, len(objs))
	for i := range objs {
		out = append(out, rd.object(&objs[i]))
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getServiceEnvironment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := s.Inventory.GetObject(r.Context(), kinds.ServiceEnvironment, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).object(o))
}
