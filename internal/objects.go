package internal

import (
	"net/http"

	"ralph-api/internal/filter"
	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
)

// kindsWithEndpoint lists the kinds served under their own path.
// Service environments have a read-only endpoint of their own.
func kindsWithEndpoint() []*kinds.Kind {
	return kinds.Writable()
}

func (s *Server) listObjects(w http.ResponseWriter, r *http.Request, scope []*kinds.Kind) {
	q, err := filter.ParseObjectQuery(r.URL.Query(), scope)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q.ListOptions = parseListParams(r)

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
	s.sendListResponse(w, r, out, total, q.ListOptions)
}

// LIST across every kind with the common filters
func (s *Server) listBaseObjects(w http.ResponseWriter, r *http.Request) {
	s.listObjects(w, r, kinds.All())
}

func (s *Server) getBaseObject(w http.ResponseWriter, r *http.Request) {
	s.getObject(w, r, "")
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request, kind string) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := s.Inventory.GetObject(r.Context(), kind, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).object(o))
}

// kindResource serves the objects of one kind
func (s *Server) kindResource(k *kinds.Kind) resource {
	return resource{
		list: func(w http.ResponseWriter, r *http.Request) {
			s.listObjects(w, r, []*kinds.Kind{k})
		},
		get: func(w http.ResponseWriter, r *http.Request) {
			s.getObject(w, r, k.Name)
		},
		create: func(w http.ResponseWriter, r *http.Request) {
			var req models.BaseObjectRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			o, err := s.Inventory.CreateObject(r.Context(), k, req)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			s.Metrics.ObjectOp(k.Name, "create")
			writeJSON(w, http.StatusCreated, s.renderer(r).object(o))
		},
		update: func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			var req models.BaseObjectRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			o, err := s.Inventory.UpdateObject(r.Context(), k, id, req)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			s.Metrics.ObjectOp(k.Name, "update")
			writeJSON(w, http.StatusOK, s.renderer(r).object(o))
		},
		remove: func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			if err := s.Inventory.DeleteObject(r.Context(), k, id); err != nil {
				s.fail(w, r, err)
				return
			}
			s.Metrics.ObjectOp(k.Name, "delete")
			w.WriteHeader(http.StatusNoContent)
		},
	}
}

