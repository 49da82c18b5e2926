package internal

import (
	"net/http"
	"strconv"
	"strings"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, s.Log, err)
}

// namedResource serves one of the name-only catalogs
func (s *Server) namedResource(c models.Catalog) resource {
	return resource{
		list: func(w http.ResponseWriter, r *http.Request) {
			opts := parseListParams(r)
			items, total, err := s.Inventory.ListNamed(r.Context(), c, opts)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			rd := s.renderer(r)
			out := make([]namedView, 0, len(items))
			for i := range items {
				out = append(out, rd.named(c, &items[i]))
			}
			s.sendListResponse(w, r, out, total, opts)
		},
		get: func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			o, err := s.Inventory.GetNamed(r.Context(), c, id)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, s.renderer(r).named(c, o))
		},
		create: func(w http.ResponseWriter, r *http.Request) {
			var req models.NamedObjectRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			o, err := s.Inventory.CreateNamed(r.Context(), c, req)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, s.renderer(r).named(c, o))
		},
		update: func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			var req models.NamedObjectRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			o, err := s.Inventory.UpdateNamed(r.Context(), c, id, req)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, s.renderer(r).named(c, o))
		},
		remove: func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r)
			if !ok {
				return
			}
			if err := s.Inventory.DeleteNamed(r.Context(), c, id); err != nil {
				s.fail(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		},
	}
}

func (s *Server) listProfitCenters(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	items, total, err := s.Inventory.ListProfitCenters(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]profitCenterView, 0, len(items))
	for i := range items {
		out = append(out, rd.profitCenter(&items[i]))
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getProfitCenter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	pc, err := s.Inventory.GetProfitCenter(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).profitCenter(pc))
}

func (s *Server) createProfitCenter(w http.ResponseWriter, r *http.Request) {
	var req models.ProfitCenterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pc, err := s.Inventory.CreateProfitCenter(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.renderer(r).profitCenter(pc))
}

func (s *Server) updateProfitCenter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.ProfitCenterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pc, err := s.Inventory.UpdateProfitCenter(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).profitCenter(pc))
}

func (s *Server) deleteProfitCenter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteProfitCenter(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	items, total, err := s.Inventory.ListCategories(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]categoryView, 0, len(items))
	for i := range items {
		out = append(out, rd.category(&items[i]))
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := s.Inventory.GetCategory(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).category(c))
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.Inventory.CreateCategory(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.renderer(r).category(c))
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.Inventory.UpdateCategory(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).category(c))
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteCategory(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LIST asset models, filterable by type, manufacturer and category
func (s *Server) listAssetModels(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	f := store.AssetModelFilter{}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		t, err := strconv.Atoi(raw)
		if err != nil || !models.ObjectModelType(t).Valid() {
			s.fail(w, r, store.NewValidationError("type", "Select a valid choice."))
			return
		}
		f.Type = models.ObjectModelType(t)
	}
	var ok bool
	if f.ManufacturerID, ok = queryID(w, r, "manufacturer"); !ok {
		return
	}
	if f.CategoryID, ok = queryID(w, r, "category"); !ok {
		return
	}

	items, total, err := s.Inventory.ListAssetModels(r.Context(), f, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]assetModelView, 0, len(items))
	for i := range items {
		out = append(out, rd.assetModel(&items[i]))
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getAssetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := s.Inventory.GetAssetModel(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).assetModel(m))
}

func (s *Server) createAssetModel(w http.ResponseWriter, r *http.Request) {
	var req models.AssetModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.Inventory.CreateAssetModel(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.renderer(r).assetModel(m))
}

func (s *Server) updateAssetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.AssetModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.Inventory.UpdateAssetModel(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).assetModel(m))
}

func (s *Server) deleteAssetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteAssetModel(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
