package internal

import (
	"net/http"
	"strings"

	"ralph-api/internal/filter"
	"ralph-api/internal/inventory"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

func (s *Server) renderEthernet(r *http.Request, rd *renderer, e *models.Ethernet) (ethernetView, error) {
	ips, err := store.All(func(opts store.ListOptions) ([]models.IPAddress, int, error) {
		return s.Inventory.ListIPAddresses(r.Context(), store.IPAddressFilter{EthernetIDs: []int64{e.ID}}, opts)
	})
	if err != nil {
		return ethernetView{}, err
	}
	return rd.ethernet(e, ips), nil
}

// LIST ethernets, filterable by base_object and mac
func (s *Server) listEthernets(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	values := r.URL.Query()
	f := store.EthernetFilter{}
	for _, raw := range values["base_object"] {
		id, err := filter.ParseID(raw)
		if err != nil {
			s.fail(w, r, store.NewValidationError("base_object", err.Error()))
			return
		}
		f.BaseObjectIDs = append(f.BaseObjectIDs, id)
	}
	if raw := strings.TrimSpace(values.Get("mac")); raw != "" {
		mac, ok := inventory.NormalizeMAC(raw)
		if !ok {
			s.fail(w, r, store.NewValidationError("mac", "Enter a valid MAC address."))
			return
		}
		f.MAC = mac
	}

	items, total, err := s.Inventory.ListEthernets(r.Context(), f, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]ethernetView, 0, len(items))
	for i := range items {
		v, err := s.renderEthernet(r, rd, &items[i])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, v)
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) writeEthernet(w http.ResponseWriter, r *http.Request, status int, e *models.Ethernet) {
	v, err := s.renderEthernet(r, s.renderer(r), e)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) getEthernet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.Inventory.GetEthernet(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeEthernet(w, r, http.StatusOK, e)
}

func (s *Server) createEthernet(w http.ResponseWriter, r *http.Request) {
	var req models.EthernetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.Inventory.CreateEthernet(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeEthernet(w, r, http.StatusCreated, e)
}

func (s *Server) updateEthernet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.EthernetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := s.Inventory.UpdateEthernet(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeEthernet(w, r, http.StatusOK, e)
}

func (s *Server) deleteEthernet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteEthernet(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LIST ip addresses, filterable by ethernet, address and dhcp_expose
func (s *Server) listIPAddresses(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	values := r.URL.Query()
	f := store.IPAddressFilter{}
	for _, raw := range values["ethernet"] {
		id, err := filter.ParseID(raw)
		if err != nil {
			s.fail(w, r, store.NewValidationError("ethernet", err.Error()))
			return
		}
		f.EthernetIDs = append(f.EthernetIDs, id)
	}
	if raw := strings.TrimSpace(values.Get("address")); raw != "" {
		addr, ok := inventory.NormalizeIP(raw)
		if !ok {
			s.fail(w, r, store.NewValidationError("address", "Enter a valid IPv4 or IPv6 address."))
			return
		}
		f.Address = addr
	}
	if raw := values.Get("dhcp_expose"); raw != "" {
		expose, err := filter.ParseBool(raw)
		if err != nil {
			s.fail(w, r, store.NewValidationError("dhcp_expose", err.Error()))
			return
		}
		f.DHCPExpose = &expose
	}

	items, total, err := s.Inventory.ListIPAddresses(r.Context(), f, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rd := s.renderer(r)
	out := make([]ipAddressView, 0, len(items))
	for i := range items {
		out = append(out, rd.ipAddress(&items[i]))
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getIPAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ip, err := s.Inventory.GetIPAddress(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).ipAddress(ip))
}

func (s *Server) createIPAddress(w http.ResponseWriter, r *http.Request) {
	var req models.IPAddressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ip, err := s.Inventory.CreateIPAddress(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.renderer(r).ipAddress(ip))
}

func (s *Server) updateIPAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.IPAddressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ip, err := s.Inventory.UpdateIPAddress(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.renderer(r).ipAddress(ip))
}

func (s *Server) deleteIPAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.Inventory.DeleteIPAddress(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
