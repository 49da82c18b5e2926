package internal

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

// renderer turns domain rows into response bodies. It caches the rows it
// looks up to render references within one response.
type renderer struct {
	ctx   context.Context
	st    store.Store
	base  string
	names map[string]map[int64]*link
}

// link is the rendered form of a reference
type link struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	UID      string `json:"uid,omitempty"`
	Username string `json:"username,omitempty"`
	Type     string `json:"object_type,omitempty"`
	Str      string `json:"__str__,omitempty"`
	Path     string `json:"path,omitempty"`
	MAC      string `json:"mac,omitempty"`
	Address  string `json:"address,omitempty"`
}

func (s *Server) renderer(r *http.Request) *renderer {
	return &renderer{
		ctx:   r.Context(),
		st:    s.Store,
		base:  s.baseURL(r),
		names: map[string]map[int64]*link{},
	}
}

func (rd *renderer) url(resource string, id int64) string {
	return rd.base + "/" + resource + "/" + strconv.FormatInt(id, 10)
}

// ref renders a reference to a row of target, nil for a null reference.
// A dangling id renders with its url only.
func (rd *renderer) ref(target string, id *int64) *link {
	if id == nil {
		return nil
	}
	return rd.link(target, *id)
}

func (rd *renderer) link(target string, id int64) *link {
	cache, ok := rd.names[target]
	if !ok {
		cache = map[int64]*link{}
		rd.names[target] = cache
	}
	if l, ok := cache[id]; ok {
		return l
	}
	l, err := rd.lookup(target, id)
	if err != nil {
		l = &link{ID: id, URL: rd.url(target, id)}
	}
	cache[id] = l
	return l
}

func (rd *renderer) lookup(target string, id int64) (*link, error) {
	l := &link{ID: id, URL: rd.url(target, id)}
	ctx := rd.ctx
	if c := models.Catalog(target); c.Valid() {
		o, err := rd.st.GetNamed(ctx, c, id)
		if err != nil {
			return nil, err
		}
		l.Name = o.Name
		return l, nil
	}
	switch target {
	case "profitcenter":
		pc, err := rd.st.GetProfitCenter(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Name = pc.Name
	case "category":
		c, err := rd.st.GetCategory(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Name = c.Name
	case "assetmodel":
		m, err := rd.st.GetAssetModel(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Name = m.Name
	case "service":
		svc, err := rd.st.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Name, l.UID = svc.Name, svc.UID
	case "user":
		u, err := rd.st.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Username = u.Username
	case "configurationmodule":
		m, err := rd.st.GetConfigurationModule(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Name = m.Name
	case "configurationclass":
		c, err := rd.st.GetConfigurationClass(ctx, id)
		if err != nil {
			return nil, err
		}
		l.Path = c.Path
	case "ethernet":
		e, err := rd.st.GetEthernet(ctx, id)
		if err != nil {
			return nil, err
		}
		l.MAC = e.MAC
	case "baseobject":
		o, err := rd.st.GetObject(ctx, id)
		if err != nil {
			return nil, err
		}
		l.URL = rd.url(o.Kind, id)
		l.Type = o.Kind
		if k, ok := kinds.Get(o.Kind); ok {
			l.Str = k.String(o)
		}
	default:
		return nil, errors.Errorf("unknown target %q", target)
	}
	return l, nil
}

func (rd *renderer) links(target string, ids []int64) []*link {
	out := make([]*link, 0, len(ids))
	for _, id := range ids {
		out = append(out, rd.link(target, id))
	}
	return out
}

type namedView struct {
	ID       int64     `json:"id"`
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func (rd *renderer) named(c models.Catalog, o *models.NamedObject) namedView {
	return namedView{ID: o.ID, URL: rd.url(string(c), o.ID), Name: o.Name, Created: o.CreatedAt, Modified: o.UpdatedAt}
}

type profitCenterView struct {
	ID              int64     `json:"id"`
	URL             string    `json:"url"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	BusinessSegment *link     `json:"business_segment"`
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
}

func (rd *renderer) profitCenter(pc *models.ProfitCenter) profitCenterView {
	return profitCenterView{
		ID:              pc.ID,
		URL:             rd.url("profitcenter", pc.ID),
		Name:            pc.Name,
		Description:     pc.Description,
		BusinessSegment: rd.ref(string(models.CatalogBusinessSegment), pc.BusinessSegmentID),
		Created:         pc.CreatedAt,
		Modified:        pc.UpdatedAt,
	}
}

type categoryView struct {
	ID                      int64     `json:"id"`
	URL                     string    `json:"url"`
	Name                    string    `json:"name"`
	Code                    string    `json:"code"`
	Parent                  *link     `json:"parent"`
	ImeiRequired            bool      `json:"imei_required"`
	ShowBuyoutDate          bool      `json:"show_buyout_date"`
	DefaultDepreciationRate float64   `json:"default_depreciation_rate"`
	Created                 time.Time `json:"created"`
	Modified                time.Time `json:"modified"`
}

func (rd *renderer) category(c *models.Category) categoryView {
	return categoryView{
		ID:                      c.ID,
		URL:                     rd.url("category", c.ID),
		Name:                    c.Name,
		Code:                    c.Code,
		Parent:                  rd.ref("category", c.ParentID),
		ImeiRequired:            c.ImeiRequired,
		ShowBuyoutDate:          c.ShowBuyoutDate,
		DefaultDepreciationRate: c.DefaultDepreciationRate,
		Created:                 c.CreatedAt,
		Modified:                c.UpdatedAt,
	}
}

type assetModelView struct {
	ID               int64                  `json:"id"`
	URL              string                 `json:"url"`
	Name             string                 `json:"name"`
	Type             models.ObjectModelType `json:"type"`
	Manufacturer     *link                  `json:"manufacturer"`
	Category         *link                  `json:"category"`
	HeightOfDevice   float64                `json:"height_of_device"`
	CoresCount       int                    `json:"cores_count"`
	PowerConsumption int                    `json:"power_consumption"`
	Created          time.Time              `json:"created"`
	Modified         time.Time              `json:"modified"`
}

func (rd *renderer) assetModel(m *models.AssetModel) assetModelView {
	return assetModelView{
		ID:               m.ID,
		URL:              rd.url("assetmodel", m.ID),
		Name:             m.Name,
		Type:             m.Type,
		Manufacturer:     rd.ref(string(models.CatalogManufacturer), m.ManufacturerID),
		Category:         rd.ref("category", m.CategoryID),
		HeightOfDevice:   m.HeightOfDevice,
		CoresCount:       m.CoresCount,
		PowerConsumption: m.PowerConsumption,
		Created:          m.CreatedAt,
		Modified:         m.UpdatedAt,
	}
}

type serviceView struct {
	ID              int64     `json:"id"`
	URL             string    `json:"url"`
	Name            string    `json:"name"`
	UID             string    `json:"uid"`
	Active          bool      `json:"active"`
	ProfitCenter    *link     `json:"profit_center"`
	SupportTeam     *link     `json:"support_team"`
	BusinessOwners  []*link   `json:"business_owners"`
	TechnicalOwners []*link   `json:"technical_owners"`
	Environments    []*link   `json:"environments"`
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
}

func (rd *renderer) service(svc *models.Service, envs []models.ServiceEnvironment) serviceView {
	envIDs := make([]int64, 0, len(envs))
	for _, se := range envs {
		envIDs = append(envIDs, se.EnvironmentID)
	}
	return serviceView{
		ID:              svc.ID,
		URL:             rd.url("service", svc.ID),
		Name:            svc.Name,
		UID:             svc.UID,
		Active:          svc.Active,
		ProfitCenter:    rd.ref("profitcenter", svc.ProfitCenterID),
		SupportTeam:     rd.ref(string(models.CatalogTeam), svc.SupportTeamID),
		BusinessOwners:  rd.links("user", svc.BusinessOwnerIDs),
		TechnicalOwners: rd.links("user", svc.TechnicalOwnerIDs),
		Environments:    rd.links(string(models.CatalogEnvironment), envIDs),
		Created:         svc.CreatedAt,
		Modified:        svc.UpdatedAt,
	}
}

type moduleView struct {
	ID              int64     `json:"id"`
	URL             string    `json:"url"`
	Name            string    `json:"name"`
	Parent          *string   `json:"parent"`
	ChildrenModules []string  `json:"children_modules"`
	SupportTeam     *link     `json:"support_team"`
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
}

func (rd *renderer) module(m *models.ConfigurationModule, children []models.ConfigurationModule) moduleView {
	v := moduleView{
		ID:              m.ID,
		URL:             rd.url("configurationmodule", m.ID),
		Name:            m.Name,
		ChildrenModules: make([]string, 0, len(children)),
		SupportTeam:     rd.ref(string(models.CatalogTeam), m.SupportTeamID),
		Created:         m.CreatedAt,
		Modified:        m.UpdatedAt,
	}
	if m.ParentID != nil {
		u := rd.url("configurationmodule", *m.ParentID)
		v.Parent = &u
	}
	for _, c := range children {
		v.ChildrenModules = append(v.ChildrenModules, rd.url("configurationmodule", c.ID))
	}
	return v
}

type classView struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	ClassName string    `json:"class_name"`
	Module    *link     `json:"module"`
	Path      string    `json:"path"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

func (rd *renderer) class(c *models.ConfigurationClass) classView {
	return classView{
		ID:        c.ID,
		URL:       rd.url("configurationclass", c.ID),
		ClassName: c.ClassName,
		Module:    rd.link("configurationmodule", c.ModuleID),
		Path:      c.Path,
		Created:   c.CreatedAt,
		Modified:  c.UpdatedAt,
	}
}

type ethernetView struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	BaseObject  *link     `json:"base_object"`
	Label       string    `json:"label"`
	MAC         string    `json:"mac"`
	Speed       string    `json:"speed"`
	IPAddresses []*link   `json:"ipaddresses"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

func (rd *renderer) ethernet(e *models.Ethernet, ips []models.IPAddress) ethernetView {
	v := ethernetView{
		ID:          e.ID,
		URL:         rd.url("ethernet", e.ID),
		BaseObject:  rd.link("baseobject", e.BaseObjectID),
		Label:       e.Label,
		MAC:         e.MAC,
		Speed:       e.Speed,
		IPAddresses: make([]*link, 0, len(ips)),
		Created:     e.CreatedAt,
		Modified:    e.UpdatedAt,
	}
	for _, ip := range ips {
		v.IPAddresses = append(v.IPAddresses, &link{ID: ip.ID, URL: rd.url("ipaddress", ip.ID), Address: ip.Address})
	}
	return v
}

type ipAddressView struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Address      string    `json:"address"`
	Hostname     string    `json:"hostname"`
	Ethernet     *link     `json:"ethernet"`
	DHCPExpose   bool      `json:"dhcp_expose"`
	IsManagement bool      `json:"is_management"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

func (rd *renderer) ipAddress(ip *models.IPAddress) ipAddressView {
	return ipAddressView{
		ID:           ip.ID,
		URL:          rd.url("ipaddress", ip.ID),
		Address:      ip.Address,
		Hostname:     ip.Hostname,
		Ethernet:     rd.ref("ethernet", ip.EthernetID),
		DHCPExpose:   ip.DHCPExpose,
		IsManagement: ip.IsManagement,
		Created:      ip.CreatedAt,
		Modified:     ip.UpdatedAt,
	}
}

// object renders a base object with its subtype attributes flattened next
// to the common fields
func (rd *renderer) object(o *models.BaseObject) map[string]any {
	out := map[string]any{
		"id":          o.ID,
		"url":         rd.url(o.Kind, o.ID),
		"object_type": o.Kind,
		"parent":      rd.ref("baseobject", o.ParentID),
		"remarks":     o.Remarks,
		"tags":        nonNilStrings(o.Tags),
		"created":     o.CreatedAt,
		"modified":    o.UpdatedAt,
	}
	custom := map[string]string{}
	for k, v := range o.CustomFields {
		custom[k] = v
	}
	out["custom_fields"] = custom

	if o.ServiceEnv != nil {
		out["service_env"] = map[string]any{
			"id":          o.ServiceEnv.ID,
			"url":         rd.url(kinds.ServiceEnvironment, o.ServiceEnv.ID),
			"service":     o.ServiceEnv.Service,
			"service_uid": o.ServiceEnv.ServiceUID,
			"environment": o.ServiceEnv.Environment,
		}
	} else {
		out["service_env"] = nil
	}
	if o.ConfigurationPath != nil {
		out["configuration_path"] = map[string]any{
			"id":   o.ConfigurationPath.ID,
			"url":  rd.url("configurationclass", o.ConfigurationPath.ID),
			"path": o.ConfigurationPath.Path,
		}
	} else {
		out["configuration_path"] = nil
	}

	k, ok := kinds.Get(o.Kind)
	if !ok {
		return out
	}
	out["__str__"] = k.String(o)
	for _, f := range k.Fields {
		v := o.Attr(f.Name)
		if f.Type == kinds.Reference {
			if id, ok := v.(int64); ok {
				out[f.Name] = rd.link(f.Target, id)
			} else {
				out[f.Name] = nil
			}
			continue
		}
		out[f.Name] = v
	}
	for name, v := range o.Attrs {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if _, set := out[name]; !set {
			out[name] = v
		}
	}
	return out
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
