// Package store defines the persistence contract of the inventory and the
// query types shared by its backends.
package store

import (
	"context"

	"ralph-api/internal/models"
)

// ListOptions holds the paging, search and ordering of a list query
type ListOptions struct {
	Limit  int
	Offset int
	// Query is a case-insensitive substring match on the name column
	Query string
	// Name is an exact match on the name column
	Name string
	// Sort is a comma separated list of keys, '-' prefixed for descending
	Sort string
}

// Op is a field lookup operator
type Op string

const (
	OpExact       Op = "exact"
	OpIExact      Op = "iexact"
	OpContains    Op = "contains"
	OpIContains   Op = "icontains"
	OpStartsWith  Op = "startswith"
	OpIStartsWith Op = "istartswith"
	OpEndsWith    Op = "endswith"
	OpIEndsWith   Op = "iendswith"
	OpLT          Op = "lt"
	OpLTE         Op = "lte"
	OpGT          Op = "gt"
	OpGTE         Op = "gte"
	OpIsNull      Op = "isnull"
)

// Ops lists every supported lookup operator
var Ops = []Op{
	OpExact, OpIExact, OpContains, OpIContains, OpStartsWith, OpIStartsWith,
	OpEndsWith, OpIEndsWith, OpLT, OpLTE, OpGT, OpGTE, OpIsNull,
}

// Lookup filters objects on one field. Field may be a common column, a kind
// attribute or the `name` alias. Value is the raw query value.
type Lookup struct {
	Field string
	Op    Op
	Value string
}

// ObjectQuery selects base objects across kinds
type ObjectQuery struct {
	// Kinds restricts the result to these kinds; empty means all
	Kinds   []string
	IDs     []int64
	Lookups []Lookup
	// Tags must all be carried by the object
	Tags []string
	// IP selects objects owning an ethernet bound to this address
	IP string
	// Service matches the uid or the name of the object's service
	Service string
	// Environment matches the environment name of the object's service env
	Environment  string
	CustomFields map[string]string
	ListOptions
}

// AssetModelFilter narrows an asset model list
type AssetModelFilter struct {
	Type           models.ObjectModelType
	ManufacturerID *int64
	CategoryID     *int64
}

// ServiceFilter narrows a service list
type ServiceFilter struct {
	UID    string
	Active *bool
}

// ModuleFilter narrows a configuration module list
type ModuleFilter struct {
	ParentID *int64
	// RootOnly selects modules without a parent
	RootOnly bool
}

// ClassFilter narrows a configuration class list
type ClassFilter struct {
	ModuleIDs  []int64
	Path       string
	PathPrefix string
}

// EthernetFilter narrows an ethernet list
type EthernetFilter struct {
	BaseObjectIDs []int64
	MAC           string
}

// IPAddressFilter narrows an ip address list
type IPAddressFilter struct {
	EthernetIDs []int64
	Address     string
	DHCPExpose  *bool
}

// Store is implemented by the postgres and memory backends. Every method
// joins the transaction carried by ctx when WithTx started one.
//
// Deletes fail with ErrProtected while other rows reference the target;
// deleting a base object removes its ethernets, deleting an ethernet detaches
// its ip addresses and deleting a user removes it from service owners.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
	Close() error

	ListNamed(ctx context.Context, c models.Catalog, opts ListOptions) ([]models.NamedObject, int, error)
	GetNamed(ctx context.Context, c models.Catalog, id int64) (*models.NamedObject, error)
	CreateNamed(ctx context.Context, c models.Catalog, obj *models.NamedObject) error
	UpdateNamed(ctx context.Context, c models.Catalog, obj *models.NamedObject) error
	DeleteNamed(ctx context.Context, c models.Catalog, id int64) error

	ListProfitCenters(ctx context.Context, opts ListOptions) ([]models.ProfitCenter, int, error)
	GetProfitCenter(ctx context.Context, id int64) (*models.ProfitCenter, error)
	CreateProfitCenter(ctx context.Context, pc *models.ProfitCenter) error
	UpdateProfitCenter(ctx context.Context, pc *models.ProfitCenter) error
	DeleteProfitCenter(ctx context.Context, id int64) error

	ListCategories(ctx context.Context, opts ListOptions) ([]models.Category, int, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id int64) error

	ListAssetModels(ctx context.Context, f AssetModelFilter, opts ListOptions) ([]models.AssetModel, int, error)
	GetAssetModel(ctx context.Context, id int64) (*models.AssetModel, error)
	CreateAssetModel(ctx context.Context, m *models.AssetModel) error
	UpdateAssetModel(ctx context.Context, m *models.AssetModel) error
	DeleteAssetModel(ctx context.Context, id int64) error

	ListServices(ctx context.Context, f ServiceFilter, opts ListOptions) ([]models.Service, int, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	CreateService(ctx context.Context, s *models.Service) error
	UpdateService(ctx context.Context, s *models.Service) error
	DeleteService(ctx context.Context, id int64) error

	ListUsers(ctx context.Context, opts ListOptions) ([]models.User, int, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id int64) error

	ListConfigurationModules(ctx context.Context, f ModuleFilter, opts ListOptions) ([]models.ConfigurationModule, int, error)
	GetConfigurationModule(ctx context.Context, id int64) (*models.ConfigurationModule, error)
	CreateConfigurationModule(ctx context.Context, m *models.ConfigurationModule) error
	UpdateConfigurationModule(ctx context.Context, m *models.ConfigurationModule) error
	DeleteConfigurationModule(ctx context.Context, id int64) error

	ListConfigurationClasses(ctx context.Context, f ClassFilter, opts ListOptions) ([]models.ConfigurationClass, int, error)
	GetConfigurationClass(ctx context.Context, id int64) (*models.ConfigurationClass, error)
	CreateConfigurationClass(ctx context.Context, c *models.ConfigurationClass) error
	UpdateConfigurationClass(ctx context.Context, c *models.ConfigurationClass) error
	DeleteConfigurationClass(ctx context.Context, id int64) error

	ListObjects(ctx context.Context, q ObjectQuery) ([]models.BaseObject, int, error)
	GetObject(ctx context.Context, id int64) (*models.BaseObject, error)
	CreateObject(ctx context.Context, o *models.BaseObject) error
	UpdateObject(ctx context.Context, o *models.BaseObject) error
	DeleteObject(ctx context.Context, id int64) error

	ListEthernets(ctx context.Context, f EthernetFilter, opts ListOptions) ([]models.Ethernet, int, error)
	GetEthernet(ctx context.Context, id int64) (*models.Ethernet, error)
	CreateEthernet(ctx context.Context, e *models.Ethernet) error
	UpdateEthernet(ctx context.Context, e *models.Ethernet) error
	DeleteEthernet(ctx context.Context, id int64) error

	ListIPAddresses(ctx context.Context, f IPAddressFilter, opts ListOptions) ([]models.IPAddress, int, error)
	GetIPAddress(ctx context.Context, id int64) (*models.IPAddress, error)
	CreateIPAddress(ctx context.Context, ip *models.IPAddress) error
	UpdateIPAddress(ctx context.Context, ip *models.IPAddress) error
	DeleteIPAddress(ctx context.Context, id int64) error
}

// All fetches every page of a list call. It is meant for small reference
// tables.
func All[T any](fetch func(opts ListOptions) ([]T, int, error)) ([]T, error) {
	const page = 500
	var out []T
	for offset := 0; ; offset += page {
		items, total, err := fetch(ListOptions{Limit: page, Offset: offset})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < page || len(out) >= total {
			return out, nil
		}
	}
}
