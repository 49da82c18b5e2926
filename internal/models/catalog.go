package models

import (
	"time"
)

// Catalog names one of the simple name-only dictionaries.
type Catalog string

const (
	CatalogEnvironment     Catalog = "environment"
	CatalogManufacturer    Catalog = "manufacturer"
	CatalogBusinessSegment Catalog = "businesssegment"
	CatalogTeam            Catalog = "team"
)

// Catalogs lists every named catalog in routing order
var Catalogs = []Catalog{
	CatalogEnvironment,
	CatalogManufacturer,
	CatalogBusinessSegment,
	CatalogTeam,
}

// Valid reports whether c is a known catalog
func (c Catalog) Valid() bool {
	for _, known := range Catalogs {
		if c == known {
			return true
		}
	}
	return false
}

// NamedObject is a row of a named catalog (environment, manufacturer, ...)
type NamedObject struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

// NamedObjectRequest is the body accepted by named catalog create/update
type NamedObjectRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=255"`
}

// ProfitCenter groups services for accounting
type ProfitCenter struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	BusinessSegmentID *int64    `json:"-"`
	CreatedAt         time.Time `json:"created"`
	UpdatedAt         time.Time `json:"modified"`
}

// ProfitCenterRequest is the body accepted by profit center create/update
type ProfitCenterRequest struct {
	Name            *string     `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string     `json:"description" validate:"omitempty,max=1024"`
	BusinessSegment OptionalRef `json:"business_segment"`
}

// Category is a node of the asset category tree
type Category struct {
	ID                      int64     `json:"id"`
	Name                    string    `json:"name"`
	Code                    string    `json:"code"`
	ParentID                *int64    `json:"-"`
	ImeiRequired            bool      `json:"imei_required"`
	ShowBuyoutDate          bool      `json:"show_buyout_date"`
	DefaultDepreciationRate float64   `json:"default_depreciation_rate"`
	CreatedAt               time.Time `json:"created"`
	UpdatedAt               time.Time `json:"modified"`
}

// DefaultDepreciationRate is applied to categories created without a rate
const DefaultDepreciationRate = 25

// CategoryRequest is the body accepted by category create/update
type CategoryRequest struct {
	Name                    *string     `json:"name" validate:"omitempty,min=1,max=50"`
	Code                    *string     `json:"code" validate:"omitempty,max=4"`
	Parent                  OptionalRef `json:"parent"`
	ImeiRequired            *bool       `json:"imei_required"`
	ShowBuyoutDate          *bool       `json:"show_buyout_date"`
	DefaultDepreciationRate *float64    `json:"default_depreciation_rate" validate:"omitempty,min=0,max=100"`
}

// ObjectModelType discriminates back office from data center models
type ObjectModelType int

const (
	ModelTypeBackOffice ObjectModelType = 1
	ModelTypeDataCenter ObjectModelType = 2
)

// Valid reports whether t is a known model type
func (t ObjectModelType) Valid() bool {
	return t == ModelTypeBackOffice || t == ModelTypeDataCenter
}

func (t ObjectModelType) String() string {
	switch t {
	case ModelTypeBackOffice:
		return "back office"
	case ModelTypeDataCenter:
		return "data center"
	default:
		return "unknown"
	}
}

// AssetModel describes a product line of a manufacturer
type AssetModel struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Type             ObjectModelType `json:"type"`
	ManufacturerID   *int64          `json:"-"`
	CategoryID       *int64          `json:"-"`
	HeightOfDevice   float64         `json:"height_of_device"`
	CoresCount       int             `json:"cores_count"`
	PowerConsumption int             `json:"power_consumption"`
	CreatedAt        time.Time       `json:"created"`
	UpdatedAt        time.Time       `json:"modified"`
}

// AssetModelRequest is the body accepted by asset model create/update
type AssetModelRequest struct {
	Name             *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Type             *ObjectModelType `json:"type"`
	Manufacturer     OptionalRef      `json:"manufacturer"`
	Category         OptionalRef      `json:"category"`
	HeightOfDevice   *float64         `json:"height_of_device" validate:"omitempty,gt=0"`
	CoresCount       *int             `json:"cores_count" validate:"omitempty,min=0"`
	PowerConsumption *int             `json:"power_consumption" validate:"omitempty,min=0"`
}
