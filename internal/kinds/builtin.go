package kinds

import (
	"fmt"
	"strings"

	"ralph-api/internal/models"
)

var backOfficeStatuses = []string{
	"new", "in progress", "waiting for release", "used", "loan", "damaged",
	"liquidated", "in service", "in repair", "ok", "to deploy", "reserved",
	"sale", "return in progress", "to buyout", "in transit",
}

var dataCenterStatuses = []string{
	"new", "used", "free", "damaged", "liquidated", "to deploy", "cleaned",
	"pre liquidated", "in progress",
}

var orientations = []string{"front", "back", "middle", "left", "right"}

var domainStatuses = []string{
	"active", "pending lapse", "pending transfer away", "lapse", "transfered away",
}

var protocols = []string{"TCP", "UDP"}

func assetFields(statuses []string) []Field {
	return []Field{
		{Name: "hostname", Type: Text, Validate: "max=255"},
		{Name: "barcode", Type: Text, Validate: "max=200", Unique: true},
		{Name: "sn", Type: Text, Validate: "max=200", Unique: true},
		{Name: "niw", Type: Text, Validate: "max=200"},
		{Name: "price", Type: Decimal, Validate: "min=0"},
		{Name: "model", Type: Reference, Target: "assetmodel", Required: true},
		{Name: "status", Type: Text, Choices: statuses, Default: "new"},
		{Name: "invoice_no", Type: Text, Validate: "max=128"},
		{Name: "invoice_date", Type: Date},
		{Name: "order_no", Type: Text, Validate: "max=50"},
		{Name: "provider", Type: Text, Validate: "max=100"},
		{Name: "depreciation_rate", Type: Decimal, Validate: "min=0,max=100"},
	}
}

// firstNonEmpty returns the first non-empty text attribute of o
func firstNonEmpty(o *models.BaseObject, names ...string) string {
	for _, n := range names {
		if v := o.StringAttr(n); v != "" {
			return v
		}
	}
	return ""
}

func init() {
	Register(&Kind{
		Name:      "backofficeasset",
		Verbose:   "back office asset",
		Table:     "back_office_assets",
		Fields:    append(assetFields(backOfficeStatuses), Field{Name: "imei", Type: Text, Validate: "omitempty,numeric,len=15"}),
		NameField: "hostname",
		ModelType: models.ModelTypeBackOffice,
		Display: func(o *models.BaseObject) string {
			return firstNonEmpty(o, "hostname", "barcode", "sn")
		},
	})

	dcFields := assetFields(dataCenterStatuses)
	dcFields = append(dcFields,
		Field{Name: "rack", Type: Text, Validate: "max=255"},
		Field{Name: "position", Type: Int, Validate: "min=0"},
		Field{Name: "orientation", Type: Text, Choices: orientations, Default: "front"},
		Field{Name: "slot_no", Type: Text, Validate: "max=20"},
		Field{Name: "firmware_version", Type: Text, Validate: "max=256"},
		Field{Name: "bios_version", Type: Text, Validate: "max=256"},
	)
	Register(&Kind{
		Name:      "datacenterasset",
		Verbose:   "data center asset",
		Table:     "data_center_assets",
		Fields:    dcFields,
		NameField: "hostname",
		ModelType: models.ModelTypeDataCenter,
		Display: func(o *models.BaseObject) string {
			return firstNonEmpty(o, "hostname", "barcode", "sn")
		},
	})

	Register(&Kind{
		Name:    "cloudhost",
		Verbose: "cloud host",
		Table:   "cloud_hosts",
		Fields: []Field{
			{Name: "hostname", Type: Text, Validate: "max=255", Required: true},
			{Name: "host_id", Type: Text, Validate: "max=100", Required: true, Unique: true},
			{Name: "image_name", Type: Text, Validate: "max=255"},
			{Name: "cloudprovider", Type: Text, Validate: "max=100"},
		},
		NameField: "hostname",
		Display: func(o *models.BaseObject) string {
			return o.StringAttr("hostname")
		},
	})

	Register(&Kind{
		Name:    "virtualserver",
		Verbose: "virtual server",
		Table:   "virtual_servers",
		Fields: []Field{
			{Name: "hostname", Type: Text, Validate: "max=255"},
			{Name: "sn", Type: Text, Validate: "max=200", Unique: true},
			{Name: "type", Type: Text, Validate: "max=100"},
			{Name: "status", Type: Text, Choices: []string{"new", "in use", "to deploy", "liquidated"}, Default: "new"},
		},
		NameField: "hostname",
		Display: func(o *models.BaseObject) string {
			return firstNonEmpty(o, "hostname", "sn")
		},
	})

	Register(&Kind{
		Name:    "cluster",
		Verbose: "cluster",
		Table:   "clusters",
		Fields: []Field{
			{Name: "name", Type: Text, Validate: "max=255"},
			{Name: "hostname", Type: Text, Validate: "max=255"},
			{Name: "type", Type: Text, Validate: "max=100"},
			{Name: "status", Type: Text, Choices: []string{"in use", "for deploy"}, Default: "in use"},
		},
		NameField: "name",
		Display: func(o *models.BaseObject) string {
			name := firstNonEmpty(o, "name", "hostname")
			if t := o.StringAttr("type"); t != "" && name != "" {
				return fmt.Sprintf("%s (%s)", name, t)
			}
			return name
		},
	})

	Register(&Kind{
		Name:    "database",
		Verbose: "database",
		Table:   "databases",
		Fields: []Field{
			{Name: "name", Type: Text, Validate: "max=255", Required: true},
			{Name: "database_type", Type: Text, Validate: "max=100"},
		},
		NameField: "name",
		Display: func(o *models.BaseObject) string {
			return o.StringAttr("name")
		},
	})

	Register(&Kind{
		Name:    "vip",
		Verbose: "VIP",
		Table:   "vips",
		Fields: []Field{
			{Name: "name", Type: Text, Validate: "max=255", Required: true},
			{Name: "ip", Type: Text, Validate: "ip", Required: true},
			{Name: "port", Type: Int, Validate: "min=0,max=65535", Required: true},
			{Name: "protocol", Type: Text, Choices: protocols, Default: "TCP"},
		},
		NameField:      "name",
		UniqueTogether: [][]string{{"ip", "port", "protocol"}},
		Display: func(o *models.BaseObject) string {
			port, _ := o.IntAttr("port")
			return fmt.Sprintf("%s (%s:%d/%s)", o.StringAttr("name"), o.StringAttr("ip"), port, o.StringAttr("protocol"))
		},
	})

	Register(&Kind{
		Name:    "domain",
		Verbose: "domain",
		Table:   "domains",
		Fields: []Field{
			{Name: "name", Type: Text, Validate: "max=255", Required: true, Unique: true},
			{Name: "domain_status", Type: Text, Choices: domainStatuses, Default: "active"},
			{Name: "domain_holder", Type: Text, Validate: "max=255"},
			{Name: "expiration_date", Type: Date},
		},
		NameField: "name",
		Display: func(o *models.BaseObject) string {
			return o.StringAttr("name")
		},
	})

	Register(&Kind{
		Name:    "licence",
		Verbose: "licence",
		Table:   "licences",
		Fields: []Field{
			{Name: "niw", Type: Text, Validate: "max=200", Required: true, Unique: true},
			{Name: "sn", Type: Text, Validate: "max=200"},
			{Name: "software", Type: Text, Validate: "max=255", Required: true},
			{Name: "price", Type: Decimal, Validate: "min=0"},
			{Name: "number_bought", Type: Int, Validate: "min=0", Required: true},
			{Name: "valid_thru", Type: Date},
			{Name: "invoice_no", Type: Text, Validate: "max=128"},
			{Name: "invoice_date", Type: Date},
		},
		NameField: "niw",
		Display: func(o *models.BaseObject) string {
			n, _ := o.IntAttr("number_bought")
			return fmt.Sprintf("%d x %s (%s)", n, o.StringAttr("software"), o.StringAttr("niw"))
		},
	})

	Register(&Kind{
		Name:    "support",
		Verbose: "support",
		Table:   "supports",
		Fields: []Field{
			{Name: "name", Type: Text, Validate: "max=255", Required: true},
			{Name: "contract_id", Type: Text, Validate: "max=50", Required: true},
			{Name: "support_type", Type: Text, Validate: "max=100"},
			{Name: "price", Type: Decimal, Validate: "min=0"},
			{Name: "date_from", Type: Date},
			{Name: "date_to", Type: Date, Required: true},
			{Name: "status", Type: Text, Choices: []string{"new"}, Default: "new"},
		},
		NameField: "name",
		Display: func(o *models.BaseObject) string {
			return strings.TrimSpace(o.StringAttr("name") + " " + o.StringAttr("contract_id"))
		},
	})

	Register(&Kind{
		Name:    ServiceEnvironment,
		Verbose: "service environment",
		Table:   "service_environments",
		Fields: []Field{
			{Name: "service", Type: Reference, Target: "service", Required: true},
			{Name: "environment", Type: Reference, Target: "environment", Required: true},
		},
		UniqueTogether: [][]string{{"service", "environment"}},
		ReadOnly:       true,
		Display: func(o *models.BaseObject) string {
			return o.StringAttr(AttrServiceName) + " - " + o.StringAttr(AttrEnvironmentName)
		},
	})
}
