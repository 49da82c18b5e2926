package models

import (
	"time"
)

// Ethernet speeds accepted by the API
var EthernetSpeeds = []string{
	"unknown",
	"10 Mbps",
	"100 Mbps",
	"1 Gbps",
	"10 Gbps",
	"40 Gbps",
	"100 Gbps",
}

// DefaultEthernetSpeed is stored when no speed is given
const DefaultEthernetSpeed = "unknown"

// Ethernet is a network interface owned by a base object
type Ethernet struct {
	ID           int64     `json:"id"`
	BaseObjectID int64     `json:"-"`
	Label        string    `json:"label"`
	MAC          string    `json:"mac"`
	Speed        string    `json:"speed"`
	CreatedAt    time.Time `json:"created"`
	UpdatedAt    time.Time `json:"modified"`
}

// EthernetRequest is the body accepted by ethernet create/update
type EthernetRequest struct {
	BaseObject *int64  `json:"base_object"`
	Label      *string `json:"label" validate:"omitempty,max=255"`
	MAC        *string `json:"mac" validate:"omitempty,mac"`
	Speed      *string `json:"speed"`
}

// IPAddress is an address optionally bound to an ethernet
type IPAddress struct {
	ID           int64     `json:"id"`
	EthernetID   *int64    `json:"-"`
	Address      string    `json:"address"`
	Hostname     string    `json:"hostname"`
	DHCPExpose   bool      `json:"dhcp_expose"`
	IsManagement bool      `json:"is_management"`
	CreatedAt    time.Time `json:"created"`
	UpdatedAt    time.Time `json:"modified"`
}

// IPAddressRequest is the body accepted by ip address create/update
type IPAddressRequest struct {
	Address      *string     `json:"address" validate:"omitempty,ip"`
	Hostname     *string     `json:"hostname" validate:"omitempty,max=255"`
	Ethernet     OptionalRef `json:"ethernet"`
	DHCPExpose   *bool       `json:"dhcp_expose"`
	IsManagement *bool       `json:"is_management"`
}
