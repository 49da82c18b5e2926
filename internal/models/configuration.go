package models

import (
	"regexp"
	"time"
)

// ConfigurationNamePattern restricts module and class names
var ConfigurationNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ConfigurationModule is a node of the configuration tree
type ConfigurationModule struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ParentID      *int64    `json:"-"`
	SupportTeamID *int64    `json:"-"`
	CreatedAt     time.Time `json:"created"`
	UpdatedAt     time.Time `json:"modified"`
}

// ConfigurationModuleRequest is the body accepted by module create/update
type ConfigurationModuleRequest struct {
	Name        *string     `json:"name" validate:"omitempty,min=1,max=255"`
	Parent      OptionalRef `json:"parent"`
	SupportTeam OptionalRef `json:"support_team"`
}

// ConfigurationClass is a leaf of the configuration tree. Path is derived
// from the module ancestry and the class name.
type ConfigurationClass struct {
	ID        int64     `json:"id"`
	ClassName string    `json:"class_name"`
	ModuleID  int64     `json:"-"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

// ConfigurationClassRequest is the body accepted by class create/update
type ConfigurationClassRequest struct {
	ClassName *string `json:"class_name" validate:"omitempty,min=1,max=255"`
	Module    *Ref    `json:"module"`
}
