package models

import (
	"time"
)

// Service is a business service run in one or more environments
type Service struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	UID               string    `json:"uid"`
	Active            bool      `json:"active"`
	ProfitCenterID    *int64    `json:"-"`
	SupportTeamID     *int64    `json:"-"`
	BusinessOwnerIDs  []int64   `json:"-"`
	TechnicalOwnerIDs []int64   `json:"-"`
	CreatedAt         time.Time `json:"created"`
	UpdatedAt         time.Time `json:"modified"`
}

// CreateServiceRequest is the body of POST /service
type CreateServiceRequest struct {
	Name            string      `json:"name" validate:"required,min=1,max=256"`
	UID             *string     `json:"uid" validate:"omitempty,min=1,max=40"`
	Active          *bool       `json:"active"`
	ProfitCenter    OptionalRef `json:"profit_center"`
	SupportTeam     OptionalRef `json:"support_team"`
	BusinessOwners  []Ref       `json:"business_owners"`
	TechnicalOwners []Ref       `json:"technical_owners"`
	Environments    []Ref       `json:"environments"`
}

// UpdateServiceRequest is the body of PATCH/PUT /service/{id}. A nil slice
// pointer leaves the relation untouched; an empty slice clears it.
type UpdateServiceRequest struct {
	Name            *string     `json:"name" validate:"omitempty,min=1,max=256"`
	UID             *string     `json:"uid" validate:"omitempty,min=1,max=40"`
	Active          *bool       `json:"active"`
	ProfitCenter    OptionalRef `json:"profit_center"`
	SupportTeam     OptionalRef `json:"support_team"`
	BusinessOwners  *[]Ref      `json:"business_owners"`
	TechnicalOwners *[]Ref      `json:"technical_owners"`
	Environments    *[]Ref      `json:"environments"`
}

// ServiceEnvironment is the unique pairing of a service with an environment.
// Its ID is a base object id.
type ServiceEnvironment struct {
	ID            int64
	ServiceID     int64
	EnvironmentID int64
}
