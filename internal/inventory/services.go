package inventory

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ralph-api/internal/kinds"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

func (inv *Inventory) ListServices(ctx context.Context, f store.ServiceFilter, opts store.ListOptions) ([]models.Service, int, error) {
	return inv.store.ListServices(ctx, f, opts)
}

func (inv *Inventory) GetService(ctx context.Context, id int64) (*models.Service, error) {
	return inv.store.GetService(ctx, id)
}

// CreateService stores a service with one service environment per listed
// environment
func (inv *Inventory) CreateService(ctx context.Context, req models.CreateServiceRequest) (*models.Service, error) {
	svc := &models.Service{Active: true}
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		verr := &store.ValidationError{}
		if strings.TrimSpace(req.Name) == "" {
			verr.Add("name", msgRequired)
		}
		checkStruct(req, verr)
		if err := inv.applyOptionalRef(ctx, "profitcenter", "profit_center", req.ProfitCenter, &svc.ProfitCenterID, verr); err != nil {
			return err
		}
		if err := inv.applyOptionalRef(ctx, string(models.CatalogTeam), "support_team", req.SupportTeam, &svc.SupportTeamID, verr); err != nil {
			return err
		}
		var err error
		if svc.BusinessOwnerIDs, err = inv.resolveList(ctx, "user", "business_owners", req.BusinessOwners, verr); err != nil {
			return err
		}
		if svc.TechnicalOwnerIDs, err = inv.resolveList(ctx, "user", "technical_owners", req.TechnicalOwners, verr); err != nil {
			return err
		}
		envIDs, err := inv.resolveList(ctx, string(models.CatalogEnvironment), "environments", req.Environments, verr)
		if err != nil {
			return err
		}
		if err := verr.Err(); err != nil {
			return err
		}

		svc.Name = strings.TrimSpace(req.Name)
		svc.UID = inv.newUID()
		if req.UID != nil && strings.TrimSpace(*req.UID) != "" {
			svc.UID = strings.TrimSpace(*req.UID)
		}
		if req.Active != nil {
			svc.Active = *req.Active
		}
		if err := inv.store.CreateService(ctx, svc); err != nil {
			return err
		}
		for _, envID := range envIDs {
			if _, err := inv.createServiceEnv(ctx, svc.ID, envID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	inv.log.WithFields(logrus.Fields{"service_id": svc.ID, "uid": svc.UID}).Debug("service created")
	return svc, nil
}

// UpdateService applies a partial update. When Environments is given the set
// of service environments is reconciled: kept pairs keep their ids, new
// pairs are created and dropped pairs are deleted.
func (inv *Inventory) UpdateService(ctx context.Context, id int64, req models.UpdateServiceRequest) (*models.Service, error) {
	var svc *models.Service
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		svc, err = inv.store.GetService(ctx, id)
		if err != nil {
			return err
		}
		verr := &store.ValidationError{}
		if req.Name != nil {
			requireString("name", req.Name, verr)
		}
		checkStruct(req, verr)
		if err := inv.applyOptionalRef(ctx, "profitcenter", "profit_center", req.ProfitCenter, &svc.ProfitCenterID, verr); err != nil {
			return err
		}
		if err := inv.applyOptionalRef(ctx, string(models.CatalogTeam), "support_team", req.SupportTeam, &svc.SupportTeamID, verr); err != nil {
			return err
		}
		if req.BusinessOwners != nil {
			if svc.BusinessOwnerIDs, err = inv.resolveList(ctx, "user", "business_owners", *req.BusinessOwners, verr); err != nil {
				return err
			}
		}
		if req.TechnicalOwners != nil {
			if svc.TechnicalOwnerIDs, err = inv.resolveList(ctx, "user", "technical_owners", *req.TechnicalOwners, verr); err != nil {
				return err
			}
		}
		var envIDs []int64
		if req.Environments != nil {
			if envIDs, err = inv.resolveList(ctx, string(models.CatalogEnvironment), "environments", *req.Environments, verr); err != nil {
				return err
			}
		}
		if err := verr.Err(); err != nil {
			return err
		}

		if req.Name != nil {
			svc.Name = strings.TrimSpace(*req.Name)
		}
		if req.UID != nil {
			svc.UID = strings.TrimSpace(*req.UID)
		}
		if req.Active != nil {
			svc.Active = *req.Active
		}
		if err := inv.store.UpdateService(ctx, svc); err != nil {
			return err
		}
		if req.Environments != nil {
			return inv.reconcileEnvironments(ctx, svc.ID, envIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (inv *Inventory) reconcileEnvironments(ctx context.Context, serviceID int64, want []int64) error {
	current, err := inv.ServiceEnvironments(ctx, serviceID)
	if err != nil {
		return err
	}
	wanted := make(map[int64]bool, len(want))
	for _, id := range want {
		wanted[id] = true
	}
	have := make(map[int64]bool, len(current))
	for _, se := range current {
		have[se.EnvironmentID] = true
		if wanted[se.EnvironmentID] {
			continue
		}
		if err := inv.store.DeleteObject(ctx, se.ID); err != nil {
			if errors.Is(err, store.ErrProtected) {
				return store.Protected("Cannot remove environment from service because objects are assigned to this service environment.")
			}
			return err
		}
	}
	for _, envID := range want {
		if have[envID] {
			continue
		}
		if _, err := inv.createServiceEnv(ctx, serviceID, envID); err != nil {
			return err
		}
	}
	return nil
}

func (inv *Inventory) createServiceEnv(ctx context.Context, serviceID, envID int64) (*models.BaseObject, error) {
	o := &models.BaseObject{
		Kind: kinds.ServiceEnvironment,
		Attrs: map[string]any{
			"service":     serviceID,
			"environment": envID,
		},
	}
	if err := inv.store.CreateObject(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ServiceEnvironments returns the pairings of a service ordered by id
func (inv *Inventory) ServiceEnvironments(ctx context.Context, serviceID int64) ([]models.ServiceEnvironment, error) {
	objs, err := store.All(func(opts store.ListOptions) ([]models.BaseObject, int, error) {
		return inv.store.ListObjects(ctx, store.ObjectQuery{
			Kinds:       []string{kinds.ServiceEnvironment},
			Lookups:     []store.Lookup{{Field: "service", Op: store.OpExact, Value: strconv.FormatInt(serviceID, 10)}},
			ListOptions: opts,
		})
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.ServiceEnvironment, 0, len(objs))
	for i := range objs {
		out = append(out, serviceEnvOf(&objs[i]))
	}
	return out, nil
}

func serviceEnvOf(o *models.BaseObject) models.ServiceEnvironment {
	svc, _ := o.IntAttr("service")
	env, _ := o.IntAttr("environment")
	return models.ServiceEnvironment{ID: o.ID, ServiceID: svc, EnvironmentID: env}
}

// DeleteService removes a service with its service environments
func (inv *Inventory) DeleteService(ctx context.Context, id int64) error {
	return inv.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := inv.store.GetService(ctx, id); err != nil {
			return err
		}
		envs, err := inv.ServiceEnvironments(ctx, id)
		if err != nil {
			return err
		}
		for _, se := range envs {
			if err := inv.store.DeleteObject(ctx, se.ID); err != nil {
				return err
			}
		}
		return inv.store.DeleteService(ctx, id)
	})
}
