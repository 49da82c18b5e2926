package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveUser is returned when a disabled account logs in
	ErrInactiveUser = errors.New("user is inactive")
)

func (inv *Inventory) ListUsers(ctx context.Context, opts store.ListOptions) ([]models.User, int, error) {
	return inv.store.ListUsers(ctx, opts)
}

func (inv *Inventory) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return inv.store.GetUser(ctx, id)
}

// CreateUser stores a new active account with a bcrypt password hash
func (inv *Inventory) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	verr := &store.ValidationError{}
	checkStruct(req, verr)
	if len(req.Roles) > 0 && !models.ValidateRoles(req.Roles) {
		verr.Add("roles", "Invalid roles provided.")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Roles:        req.Roles,
		IsActive:     true,
	}
	if err := inv.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (inv *Inventory) UpdateUser(ctx context.Context, id int64, req models.UpdateUserRequest) (*models.User, error) {
	var u *models.User
	err := inv.store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if u, err = inv.store.GetUser(ctx, id); err != nil {
			return err
		}
		verr := &store.ValidationError{}
		checkStruct(req, verr)
		if req.Roles != nil && !models.ValidateRoles(req.Roles) {
			verr.Add("roles", "Invalid roles provided.")
		}
		if err := verr.Err(); err != nil {
			return err
		}
		if req.Email != nil {
			u.Email = strings.TrimSpace(*req.Email)
		}
		if req.FirstName != nil {
			u.FirstName = req.FirstName
		}
		if req.LastName != nil {
			u.LastName = req.LastName
		}
		if req.Roles != nil {
			u.Roles = req.Roles
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		return inv.store.UpdateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateProfile changes the names of the calling user
func (inv *Inventory) UpdateProfile(ctx context.Context, id int64, req models.UpdateProfileRequest) (*models.User, error) {
	return inv.UpdateUser(ctx, id, models.UpdateUserRequest{FirstName: req.FirstName, LastName: req.LastName})
}

// ChangePassword replaces the password after checking the current one
func (inv *Inventory) ChangePassword(ctx context.Context, id int64, req models.ChangePasswordRequest) error {
	verr := &store.ValidationError{}
	checkStruct(req, verr)
	if err := verr.Err(); err != nil {
		return err
	}
	return inv.store.WithTx(ctx, func(ctx context.Context) error {
		u, err := inv.store.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)) != nil {
			return store.NewValidationError("current_password", "Current password is incorrect.")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrap(err, "hash password")
		}
		u.PasswordHash = string(hash)
		return inv.store.UpdateUser(ctx, u)
	})
}

// Authenticate checks a username and password and records the login time
func (inv *Inventory) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := inv.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	if err := inv.store.UpdateUser(ctx, u); err != nil {
		inv.log.WithError(err).WithField("user_id", u.ID).Warn("failed to update last login")
	}
	return u, nil
}

func (inv *Inventory) DeleteUser(ctx context.Context, id int64) error {
	return inv.store.DeleteUser(ctx, id)
}
