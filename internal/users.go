package internal

import (
	"net/http"

	"github.com/pkg/errors"

	"ralph-api/internal/auth"
	"ralph-api/internal/inventory"
	"ralph-api/internal/models"
	"ralph-api/internal/store"
)

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	verr := &store.ValidationError{}
	if req.Username == "" {
		verr.Add("username", "This field is required.")
	}
	if req.Password == "" {
		verr.Add("password", "This field is required.")
	}
	if err := verr.Err(); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.Inventory.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, inventory.ErrInvalidCredentials), errors.Is(err, inventory.ErrInactiveUser):
		s.Log.WithField("username", req.Username).Info("login rejected")
		auth.SendErrorResponse(w, "Invalid credentials", "INVALID_CREDENTIALS", http.StatusUnauthorized)
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}

	token, err := s.JWTManager.GenerateToken(user.ID, user.Username, user.Roles)
	if err != nil {
		s.fail(w, r, errors.Wrap(err, "generate token"))
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: user.Redacted()})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	opts := parseListParams(r)
	items, total, err := s.Inventory.ListUsers(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]models.User, 0, len(items))
	for i := range items {
		out = append(out, items[i].Redacted())
	}
	s.sendListResponse(w, r, out, total, opts)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := s.Inventory.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Redacted())
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Inventory.CreateUser(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u.Redacted())
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Inventory.UpdateUser(r.Context(), id, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Redacted())
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id == auth.UserIDFromContext(r.Context()) {
		s.fail(w, r, store.NewValidationError("non_field_errors", "You cannot delete your own account."))
		return
	}
	if err := s.Inventory.DeleteUser(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getUserProfile returns the caller's account
func (s *Server) getUserProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.Inventory.GetUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Redacted())
}

func (s *Server) updateUserProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := s.Inventory.UpdateProfile(r.Context(), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Redacted())
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Inventory.ChangePassword(r.Context(), auth.UserIDFromContext(r.Context()), req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
