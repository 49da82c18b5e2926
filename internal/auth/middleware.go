package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

// maxTokenSize bounds the bearer token read from the header
const maxTokenSize = 8192

// expiryWarning is how close to expiry a token must be before the
// X-Token-Expires-* headers are set
const expiryWarning = time.Hour

// ErrorResponse is the body of every auth failure
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WithClaims returns a context carrying the caller's claims
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// ClaimsFromContext returns the caller's claims, or nil outside the
// authenticated routes
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(contextKey{}).(*Claims)
	return claims
}

func UserIDFromContext(ctx context.Context) int64 {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID
	}
	return 0
}

func UsernameFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Username
	}
	return ""
}

func RolesFromContext(ctx context.Context) []string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Roles
	}
	return nil
}

// SendErrorResponse writes {"error","code"} with the given status
func SendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func bearerToken(header string) (string, error) {
	token := strings.TrimPrefix(header, "Bearer ")
	switch {
	case token == "":
		return "", errors.New("token cannot be empty")
	case len(token) > maxTokenSize:
		return "", errors.New("token size exceeds maximum allowed")
	case strings.Count(token, ".") != 2:
		return "", errors.New("invalid JWT token format")
	}
	return token, nil
}

// tokenFailure maps a validation error onto a message and an error code
func tokenFailure(err error) (string, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token has expired", "TOKEN_EXPIRED"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Token is malformed", "MALFORMED_TOKEN"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "Invalid token signature", "INVALID_SIGNATURE"
	default:
		return "Invalid or expired token", "INVALID_TOKEN"
	}
}

// AuthMiddleware requires a valid bearer token and stores its claims in
// the request context
func AuthMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				SendErrorResponse(w, "Authorization header required", "MISSING_AUTH_HEADER", http.StatusUnauthorized)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				SendErrorResponse(w, "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT", http.StatusUnauthorized)
				return
			}
			token, err := bearerToken(header)
			if err != nil {
				SendErrorResponse(w, "Invalid token format: "+err.Error(), "INVALID_TOKEN_FORMAT", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				msg, code := tokenFailure(err)
				SendErrorResponse(w, msg, code, http.StatusUnauthorized)
				return
			}
			if claims.UserID <= 0 || len(claims.Roles) == 0 {
				SendErrorResponse(w, "Token carries no account", "INVALID_TOKEN", http.StatusUnauthorized)
				return
			}

			if claims.ExpiresAt != nil && claims.IsExpiringSoon(expiryWarning) {
				w.Header().Set("X-Token-Expires-At", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
				w.Header().Set("X-Token-Expires-In", time.Until(claims.ExpiresAt.Time).Round(time.Second).String())
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// MustRole lets the request through when the caller holds any of roles
func MustRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				SendErrorResponse(w, "Authentication required", "AUTHENTICATION_REQUIRED", http.StatusUnauthorized)
				return
			}
			if !claims.HasRole(roles...) {
				SendErrorResponse(w, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
