package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/refundly/webhooks/pkg/apierror"
	"github.com/refundly/webhooks/pkg/domain/shared"
	"github.com/refundly/webhooks/pkg/jwt"
	"github.com/refundly/webhooks/pkg/logger"
)

// Auth-related context keys.
const (
	VendorIDKey                   = logger.ContextKeyVendorID
	ClaimsKey   logger.ContextKey = "claims"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// Authenticate validates the bearer token and stores its claims in the context.
// The vendor id of vendor tokens is stored under VendorIDKey so logs and rate limits pick it up.
func Authenticate(validator TokenValidator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				RecordAuthFailure("missing_token")
				apierror.Unauthorized("Missing bearer token").WriteJSON(w)
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				reason := "invalid_token"
				message := "Invalid token"
				if errors.Is(err, jwt.ErrExpiredToken) {
					reason = "expired_token"
					message = "Token has expired"
				}
				RecordAuthFailure(reason)
				log.Debug("bearer token rejected",
					"reason", reason,
					"request_id", GetRequestID(r.Context()),
				)
				apierror.Unauthorized(message).WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			if claims.VendorID > 0 {
				ctx = context.WithValue(ctx, VendorIDKey, claims.VendorID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts the token claims from context.
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}

// GetVendorID extracts the authenticated vendor from context.
func GetVendorID(ctx context.Context) (shared.ID, bool) {
	if id, ok := ctx.Value(VendorIDKey).(int64); ok && id > 0 {
		return shared.ID(id), true
	}
	return 0, false
}

// MustGetVendorID extracts the vendor from context or panics if not found.
// Use this in handlers protected by RequireVendor().
func MustGetVendorID(ctx context.Context) shared.ID {
	id, ok := GetVendorID(ctx)
	if !ok {
		panic("MustGetVendorID: vendor not found in context - ensure RequireVendor() middleware is applied")
	}
	return id
}

// RequireVendor only lets vendor tokens through.
func RequireVendor() func(http.Handler) http.Handler {
	return requireRole(jwt.RoleVendor, "Vendor token required")
}

// RequireInternal only lets platform service tokens through.
func RequireInternal() func(http.Handler) http.Handler {
	return requireRole(jwt.RoleInternal, "Internal token required")
}

func requireRole(role jwt.Role, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				apierror.Unauthorized("Authentication required").WriteJSON(w)
				return
			}
			if claims.Role != role {
				RecordAuthFailure("wrong_role")
				apierror.Forbidden(message).WriteJSON(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
