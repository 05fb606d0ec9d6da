// Package jwt provides vendor-scoped bearer token generation and validation.
package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrEmptyVendorID is returned when a vendor token is requested without a vendor.
	ErrEmptyVendorID = errors.New("vendor_id cannot be empty")
	// ErrInvalidRole is returned when the role is not recognised.
	ErrInvalidRole = errors.New("invalid role")
)

// Role scopes what a token may call.
type Role string

const (
	// RoleVendor manages the subscriptions of a single vendor.
	RoleVendor Role = "vendor"
	// RoleInternal is held by platform services triggering notifications.
	RoleInternal Role = "internal"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleVendor || r == RoleInternal
}

// Claims represents the JWT claims structure.
type Claims struct {
	VendorID int64 `json:"vendor_id,omitempty"`
	Role     Role  `json:"role"`

	jwt.RegisteredClaims
}

// IsInternal reports whether the token belongs to a platform service.
func (c *Claims) IsInternal() bool {
	return c.Role == RoleInternal
}

// TokenConfig holds configuration for token generation.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Duration time.Duration
}

// Generator handles JWT token generation and validation.
type Generator struct {
	config TokenConfig
	now    func() time.Time
}

// NewGenerator creates a new token generator.
func NewGenerator(config TokenConfig) *Generator {
	return &Generator{config: config, now: time.Now}
}

// Issue creates a signed token for the vendor with the given role.
// Internal tokens may omit the vendor.
func (g *Generator) Issue(vendorID int64, role Role) (string, time.Time, error) {
	if !role.IsValid() {
		return "", time.Time{}, ErrInvalidRole
	}
	if role == RoleVendor && vendorID <= 0 {
		return "", time.Time{}, ErrEmptyVendorID
	}

	now := g.now()
	expiresAt := now.Add(g.config.Duration)

	subject := string(role)
	if vendorID > 0 {
		subject = strconv.FormatInt(vendorID, 10)
	}

	claims := Claims{
		VendorID: vendorID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    g.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(g.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// Validate parses the token, checks signature, expiry and issuer, and returns the claims.
func (g *Generator) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	}
	if g.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.IsValid() {
		return nil, ErrInvalidToken
	}
	if claims.Role == RoleVendor && claims.VendorID <= 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
