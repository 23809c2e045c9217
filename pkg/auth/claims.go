package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Email    string
	FullName *string
	TenantID *uuid.UUID
	Locale   *string
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by buyers and sellers.
// TenantID is set only for seller staff acting on behalf of a shop.
type AccessTokenClaims struct {
	UserID   uuid.UUID  `json:"user_id"`
	Email    string     `json:"email,omitempty"`
	FullName *string    `json:"full_name,omitempty"`
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	Locale   *string    `json:"locale,omitempty"`
	jwt.RegisteredClaims
}
