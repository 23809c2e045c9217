package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func TestAuthRejects(t *testing.T) {
	foreign := mintTestToken(t, config.JWTConfig{Secret: "secret", Issuer: "other", ExpirationMinutes: 10}, nil)
	valid := mintTestToken(t, testJWT, nil)

	cases := map[string]string{
		"missing header":    "",
		"garbage token":     "Bearer invalid",
		"foreign issuer":    "Bearer " + foreign,
		"basic scheme":      "Basic " + valid,
		"bare token":        valid,
		"empty credentials": "Bearer   ",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.Contains(t, resp.Header().Get("WWW-Authenticate"), "Bearer")
			assert.Contains(t, resp.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestAuthAllowsSellerToken(t *testing.T) {
	tenantID := uuid.New()
	token := mintTestToken(t, testJWT, &tenantID)

	var user, tenant, email string
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = UserIDFromContext(r.Context())
		tenant = TenantIDFromContext(r.Context())
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			email = claims.Email
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, user)
	assert.Equal(t, tenantID.String(), tenant)
	assert.Equal(t, "buyer@example.com", email)
}

func TestAuthAllowsBuyerTokenWithoutTenant(t *testing.T) {
	token := mintTestToken(t, testJWT, nil)

	tenant := "unset"
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant = TenantIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, tenant)
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, tenantID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		UserID:   uuid.New(),
		Email:    "buyer@example.com",
		TenantID: tenantID,
	})
	require.NoError(t, err)
	return token
}
