package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-backend/api/responses"
	pkgAuth "github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

const msgAuthRequired = "Authentication required."

// Auth verifies the Bearer token minted by the identity service and seeds the
// request context with its claims. Buyer tokens carry no tenant; seller staff
// tokens carry the shop they act for.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, r, logg, nil)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				unauthorized(w, r, logg, err)
				return
			}

			ctx := logg.WithUserID(WithClaims(r.Context(), claims), claims.UserID.String())
			if claims.TenantID != nil {
				ctx = logg.WithTenantID(ctx, claims.TenantID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger, cause error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="marketplace"`)
	err := pkgerrors.New(pkgerrors.CodeUnauthorized, msgAuthRequired)
	if cause != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, msgAuthRequired)
	}
	responses.WriteError(r.Context(), logg, w, err)
}

// bearerToken extracts the credentials of an RFC 6750 Authorization header.
// Any other scheme is rejected.
func bearerToken(header string) (string, bool) {
	scheme, credentials, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	credentials = strings.TrimSpace(credentials)
	return credentials, credentials != ""
}
