package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/sheikh-saqib/banking-ledger/internal/accounts"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (models.Account, error)
}

type principalKey struct{}

// PrincipalFrom returns the username stored by BasicAuth.
func PrincipalFrom(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(principalKey{}).(string)
	return principal, ok && principal != ""
}

func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// BasicAuth verifies HTTP Basic credentials against the account holder's
// password and records the username as the request principal.
func BasicAuth(auth Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="ledger"`)
				writeJSON(w, http.StatusUnauthorized, ErrorResponse[struct{}]("unauthorized"))
				return
			}

			account, err := auth.Authenticate(r.Context(), username, password)
			if err != nil {
				if errors.Is(err, accounts.ErrInvalidCredentials) {
					log.Info("basic auth rejected",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("credentials", "invalid"),
					)
					w.Header().Set("WWW-Authenticate", `Basic realm="ledger"`)
					writeJSON(w, http.StatusUnauthorized, ErrorResponse[struct{}]("unauthorized"))
					return
				}
				logError(log, r, err)
				writeJSON(w, http.StatusInternalServerError, ErrorResponse[struct{}]("authentication unavailable"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), account.Username)))
		})
	}
}
