package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Services struct {
	Accounts      AccountService
	Authenticator Authenticator
	Transfers     TransferService
	History       HistoryService
	Resolver      AccountResolver
}

// NewRouter wires every controller onto one mux. Routes other than
// /health and account opening require HTTP Basic credentials.
func NewRouter(services Services, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	auth := BasicAuth(services.Authenticator, log)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SuccessResponse("ok", map[string]string{
			"time": time.Now().UTC().Format(time.RFC3339),
		}))
	})

	NewAccountController(services.Accounts, log).RegisterRoutes(mux, auth)
	NewTransferController(services.Transfers, log).RegisterRoutes(mux, auth)
	NewHistoryController(services.History, services.Resolver, log).RegisterRoutes(mux, auth)

	return mux
}
