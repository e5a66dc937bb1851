package httpapi

import (
	"net/http"
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/logger"
	"go.uber.org/zap"
)

func logRequest(log *zap.Logger, r *http.Request, payload any) {
	log.Info("http request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("query", r.URL.RawQuery),
		logger.Payload("payload", payload),
	)
}

func logResponse(log *zap.Logger, r *http.Request, status int, start time.Time) {
	log.Info("http response",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Int64("durationMs", time.Since(start).Milliseconds()),
	)
}

func logError(log *zap.Logger, r *http.Request, err error) {
	log.Error("http handler error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
