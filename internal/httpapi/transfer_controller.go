package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/ledger"
	"go.uber.org/zap"
)

const idempotencyKeyHeader = "Idempotency-Key"

type TransferService interface {
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error)
}

type TransferController struct {
	service TransferService
	log     *zap.Logger
}

func NewTransferController(service TransferService, log *zap.Logger) *TransferController {
	return &TransferController{service: service, log: log}
}

func (c *TransferController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /transfers", authMiddleware(http.HandlerFunc(c.transfer)))
}

func (c *TransferController) transfer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	principal, _ := PrincipalFrom(r.Context())

	var req TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		c.respond(w, r, http.StatusBadRequest, ErrorResponse[TransferResponse]("invalid request body", err.Error()), start)
		return
	}
	logRequest(c.log, r, req)

	category, err := req.Validate()
	if err != nil {
		c.respond(w, r, http.StatusBadRequest, ErrorResponse[TransferResponse]("validation failed", err.Error()), start)
		return
	}

	result, err := c.service.Transfer(r.Context(), ledger.TransferRequest{
		Sender:         principal,
		ToAccount:      req.ToAccountNumber,
		Amount:         req.Amount,
		Category:       category,
		Description:    req.Description,
		IsSalaryCredit: req.IsSalaryCredit,
		RequestID:      strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	})
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownSender) {
			c.respond(w, r, http.StatusUnauthorized, ErrorResponse[TransferResponse]("unauthorized"), start)
			return
		}
		logError(c.log, r, err)
		c.respond(w, r, http.StatusInternalServerError, ErrorResponse[TransferResponse]("transfer failed", "Unable to complete transfer right now"), start)
		return
	}

	if !result.OK() {
		c.respond(w, r, statusFor(result.Status), ErrorResponse[TransferResponse](result.Status.Message(), string(result.Status)), start)
		return
	}

	record := result.Record
	resp := TransferResponse{
		TransactionID:   record.ID,
		FromAccount:     record.FromAccount,
		ToAccountNumber: record.ToAccount,
		Amount:          record.Amount,
		Category:        string(record.Category),
		IsSalaryCredit:  record.IsSalaryCredit,
		Timestamp:       record.Timestamp,
		Replayed:        result.Replayed,
	}
	if record.Description != nil {
		resp.Description = *record.Description
	}

	c.respond(w, r, http.StatusOK, SuccessResponse(result.Status.Message(), resp), start)
}

func (c *TransferController) respond(w http.ResponseWriter, r *http.Request, status int, payload any, start time.Time) {
	writeJSON(w, status, payload)
	logResponse(c.log, r, status, start)
}

func statusFor(s ledger.Status) int {
	switch s {
	case ledger.StatusSuccess:
		return http.StatusOK
	case ledger.StatusReceiverNotFound:
		return http.StatusNotFound
	case ledger.StatusInvalidAmount, ledger.StatusDescriptionRequired, ledger.StatusSelfTransferNotAllowed:
		return http.StatusBadRequest
	case ledger.StatusInsufficientFunds:
		return http.StatusUnprocessableEntity
	case ledger.StatusBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
