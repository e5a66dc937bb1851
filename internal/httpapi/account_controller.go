package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/accounts"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"go.uber.org/zap"
)

type AccountService interface {
	Open(ctx context.Context, req accounts.OpenAccountRequest) (models.Account, error)
	Profile(ctx context.Context, username string) (models.Account, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
}

type AccountController struct {
	service AccountService
	log     *zap.Logger
}

func NewAccountController(service AccountService, log *zap.Logger) *AccountController {
	return &AccountController{service: service, log: log}
}

func (c *AccountController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /accounts", http.HandlerFunc(c.open))
	mux.Handle("GET /accounts/me", authMiddleware(http.HandlerFunc(c.me)))
	mux.Handle("POST /accounts/me/password", authMiddleware(http.HandlerFunc(c.changePassword)))
}

func (c *AccountController) open(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req OpenAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		c.respond(w, r, http.StatusBadRequest, ErrorResponse[AccountResponse]("invalid request body", err.Error()), start)
		return
	}
	logRequest(c.log, r, req)

	dob, err := time.Parse("2006-01-02", strings.TrimSpace(req.DOB))
	if err != nil {
		c.respond(w, r, http.StatusBadRequest, ErrorResponse[AccountResponse]("validation failed", "dob must be in YYYY-MM-DD format"), start)
		return
	}

	account, err := c.service.Open(r.Context(), accounts.OpenAccountRequest{
		CNIC:        req.CNIC,
		FullName:    req.FullName,
		Username:    req.Username,
		Password:    req.Password,
		DOB:         dob,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrValidation):
			c.respond(w, r, http.StatusBadRequest, ErrorResponse[AccountResponse]("validation failed", err.Error()), start)
		case errors.Is(err, models.ErrDuplicateUsername), errors.Is(err, models.ErrDuplicateCNIC):
			c.respond(w, r, http.StatusConflict, ErrorResponse[AccountResponse](err.Error()), start)
		default:
			logError(c.log, r, err)
			c.respond(w, r, http.StatusInternalServerError, ErrorResponse[AccountResponse]("failed to open account", "Unable to open account right now"), start)
		}
		return
	}

	c.respond(w, r, http.StatusCreated, SuccessResponse("account opened successfully", toAccountResponse(account)), start)
}

func (c *AccountController) me(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	principal, _ := PrincipalFrom(r.Context())

	account, err := c.service.Profile(r.Context(), principal)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			c.respond(w, r, http.StatusNotFound, ErrorResponse[AccountResponse]("User not found"), start)
			return
		}
		logError(c.log, r, err)
		c.respond(w, r, http.StatusInternalServerError, ErrorResponse[AccountResponse]("failed to get account", "Unable to fetch account right now"), start)
		return
	}

	c.respond(w, r, http.StatusOK, SuccessResponse("account retrieved", toAccountResponse(account)), start)
}

func (c *AccountController) changePassword(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	principal, _ := PrincipalFrom(r.Context())

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		c.respond(w, r, http.StatusBadRequest, ErrorResponse[struct{}]("invalid request body", err.Error()), start)
		return
	}

	err := c.service.ChangePassword(r.Context(), principal, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		c.respond(w, r, http.StatusOK, SuccessResponse("Password updated successfully", struct{}{}), start)
	case errors.Is(err, accounts.ErrInvalidCredentials):
		c.respond(w, r, http.StatusBadRequest, ErrorResponse[struct{}]("Old password incorrect"), start)
	case errors.Is(err, accounts.ErrValidation):
		c.respond(w, r, http.StatusBadRequest, ErrorResponse[struct{}]("validation failed", err.Error()), start)
	default:
		logError(c.log, r, err)
		c.respond(w, r, http.StatusInternalServerError, ErrorResponse[struct{}]("failed to change password"), start)
	}
}

func (c *AccountController) respond(w http.ResponseWriter, r *http.Request, status int, payload any, start time.Time) {
	writeJSON(w, status, payload)
	logResponse(c.log, r, status, start)
}
