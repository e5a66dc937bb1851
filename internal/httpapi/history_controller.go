package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/history"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"go.uber.org/zap"
)

type HistoryService interface {
	GetFilteredHistory(ctx context.Context, accountNumber string, keyword string, category *models.Category, isSalaryCredit *bool) (history.History, error)
}

type AccountResolver interface {
	ResolveAccountNumber(ctx context.Context, principal string) (string, error)
}

type HistoryController struct {
	service  HistoryService
	resolver AccountResolver
	log      *zap.Logger
}

func NewHistoryController(service HistoryService, resolver AccountResolver, log *zap.Logger) *HistoryController {
	return &HistoryController{service: service, resolver: resolver, log: log}
}

func (c *HistoryController) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("GET /transactions", authMiddleware(http.HandlerFunc(c.list)))
}

func (c *HistoryController) list(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	principal, _ := PrincipalFrom(r.Context())
	query := r.URL.Query()

	var category *models.Category
	if raw := strings.TrimSpace(query.Get("category")); raw != "" {
		parsed, err := models.ParseCategory(raw)
		if err != nil {
			c.respond(w, r, http.StatusBadRequest, ErrorResponse[HistoryResponse]("validation failed", "category is not supported"), start)
			return
		}
		category = &parsed
	}

	var salary *bool
	if raw := strings.TrimSpace(query.Get("salary")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.respond(w, r, http.StatusBadRequest, ErrorResponse[HistoryResponse]("validation failed", "salary must be true or false"), start)
			return
		}
		salary = &parsed
	}

	accountNumber, err := c.resolver.ResolveAccountNumber(r.Context(), principal)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			c.respond(w, r, http.StatusNotFound, ErrorResponse[HistoryResponse]("User not found"), start)
			return
		}
		logError(c.log, r, err)
		c.respond(w, r, http.StatusInternalServerError, ErrorResponse[HistoryResponse]("failed to load history"), start)
		return
	}

	h, err := c.service.GetFilteredHistory(r.Context(), accountNumber, query.Get("filter"), category, salary)
	if err != nil {
		logError(c.log, r, err)
		c.respond(w, r, http.StatusInternalServerError, ErrorResponse[HistoryResponse]("failed to load history", "Unable to fetch transactions right now"), start)
		return
	}

	c.respond(w, r, http.StatusOK, SuccessResponse("transactions retrieved", toHistoryResponse(h)), start)
}

func (c *HistoryController) respond(w http.ResponseWriter, r *http.Request, status int, payload any, start time.Time) {
	writeJSON(w, status, payload)
	logResponse(c.log, r, status, start)
}

func toHistoryResponse(h history.History) HistoryResponse {
	resp := HistoryResponse{
		Filter:   string(h.Window),
		Sent:     make([]SentEntry, 0, len(h.Sent)),
		Received: make([]ReceivedEntry, 0, len(h.Received)),
	}
	for _, e := range h.Sent {
		resp.Sent = append(resp.Sent, SentEntry{
			ToAccountNumber: e.CounterpartyAccount,
			ToFullName:      e.CounterpartyName,
			Amount:          e.Amount,
			Date:            e.Timestamp,
			Category:        string(e.Category),
			Description:     e.Description,
		})
	}
	for _, e := range h.Received {
		resp.Received = append(resp.Received, ReceivedEntry{
			FromAccountNumber: e.CounterpartyAccount,
			FromFullName:      e.CounterpartyName,
			Amount:            e.Amount,
			Date:              e.Timestamp,
			Category:          string(e.Category),
			Description:       e.Description,
		})
	}
	return resp
}
