// Package history answers read-only questions about the transfer log: which
// transfers an account sent and received inside a named time window.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Window is a named relative time range ending at query time.
type Window string

const (
	WindowLast15Days  Window = "last15days"
	WindowLastMonth   Window = "lastmonth"
	WindowLast6Months Window = "last6months"
	WindowLastYear    Window = "lastyear"
	WindowAll         Window = "all"
)

// ParseWindow never fails: unknown or empty keywords mean the whole history.
func ParseWindow(keyword string) Window {
	switch w := Window(strings.ToLower(strings.TrimSpace(keyword))); w {
	case WindowLast15Days, WindowLastMonth, WindowLast6Months, WindowLastYear:
		return w
	default:
		return WindowAll
	}
}

// Start returns the inclusive lower bound of w relative to now, or nil for
// WindowAll.
func (w Window) Start(now time.Time) *time.Time {
	var from time.Time
	switch w {
	case WindowLast15Days:
		from = now.AddDate(0, 0, -15)
	case WindowLastMonth:
		from = now.AddDate(0, -1, 0)
	case WindowLast6Months:
		from = now.AddDate(0, -6, 0)
	case WindowLastYear:
		from = now.AddDate(-1, 0, 0)
	default:
		return nil
	}
	return &from
}

// Entry is one side of a transfer as seen from the queried account.
type Entry struct {
	TransactionID       int64
	CounterpartyAccount string
	CounterpartyName    string
	Amount              decimal.Decimal
	Timestamp           time.Time
	Category            models.Category
	Description         string
	IsSalaryCredit      bool
}

type History struct {
	Window   Window
	From     *time.Time
	To       time.Time
	Sent     []Entry
	Received []Entry
}

type Service struct {
	log       interfaces.TransactionLog
	directory interfaces.AccountDirectory
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(log interfaces.TransactionLog, directory interfaces.AccountDirectory, opts ...Option) *Service {
	s := &Service{
		log:       log,
		directory: directory,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetHistory returns the account's transfers inside the window named by
// keyword, split into sent and received, newest first.
func (s *Service) GetHistory(ctx context.Context, accountNumber string, keyword string) (History, error) {
	return s.GetFilteredHistory(ctx, accountNumber, keyword, nil, nil)
}

// GetFilteredHistory is GetHistory narrowed further by category and salary
// flag; nil leaves that field unconstrained.
func (s *Service) GetFilteredHistory(ctx context.Context, accountNumber string, keyword string, category *models.Category, isSalaryCredit *bool) (History, error) {
	window := ParseWindow(keyword)
	now := s.now().UTC()
	from := window.Start(now)

	filter := models.TransactionFilter{
		From:           from,
		To:             &now,
		Category:       category,
		IsSalaryCredit: isSalaryCredit,
	}
	records, err := s.log.QueryByAccount(ctx, accountNumber, filter)
	if err != nil {
		return History{}, fmt.Errorf("query history for %s: %w", accountNumber, err)
	}

	h := History{
		Window:   window,
		From:     from,
		To:       now,
		Sent:     []Entry{},
		Received: []Entry{},
	}

	names := make(map[string]string)
	for _, r := range records {
		if r.FromAccount == accountNumber {
			name, err := s.displayName(ctx, names, r.ToAccount)
			if err != nil {
				return History{}, err
			}
			h.Sent = append(h.Sent, toEntry(r, r.ToAccount, name))
		}
		if r.ToAccount == accountNumber {
			name, err := s.displayName(ctx, names, r.FromAccount)
			if err != nil {
				return History{}, err
			}
			h.Received = append(h.Received, toEntry(r, r.FromAccount, name))
		}
	}

	return h, nil
}

// displayName memoizes lookups for one query. Missing accounts resolve to
// an empty name rather than failing the whole history.
func (s *Service) displayName(ctx context.Context, cache map[string]string, accountNumber string) (string, error) {
	if name, ok := cache[accountNumber]; ok {
		return name, nil
	}

	name, err := s.directory.DisplayName(ctx, accountNumber)
	if err != nil {
		if !errors.Is(err, models.ErrAccountNotFound) {
			return "", fmt.Errorf("resolve display name for %s: %w", accountNumber, err)
		}
		s.logger.Warn("counterparty without account", zap.String("account_number", accountNumber))
		name = ""
	}

	cache[accountNumber] = name
	return name, nil
}

func toEntry(r models.TransactionRecord, counterparty, name string) Entry {
	e := Entry{
		TransactionID:       r.ID,
		CounterpartyAccount: counterparty,
		CounterpartyName:    name,
		Amount:              r.Amount,
		Timestamp:           r.Timestamp,
		Category:            r.Category,
		IsSalaryCredit:      r.IsSalaryCredit,
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	return e
}
