package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/banking-ledger/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const (
	minPasswordLength   = 8
	cnicLength          = 13
	accountNumberPrefix = "ACC"
	maxNumberAttempts   = 5
)

var DefaultOpeningBalance = decimal.NewFromInt(1000)

type OpenAccountRequest struct {
	CNIC        string
	FullName    string
	Username    string
	Password    string
	DOB         time.Time
	PhoneNumber string
}

// Service manages account identity and profile data. It never touches
// balances after the opening deposit.
type Service struct {
	store          interfaces.AccountStore
	openingBalance decimal.Decimal
	hashCost       int
	log            *zap.Logger
}

type Option func(*Service)

func WithOpeningBalance(amount decimal.Decimal) Option {
	return func(s *Service) { s.openingBalance = amount }
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(store interfaces.AccountStore, opts ...Option) *Service {
	s := &Service{
		store:          store,
		openingBalance: DefaultOpeningBalance,
		hashCost:       bcrypt.DefaultCost,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open registers a new account holder and credits the opening balance.
func (s *Service) Open(ctx context.Context, req OpenAccountRequest) (models.Account, error) {
	req = normalize(req)
	if err := req.Validate(); err != nil {
		return models.Account{}, err
	}

	taken, err := s.store.UsernameExists(ctx, req.Username)
	if err != nil {
		return models.Account{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return models.Account{}, models.ErrDuplicateUsername
	}

	taken, err = s.store.CNICExists(ctx, req.CNIC)
	if err != nil {
		return models.Account{}, fmt.Errorf("check cnic: %w", err)
	}
	if taken {
		return models.Account{}, models.ErrDuplicateCNIC
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := models.Account{
		Balance:      s.openingBalance,
		FullName:     req.FullName,
		Username:     req.Username,
		CNIC:         req.CNIC,
		PhoneNumber:  req.PhoneNumber,
		DOB:          req.DOB,
		PasswordHash: string(hash),
	}

	var created models.Account
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		account.AccountNumber = newAccountNumber()
		created, err = s.store.CreateAccount(ctx, account)
		if !errors.Is(err, models.ErrDuplicateAccount) {
			break
		}
	}
	if err != nil {
		return models.Account{}, err
	}

	s.log.Info("account opened",
		zap.String("account_number", created.AccountNumber),
		zap.String("username", created.Username),
	)
	return created, nil
}

// Authenticate checks a username/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	account, err := s.store.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, models.ErrAccountNotFound) {
		return models.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	account, err := s.Authenticate(ctx, username, oldPassword)
	if err != nil {
		return err
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, account.AccountNumber, string(hash)); err != nil {
		return fmt.Errorf("store password: %w", err)
	}

	s.log.Info("password changed", zap.String("account_number", account.AccountNumber))
	return nil
}

func (s *Service) Profile(ctx context.Context, username string) (models.Account, error) {
	return s.store.GetAccountByUsername(ctx, username)
}

// ResolveAccountNumber implements interfaces.IdentityResolver; principals
// are usernames.
func (s *Service) ResolveAccountNumber(ctx context.Context, principal string) (string, error) {
	account, err := s.store.GetAccountByUsername(ctx, principal)
	if err != nil {
		return "", err
	}
	return account.AccountNumber, nil
}

// DisplayName implements interfaces.AccountDirectory.
func (s *Service) DisplayName(ctx context.Context, accountNumber string) (string, error) {
	account, err := s.store.GetAccount(ctx, accountNumber)
	if err != nil {
		return "", err
	}
	return account.FullName, nil
}

func (r OpenAccountRequest) Validate() error {
	var errs []string

	if strings.TrimSpace(r.FullName) == "" {
		errs = append(errs, "fullName is required")
	}
	if strings.TrimSpace(r.Username) == "" {
		errs = append(errs, "username is required")
	}
	if len(r.CNIC) != cnicLength || !digitsOnly(r.CNIC) {
		errs = append(errs, "CNIC must be exactly 13 digits")
	}
	if r.PhoneNumber == "" || !digitsOnly(r.PhoneNumber) {
		errs = append(errs, "phoneNumber must contain digits only")
	}
	if len(r.Password) < minPasswordLength {
		errs = append(errs, "password must be at least 8 characters")
	}
	if r.DOB.IsZero() {
		errs = append(errs, "dob is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

func normalize(req OpenAccountRequest) OpenAccountRequest {
	req.CNIC = strings.TrimSpace(req.CNIC)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Username = strings.TrimSpace(req.Username)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	return req
}

func newAccountNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return accountNumberPrefix + strings.ToUpper(raw[:6])
}

func digitsOnly(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

var (
	_ interfaces.IdentityResolver = (*Service)(nil)
	_ interfaces.AccountDirectory = (*Service)(nil)
)
