package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type OpenAccountRequest struct {
	CNIC        string `json:"cnic"`
	FullName    string `json:"fullName"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DOB         string `json:"dob"`
	PhoneNumber string `json:"phoneNumber"`
}

type AccountResponse struct {
	AccountNumber string          `json:"accountNumber"`
	FullName      string          `json:"fullName"`
	Username      string          `json:"username"`
	CNIC          string          `json:"cnic"`
	PhoneNumber   string          `json:"phoneNumber"`
	DOB           string          `json:"dob"`
	Balance       decimal.Decimal `json:"balance"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type TransferRequest struct {
	ToAccountNumber string          `json:"toAccountNumber"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	IsSalaryCredit  bool            `json:"isSalaryCredit"`
}

// Validate checks shape only; business rules belong to the ledger.
func (r TransferRequest) Validate() (models.Category, error) {
	if strings.TrimSpace(r.ToAccountNumber) == "" {
		return "", errors.New("toAccountNumber is required")
	}
	category, err := models.ParseCategory(r.Category)
	if err != nil {
		return "", errors.New("category is not supported")
	}
	return category, nil
}

type TransferResponse struct {
	TransactionID   int64           `json:"transactionId"`
	FromAccount     string          `json:"fromAccountNumber"`
	ToAccountNumber string          `json:"toAccountNumber"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	Description     string          `json:"description,omitempty"`
	IsSalaryCredit  bool            `json:"isSalaryCredit"`
	Timestamp       time.Time       `json:"timestamp"`
	Replayed        bool            `json:"replayed"`
}

type SentEntry struct {
	ToAccountNumber string          `json:"toAccountNumber"`
	ToFullName      string          `json:"toFullName"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Category        string          `json:"category"`
	Description     string          `json:"description,omitempty"`
}

type ReceivedEntry struct {
	FromAccountNumber string          `json:"fromAccountNumber"`
	FromFullName      string          `json:"fromFullName"`
	Amount            decimal.Decimal `json:"amount"`
	Date              time.Time       `json:"date"`
	Category          string          `json:"category"`
	Description       string          `json:"description,omitempty"`
}

type HistoryResponse struct {
	Filter   string          `json:"filter"`
	Sent     []SentEntry     `json:"sent"`
	Received []ReceivedEntry `json:"received"`
}

func toAccountResponse(a models.Account) AccountResponse {
	return AccountResponse{
		AccountNumber: a.AccountNumber,
		FullName:      a.FullName,
		Username:      a.Username,
		CNIC:          a.CNIC,
		PhoneNumber:   a.PhoneNumber,
		DOB:           a.DOB.Format("2006-01-02"),
		Balance:       a.Balance,
	}
}
