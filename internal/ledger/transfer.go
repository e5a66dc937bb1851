package ledger

import (
	"github.com/sheikh-saqib/banking-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// TransferRequest is an intent to move money out of the sender's account.
type TransferRequest struct {
	Sender         string // authenticated principal, never a raw account number
	ToAccount      string
	Amount         decimal.Decimal
	Category       models.Category
	Description    string
	IsSalaryCredit bool
	RequestID      string // optional idempotency token
}

type Status string

const (
	StatusSuccess                Status = "SUCCESS"
	StatusReceiverNotFound       Status = "RECEIVER_NOT_FOUND"
	StatusInvalidAmount          Status = "INVALID_AMOUNT"
	StatusDescriptionRequired    Status = "DESCRIPTION_REQUIRED"
	StatusInsufficientFunds      Status = "INSUFFICIENT_FUNDS"
	StatusSelfTransferNotAllowed Status = "SELF_TRANSFER_NOT_ALLOWED"
	StatusBusy                   Status = "BUSY"
)

func (s Status) Message() string {
	switch s {
	case StatusSuccess:
		return "Transfer successful"
	case StatusReceiverNotFound:
		return "Receiver not found"
	case StatusInvalidAmount:
		return "Amount must be greater than zero with at most two decimal places"
	case StatusDescriptionRequired:
		return "Description is required when category is 'Other'"
	case StatusInsufficientFunds:
		return "Insufficient funds"
	case StatusSelfTransferNotAllowed:
		return "Cannot transfer to your own account"
	case StatusBusy:
		return "Account is busy, retry shortly"
	default:
		return string(s)
	}
}

// TransferResult carries the outcome of a transfer. Record is set only on
// success; Replayed marks a request id seen before, in which case Record is
// the original entry and nothing moved.
type TransferResult struct {
	Status   Status
	Record   *models.TransactionRecord
	Replayed bool
}

func (r TransferResult) OK() bool {
	return r.Status == StatusSuccess
}
