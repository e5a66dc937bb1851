package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const TopicTransactionCompleted = "transaction_completed"

type TransactionCompleted struct {
	EventID        string          `json:"event_id"`
	TransactionID  int64           `json:"transaction_id"`
	FromAccount    string          `json:"from_account"`
	ToAccount      string          `json:"to_account"`
	Amount         decimal.Decimal `json:"amount"`
	Category       string          `json:"category"`
	IsSalaryCredit bool            `json:"is_salary_credit"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
