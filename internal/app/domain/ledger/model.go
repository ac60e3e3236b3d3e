package ledger

import (
	"math"
	"time"
)

// EntryType classifies a wallet movement.
type EntryType string

const (
	TypeDebit         EntryType = "debit"
	TypeCredit        EntryType = "credit"
	TypeRefund        EntryType = "refund"
	TypePendingCredit EntryType = "pending_credit"
)

// Entry is one append-only payment history record.
type Entry struct {
	ID              string    `json:"_id"`
	UserID          string    `json:"userId"`
	UserName        string    `json:"userName"`
	UserMobile      string    `json:"userMobile"`
	TransactionType EntryType `json:"transactionType"`
	Amount          float64   `json:"amount"`
	Description     string    `json:"description"`
	ReferenceID     string    `json:"referenceId,omitempty"`
	BalanceAfter    float64   `json:"balanceAfter"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Round2 rounds an INR amount to paise.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
