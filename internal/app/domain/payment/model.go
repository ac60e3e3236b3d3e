package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MinTopUp is the smallest accepted wallet top-up in INR.
const MinTopUp = 200.0

// Status is the lifecycle state of a top-up order.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusExpired Status = "expired"
)

// Order is a wallet top-up intent.
type Order struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserMobile    string    `json:"userMobile"`
	Amount        float64   `json:"amount"`
	TransactionID string    `json:"transactionId"`
	Status        Status    `json:"status"`
	QRCodeURL     string    `json:"qrCodeUrl"`
	UPIID         string    `json:"upiId"`
	PaymentLink   string    `json:"paymentLink"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ValidateAmount rejects top-ups below MinTopUp.
func ValidateAmount(amount float64) error {
	if amount < MinTopUp {
		return fmt.Errorf("Minimum amount is ₹%d", int(MinTopUp))
	}
	return nil
}

// NewTransactionID returns "TXN" followed by 16 upper-case hex characters.
func NewTransactionID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN" + strings.ToUpper(hex[:16])
}
