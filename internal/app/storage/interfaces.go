package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/payment"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a compare-and-set transition finds a
	// different current status.
	ErrConflict = errors.New("storage: status conflict")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("storage: duplicate")
	// ErrInsufficientFunds is returned when a wallet change would leave the
	// available balance negative.
	ErrInsufficientFunds = errors.New("storage: insufficient funds")
)

// AccountStore persists users and administrators.
type AccountStore interface {
	CreateUser(ctx context.Context, user account.User) (account.User, error)
	GetUser(ctx context.Context, id string) (account.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (account.User, error)
	ListUsers(ctx context.Context) ([]account.User, error)
	SetUserBlocked(ctx context.Context, id string, blocked bool) error
	CountUsers(ctx context.Context) (int, error)

	// ApplyWalletChange atomically adds balanceDelta to the wallet balance and
	// reservedDelta to the reserved balance. A change that lowers the
	// available balance below zero fails with ErrInsufficientFunds.
	ApplyWalletChange(ctx context.Context, id string, balanceDelta, reservedDelta float64) (account.User, error)
	// SetWalletBalance overwrites the balance and returns the user before and
	// after the change.
	SetWalletBalance(ctx context.Context, id string, balance float64) (before account.User, after account.User, err error)
	// ClearReservations zeroes every reserved balance and returns how many
	// users held funds.
	ClearReservations(ctx context.Context) (int, error)

	CreateAdmin(ctx context.Context, admin account.Admin) (account.Admin, error)
	GetAdminByUsername(ctx context.Context, username string) (account.Admin, error)
}

// CatalogStore persists services and per-user price overrides.
type CatalogStore interface {
	CreateService(ctx context.Context, svc catalog.Service) (catalog.Service, error)
	GetService(ctx context.Context, id string) (catalog.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]catalog.Service, error)
	SetServiceActive(ctx context.Context, id string, active bool) error
	// DeleteService removes the service and its price overrides.
	DeleteService(ctx context.Context, id string) error
	CountServices(ctx context.Context) (int, error)

	UpsertPrice(ctx context.Context, override catalog.PriceOverride) (catalog.PriceOverride, error)
	GetPrice(ctx context.Context, userID, serviceID string) (catalog.PriceOverride, error)
	ListPricesForUser(ctx context.Context, userID string) ([]catalog.PriceOverride, error)
	// SeedPrices inserts overrides that do not exist yet.
	SeedPrices(ctx context.Context, overrides []catalog.PriceOverride) error
}

// RequestStore persists service requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, req request.ServiceRequest) (request.ServiceRequest, error)
	GetRequest(ctx context.Context, id string) (request.ServiceRequest, error)
	// ListRequests returns requests newest first; an empty userID lists all.
	ListRequests(ctx context.Context, userID string) ([]request.ServiceRequest, error)
	TransitionRequest(ctx context.Context, id string, from, to request.Status, adminMessage string) (request.ServiceRequest, error)
}

// LedgerStore persists payment history.
type LedgerStore interface {
	AppendEntry(ctx context.Context, entry ledger.Entry) (ledger.Entry, error)
	// ListEntries returns entries newest first.
	ListEntries(ctx context.Context, userID string) ([]ledger.Entry, error)
}

// LLRStore persists exam tokens keyed by the provider token.
type LLRStore interface {
	CreateToken(ctx context.Context, tok llr.Token) (llr.Token, error)
	GetToken(ctx context.Context, token string) (llr.Token, error)
	// ListTokens returns tokens newest first without PDF data; an empty
	// userID lists all.
	ListTokens(ctx context.Context, userID string) ([]llr.Token, error)
	ListTokensByStatus(ctx context.Context, statuses []llr.Status) ([]llr.Token, error)
	// TransitionToken applies update when the current status is one of from.
	TransitionToken(ctx context.Context, token string, from []llr.Status, update llr.Update) (llr.Token, error)
}

// DLStore persists generated licence PDFs.
type DLStore interface {
	CreateRecord(ctx context.Context, rec dlpdf.Record) (dlpdf.Record, error)
	GetRecord(ctx context.Context, id string) (dlpdf.Record, error)
	// ListRecords returns records newest first without PDF data.
	ListRecords(ctx context.Context, userID string) ([]dlpdf.Record, error)
	// DeleteRecord removes a record whose charge did not go through.
	DeleteRecord(ctx context.Context, id string) error
}

// PaymentStore persists top-up orders.
type PaymentStore interface {
	CreateOrder(ctx context.Context, order payment.Order) (payment.Order, error)
	GetOrderByTransaction(ctx context.Context, txnID string) (payment.Order, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]payment.Order, error)
	ListPendingOrdersBefore(ctx context.Context, cutoff time.Time) ([]payment.Order, error)
	TransitionOrder(ctx context.Context, txnID string, from, to payment.Status) (payment.Order, error)
}

// Stores bundles every store the application needs.
type Stores struct {
	Accounts AccountStore
	Catalog  CatalogStore
	Requests RequestStore
	Ledger   LedgerStore
	LLR      LLRStore
	DL       DLStore
	Payments PaymentStore
}

// Validate reports the first missing store.
func (s Stores) Validate() error {
	switch {
	case s.Accounts == nil:
		return errors.New("account store is required")
	case s.Catalog == nil:
		return errors.New("catalog store is required")
	case s.Requests == nil:
		return errors.New("request store is required")
	case s.Ledger == nil:
		return errors.New("ledger store is required")
	case s.LLR == nil:
		return errors.New("llr store is required")
	case s.DL == nil:
		return errors.New("dl store is required")
	case s.Payments == nil:
		return errors.New("payment store is required")
	}
	return nil
}

// WalletAllows reports whether moving from (balance, reserved) by the given
// deltas keeps the available balance non-negative, or at least does not
// lower it. Shared by store implementations.
func WalletAllows(balance, reserved, balanceDelta, reservedDelta float64) bool {
	newBalance := ledger.Round2(balance + balanceDelta)
	newReserved := ledger.Round2(reserved + reservedDelta)
	if newReserved < 0 {
		return false
	}
	availableDelta := ledger.Round2(balanceDelta - reservedDelta)
	if availableDelta >= 0 {
		return true
	}
	return ledger.Round2(newBalance-newReserved) >= 0
}
