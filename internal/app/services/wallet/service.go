// Package wallet moves money in and out of user wallets and records every
// movement in the payment history.
//
// Flow for charges that depend on an upstream call:
//  1. Reserve holds the price against the available balance
//  2. Consume turns the hold into a debit once the upstream call succeeds
//  3. Release drops the hold when it fails
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/metrics"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
)

// ReservationStatus is the state of a hold.
type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationConsumed ReservationStatus = "consumed"
	ReservationReleased ReservationStatus = "released"
)

// Reservation is funds held for an in-flight upstream call.
type Reservation struct {
	ID        string
	UserID    string
	Purpose   string
	Amount    float64
	Status    ReservationStatus
	CreatedAt time.Time
}

// Service manages wallet balances.
type Service struct {
	accounts storage.AccountStore
	ledger   storage.LedgerStore
	log      *logging.Logger

	mu           sync.Mutex
	reservations map[string]*Reservation
}

// New constructs a wallet service.
func New(accounts storage.AccountStore, ledgerStore storage.LedgerStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("wallet")
	}
	return &Service{
		accounts:     accounts,
		ledger:       ledgerStore,
		log:          log,
		reservations: make(map[string]*Reservation),
	}
}

// Charge debits amount immediately.
func (s *Service) Charge(ctx context.Context, userID string, amount float64, description, ref string) (account.User, error) {
	if err := validateAmount(amount); err != nil {
		return account.User{}, err
	}
	user, err := s.accounts.ApplyWalletChange(ctx, userID, -amount, 0)
	if err != nil {
		return account.User{}, mapErr(err)
	}
	s.record(ctx, user, ledger.TypeDebit, amount, description, ref)
	return user, nil
}

// Credit adds amount and records it with the given entry type.
func (s *Service) Credit(ctx context.Context, userID string, amount float64, entryType ledger.EntryType, description, ref string) (account.User, error) {
	if err := validateAmount(amount); err != nil {
		return account.User{}, err
	}
	user, err := s.accounts.ApplyWalletChange(ctx, userID, amount, 0)
	if err != nil {
		return account.User{}, mapErr(err)
	}
	s.record(ctx, user, entryType, amount, description, ref)
	return user, nil
}

// Refund credits amount back as a refund entry.
func (s *Service) Refund(ctx context.Context, userID string, amount float64, description, ref string) (account.User, error) {
	return s.Credit(ctx, userID, amount, ledger.TypeRefund, description, ref)
}

// SetBalance overwrites the balance and records the difference.
func (s *Service) SetBalance(ctx context.Context, userID string, balance float64) (account.User, error) {
	if math.IsNaN(balance) || math.IsInf(balance, 0) {
		return account.User{}, apperrors.Validation("Wallet balance must be a number")
	}
	if balance < 0 {
		return account.User{}, apperrors.Validation("Wallet balance cannot be negative")
	}

	before, after, err := s.accounts.SetWalletBalance(ctx, userID, balance)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return account.User{}, apperrors.Conflict("Wallet balance cannot be lower than funds held for pending requests")
		}
		return account.User{}, mapErr(err)
	}

	diff := ledger.Round2(after.WalletBalance - before.WalletBalance)
	if diff != 0 {
		entryType := ledger.TypeCredit
		if diff < 0 {
			entryType = ledger.TypeDebit
		}
		abs := math.Abs(diff)
		description := fmt.Sprintf("Wallet %s by admin: ₹%s", entryType, strconv.FormatFloat(abs, 'f', -1, 64))
		s.record(ctx, after, entryType, abs, description, "")
	}
	return after, nil
}

// Reserve holds amount against the available balance.
func (s *Service) Reserve(ctx context.Context, userID string, amount float64, purpose string) (Reservation, error) {
	if err := validateAmount(amount); err != nil {
		return Reservation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.accounts.ApplyWalletChange(ctx, userID, 0, amount); err != nil {
		return Reservation{}, mapErr(err)
	}

	res := &Reservation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Purpose:   purpose,
		Amount:    ledger.Round2(amount),
		Status:    ReservationPending,
		CreatedAt: time.Now().UTC(),
	}
	s.reservations[res.ID] = res
	return *res, nil
}

// Consume turns a hold into a debit.
func (s *Service) Consume(ctx context.Context, res Reservation, description, ref string) (account.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.reservations[res.ID]
	if !ok {
		return account.User{}, apperrors.NotFound("Reservation not found")
	}
	if held.UserID != res.UserID {
		return account.User{}, apperrors.Forbidden("Reservation belongs to another user")
	}

	user, err := s.accounts.ApplyWalletChange(ctx, held.UserID, -held.Amount, -held.Amount)
	if err != nil {
		return account.User{}, mapErr(err)
	}
	held.Status = ReservationConsumed
	delete(s.reservations, held.ID)

	s.record(ctx, user, ledger.TypeDebit, held.Amount, description, ref)
	return user, nil
}

// Release drops a hold. Releasing an unknown or finished reservation is a
// no-op.
func (s *Service) Release(ctx context.Context, res Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.reservations[res.ID]
	if !ok {
		return nil
	}
	if _, err := s.accounts.ApplyWalletChange(ctx, held.UserID, 0, -held.Amount); err != nil {
		return mapErr(err)
	}
	held.Status = ReservationReleased
	delete(s.reservations, held.ID)
	return nil
}

// ReleaseOrphaned drops holds left in storage by a previous process. Holds
// only live as long as the process that took them, so this runs at startup
// before any new reservation is made.
func (s *Service) ReleaseOrphaned(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.reservations) > 0 {
		return 0, errors.New("wallet: cannot release orphaned holds while reservations are open")
	}
	n, err := s.accounts.ClearReservations(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear reservations: %w", err)
	}
	if n > 0 {
		s.log.WithContext(ctx).WithField("users", n).Warn("released holds left by a previous run")
	}
	return n, nil
}

// Note records a history entry that does not move money, such as a top-up
// that is still awaiting payment.
func (s *Service) Note(ctx context.Context, userID string, entryType ledger.EntryType, amount float64, description, ref string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	user, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return mapErr(err)
	}
	s.record(ctx, user, entryType, amount, description, ref)
	return nil
}

// Pending returns the number of open reservations.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reservations)
}

// History returns the user's payment history, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]ledger.Entry, error) {
	entries, err := s.ledger.ListEntries(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load payment history", err)
	}
	return entries, nil
}

// record appends a ledger entry. Failures are logged and never undo the
// wallet movement.
func (s *Service) record(ctx context.Context, user account.User, entryType ledger.EntryType, amount float64, description, ref string) {
	metrics.RecordWalletMovement(string(entryType), amount)

	_, err := s.ledger.AppendEntry(ctx, ledger.Entry{
		UserID:          user.ID,
		UserName:        user.Name,
		UserMobile:      user.Mobile,
		TransactionType: entryType,
		Amount:          ledger.Round2(amount),
		Description:     description,
		ReferenceID:     ref,
		BalanceAfter:    user.WalletBalance,
	})
	if err != nil {
		s.log.WithContext(ctx).WithError(err).
			WithField("user_id", user.ID).
			WithField("type", string(entryType)).
			Error("failed to append payment history")
	}
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return apperrors.Validation("Amount must be a positive number")
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("User not found")
	case errors.Is(err, storage.ErrInsufficientFunds):
		return apperrors.InsufficientFunds()
	default:
		return apperrors.Internal("Wallet update failed", err)
	}
}
