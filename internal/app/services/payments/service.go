// Package payments creates wallet top-up orders and credits them once the
// payment gateway confirms the transaction.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/payment"
	"github.com/jkdigital/servicehub/internal/app/services/wallet"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/provider"
)

const historyLimit = 10

// Verifier confirms a transaction with the payment gateway.
type Verifier interface {
	PaymentStatus(ctx context.Context, txnID string) (provider.PaymentResult, error)
}

// Gateway describes where customers pay.
type Gateway struct {
	UPIID           string
	PayeeName       string
	QRCodeBase      string
	PaymentLinkBase string
}

// DefaultGateway returns the production payment endpoints.
func DefaultGateway() Gateway {
	return Gateway{
		UPIID:           "payment@jkdigitalcenter.in",
		PayeeName:       "JK Digital Center",
		QRCodeBase:      "https://api.qrserver.com/v1/create-qr-code/",
		PaymentLinkBase: "https://api.jkdigitalcenter.in/payment",
	}
}

// QRCodeURL returns the QR image link that encodes a UPI payment intent.
func (g Gateway) QRCodeURL(amount float64) string {
	upi := fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=INR", g.UPIID, url.PathEscape(g.PayeeName), formatAmount(amount))
	return fmt.Sprintf("%s?size=200x200&data=%s", g.QRCodeBase, upi)
}

// PaymentLink returns the hosted payment page for a transaction.
func (g Gateway) PaymentLink(txnID string) string {
	return fmt.Sprintf("%s?token=%s", g.PaymentLinkBase, url.QueryEscape(txnID))
}

// CreatedOrder is a new order together with the customer it belongs to.
type CreatedOrder struct {
	Order payment.Order
	User  account.User
}

// CallbackResult reports what a gateway callback changed.
type CallbackResult struct {
	Order    payment.Order
	Credited bool
}

// Service manages top-up orders.
type Service struct {
	accounts storage.AccountStore
	store    storage.PaymentStore
	wallet   *wallet.Service
	verifier Verifier
	gateway  Gateway
	log      *logging.Logger
	now      func() time.Time
}

// New constructs the service. Empty gateway fields fall back to
// DefaultGateway.
func New(accounts storage.AccountStore, store storage.PaymentStore, wallet *wallet.Service, verifier Verifier, gateway Gateway, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("payments")
	}
	def := DefaultGateway()
	if gateway.UPIID == "" {
		gateway.UPIID = def.UPIID
	}
	if gateway.PayeeName == "" {
		gateway.PayeeName = def.PayeeName
	}
	if gateway.QRCodeBase == "" {
		gateway.QRCodeBase = def.QRCodeBase
	}
	if gateway.PaymentLinkBase == "" {
		gateway.PaymentLinkBase = def.PaymentLinkBase
	}
	return &Service{
		accounts: accounts,
		store:    store,
		wallet:   wallet,
		verifier: verifier,
		gateway:  gateway,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder opens a pending top-up for userID.
func (s *Service) CreateOrder(ctx context.Context, userID string, amount float64) (CreatedOrder, error) {
	if strings.TrimSpace(userID) == "" {
		return CreatedOrder{}, apperrors.BadRequest("Missing required fields: userId")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return CreatedOrder{}, apperrors.Validation("Amount must be a valid number")
	}
	if err := payment.ValidateAmount(amount); err != nil {
		return CreatedOrder{}, apperrors.Validation(err.Error()).WithDetails("minimum_amount", payment.MinTopUp)
	}
	amount = ledger.Round2(amount)

	user, err := s.accounts.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return CreatedOrder{}, apperrors.NotFound("User not found")
	}
	if err != nil {
		return CreatedOrder{}, apperrors.Internal("User lookup failed", err)
	}
	if user.IsBlocked {
		return CreatedOrder{}, apperrors.Forbidden("Account blocked")
	}

	txnID := payment.NewTransactionID()
	order, err := s.store.CreateOrder(ctx, payment.Order{
		UserID:        user.ID,
		UserName:      user.Name,
		UserMobile:    user.Mobile,
		Amount:        amount,
		TransactionID: txnID,
		Status:        payment.StatusPending,
		QRCodeURL:     s.gateway.QRCodeURL(amount),
		UPIID:         s.gateway.UPIID,
		PaymentLink:   s.gateway.PaymentLink(txnID),
	})
	if err != nil {
		return CreatedOrder{}, apperrors.Internal("Payment processing failed", err)
	}

	if err := s.wallet.Note(ctx, user.ID, ledger.TypePendingCredit, amount, "Payment initiated - "+txnID, txnID); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("txn", txnID).Warn("record pending credit")
	}

	s.log.WithContext(ctx).WithField("user_id", user.ID).WithField("txn", txnID).Info("payment order created")
	return CreatedOrder{Order: order, User: user}, nil
}

// History returns the user's latest orders, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]payment.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.BadRequest("User ID is required")
	}
	orders, err := s.store.ListOrders(ctx, userID, historyLimit)
	if err != nil {
		return nil, apperrors.Internal("Failed to load payment orders", err)
	}
	return orders, nil
}

// Callback verifies txnID with the gateway and credits the wallet the first
// time the gateway reports it paid. Orders that expired before the payment
// arrived are still credited.
func (s *Service) Callback(ctx context.Context, txnID string) (CallbackResult, error) {
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return CallbackResult{}, apperrors.BadRequest("Token is required")
	}

	order, err := s.store.GetOrderByTransaction(ctx, txnID)
	if errors.Is(err, storage.ErrNotFound) {
		return CallbackResult{}, apperrors.NotFound("Payment order not found")
	}
	if err != nil {
		return CallbackResult{}, apperrors.Internal("Failed to load payment order", err)
	}
	if order.Status == payment.StatusSuccess {
		return CallbackResult{Order: order}, nil
	}

	res, err := s.verifier.PaymentStatus(ctx, txnID)
	if err != nil {
		return CallbackResult{}, provider.AsServiceError(err, "Payment verification failed")
	}
	if strings.TrimSpace(res.Status) != "200" {
		s.log.WithContext(ctx).WithField("txn", txnID).WithField("gateway_status", res.Status).Info("payment not confirmed")
		return CallbackResult{Order: order}, nil
	}

	paid, from, err := s.markPaid(ctx, txnID)
	if errors.Is(err, storage.ErrConflict) {
		current, gerr := s.store.GetOrderByTransaction(ctx, txnID)
		if gerr != nil {
			return CallbackResult{}, apperrors.Internal("Failed to load payment order", gerr)
		}
		return CallbackResult{Order: current}, nil
	}
	if err != nil {
		return CallbackResult{}, apperrors.Internal("Failed to update payment order", err)
	}

	if _, err := s.wallet.Credit(ctx, paid.UserID, paid.Amount, ledger.TypeCredit, "Wallet top-up via payment gateway", txnID); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("txn", txnID).Error("wallet credit failed for paid order")
		// Undo the transition so the next callback credits the order.
		if _, rerr := s.store.TransitionOrder(ctx, txnID, payment.StatusSuccess, from); rerr != nil {
			s.log.WithContext(ctx).WithError(rerr).WithField("txn", txnID).Error("failed to reopen uncredited order")
		}
		return CallbackResult{}, err
	}
	s.log.WithContext(ctx).WithField("txn", txnID).WithField("user_id", paid.UserID).Info("wallet topped up")
	return CallbackResult{Order: paid, Credited: true}, nil
}

// markPaid moves a pending or expired order to success and reports the
// status it left.
func (s *Service) markPaid(ctx context.Context, txnID string) (payment.Order, payment.Status, error) {
	order, err := s.store.TransitionOrder(ctx, txnID, payment.StatusPending, payment.StatusSuccess)
	if errors.Is(err, storage.ErrConflict) {
		order, err = s.store.TransitionOrder(ctx, txnID, payment.StatusExpired, payment.StatusSuccess)
		return order, payment.StatusExpired, err
	}
	return order, payment.StatusPending, err
}

// ExpireStale marks pending orders older than maxAge as expired and returns
// how many changed.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	orders, err := s.store.ListPendingOrdersBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range orders {
		_, err := s.store.TransitionOrder(ctx, order.TransactionID, payment.StatusPending, payment.StatusExpired)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, storage.ErrConflict):
		default:
			return expired, fmt.Errorf("expire %s: %w", order.TransactionID, err)
		}
	}
	return expired, nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
