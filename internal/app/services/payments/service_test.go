package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/payment"
	"github.com/jkdigital/servicehub/internal/app/services/wallet"
	"github.com/jkdigital/servicehub/internal/app/storage"
	"github.com/jkdigital/servicehub/internal/app/storage/memory"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/provider"
)

type fakeVerifier struct {
	mu     sync.Mutex
	status string
	err    error
	calls  int
}

func (f *fakeVerifier) PaymentStatus(context.Context, string) (provider.PaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return provider.PaymentResult{Status: f.status}, f.err
}

func setup(t *testing.T) (*Service, *memory.Store, *fakeVerifier, account.User) {
	t.Helper()
	store := memory.New()
	user, err := store.CreateUser(context.Background(), account.User{Name: "Kabir", Mobile: "9812345678", WalletBalance: 50})
	require.NoError(t, err)
	verifier := &fakeVerifier{status: "200"}
	w := wallet.New(store, store, logging.Discard("wallet"))
	return New(store, store, w, verifier, Gateway{}, logging.Discard("payments")), store, verifier, user
}

func TestGatewayLinks(t *testing.T) {
	g := DefaultGateway()
	assert.Equal(t,
		"https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=upi://pay?pa=payment@jkdigitalcenter.in&pn=JK%20Digital%20Center&am=500&cu=INR",
		g.QRCodeURL(500))
	assert.Equal(t, "https://api.jkdigitalcenter.in/payment?token=TXNABC", g.PaymentLink("TXNABC"))
	assert.Contains(t, g.QRCodeURL(250.5), "am=250.5&")
}

func TestCreateOrder(t *testing.T) {
	svc, store, _, user := setup(t)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, user.ID, 500)
	require.NoError(t, err)
	order := created.Order
	assert.True(t, strings.HasPrefix(order.TransactionID, "TXN"))
	assert.Len(t, order.TransactionID, 19)
	assert.Equal(t, payment.StatusPending, order.Status)
	assert.Equal(t, "payment@jkdigitalcenter.in", order.UPIID)
	assert.Contains(t, order.PaymentLink, order.TransactionID)
	assert.Equal(t, "Kabir", created.User.Name)

	entries, err := store.ListEntries(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.TypePendingCredit, entries[0].TransactionType)
	assert.Equal(t, "Payment initiated - "+order.TransactionID, entries[0].Description)
	assert.Equal(t, 50.0, entries[0].BalanceAfter)

	history, err := svc.History(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, store, _, user := setup(t)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, user.ID, 199.99)
	se := apperrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "Minimum amount is ₹200", se.Message)

	_, err = svc.CreateOrder(ctx, "missing", 500)
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	require.NoError(t, store.SetUserBlocked(ctx, user.ID, true))
	_, err = svc.CreateOrder(ctx, user.ID, 500)
	assert.True(t, apperrors.Is(err, apperrors.CodeForbidden))
}

func TestCallbackCreditsOnce(t *testing.T) {
	svc, store, verifier, user := setup(t)
	ctx := context.Background()
	created, err := svc.CreateOrder(ctx, user.ID, 300)
	require.NoError(t, err)
	txn := created.Order.TransactionID

	res, err := svc.Callback(ctx, txn)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, payment.StatusSuccess, res.Order.Status)

	res, err = svc.Callback(ctx, txn)
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Equal(t, 1, verifier.calls, "settled orders are not re-verified")

	current, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 350.0, current.WalletBalance)

	entries, _ := store.ListEntries(ctx, user.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.TypeCredit, entries[0].TransactionType)
	assert.Equal(t, "Wallet top-up via payment gateway", entries[0].Description)
	assert.Equal(t, txn, entries[0].ReferenceID)
}

// flakyAccounts fails the next n wallet credits.
type flakyAccounts struct {
	storage.AccountStore
	failCredits int
}

func (f *flakyAccounts) ApplyWalletChange(ctx context.Context, id string, balanceDelta, reservedDelta float64) (account.User, error) {
	if balanceDelta > 0 && f.failCredits > 0 {
		f.failCredits--
		return account.User{}, errors.New("transient db error")
	}
	return f.AccountStore.ApplyWalletChange(ctx, id, balanceDelta, reservedDelta)
}

func TestCallbackRetriesFailedCredit(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	user, err := store.CreateUser(ctx, account.User{Name: "Kabir", Mobile: "9812345678", WalletBalance: 50})
	require.NoError(t, err)
	accounts := &flakyAccounts{AccountStore: store, failCredits: 1}
	w := wallet.New(accounts, store, logging.Discard("wallet"))
	svc := New(store, store, w, &fakeVerifier{status: "200"}, Gateway{}, logging.Discard("payments"))

	created, err := svc.CreateOrder(ctx, user.ID, 300)
	require.NoError(t, err)
	txn := created.Order.TransactionID

	_, err = svc.Callback(ctx, txn)
	require.Error(t, err)
	order, err := store.GetOrderByTransaction(ctx, txn)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, order.Status)

	res, err := svc.Callback(ctx, txn)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	current, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 350.0, current.WalletBalance)
}

func TestCallbackUnconfirmed(t *testing.T) {
	svc, store, verifier, user := setup(t)
	ctx := context.Background()
	created, err := svc.CreateOrder(ctx, user.ID, 300)
	require.NoError(t, err)

	verifier.status = "400"
	res, err := svc.Callback(ctx, created.Order.TransactionID)
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Equal(t, payment.StatusPending, res.Order.Status)

	verifier.status, verifier.err = "", provider.ErrCircuitOpen
	_, err = svc.Callback(ctx, created.Order.TransactionID)
	assert.True(t, apperrors.Is(err, apperrors.CodeUnavailable))

	_, err = svc.Callback(ctx, "")
	assert.True(t, apperrors.Is(err, apperrors.CodeBadRequest))
	_, err = svc.Callback(ctx, "TXNUNKNOWN")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))

	current, _ := store.GetUser(ctx, user.ID)
	assert.Equal(t, 50.0, current.WalletBalance)
}

func TestExpireStaleAndLatePayment(t *testing.T) {
	svc, store, _, user := setup(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start
	store.SetClock(func() time.Time { return now })
	svc.now = func() time.Time { return now }

	old, err := svc.CreateOrder(ctx, user.ID, 200)
	require.NoError(t, err)
	now = start.Add(40 * time.Minute)
	fresh, err := svc.CreateOrder(ctx, user.ID, 250)
	require.NoError(t, err)

	n, err := svc.ExpireStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := store.GetOrderByTransaction(ctx, old.Order.TransactionID)
	assert.Equal(t, payment.StatusExpired, got.Status)
	got, _ = store.GetOrderByTransaction(ctx, fresh.Order.TransactionID)
	assert.Equal(t, payment.StatusPending, got.Status)

	// the gateway confirming an expired order still credits it
	res, err := svc.Callback(ctx, old.Order.TransactionID)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	current, _ := store.GetUser(ctx, user.ID)
	assert.Equal(t, 250.0, current.WalletBalance)
}

func TestExpirySchedulerLifecycle(t *testing.T) {
	svc, _, _, _ := setup(t)

	_, err := NewExpiryScheduler(svc, "not a schedule", time.Minute, logging.Discard("expiry"))
	require.Error(t, err)

	sched, err := NewExpiryScheduler(svc, "@every 1h", time.Minute, logging.Discard("expiry"))
	require.NoError(t, err)
	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Start(context.Background()))
	sched.RunOnce()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Stop(ctx))
	require.NoError(t, sched.Stop(ctx))
}

