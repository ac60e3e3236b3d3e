package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/payment"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
	"github.com/jkdigital/servicehub/internal/app/storage"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, account.User{Name: "Asha", Mobile: "9876543210"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	_, err = s.CreateUser(ctx, account.User{Name: "Dup", Mobile: "9876543210"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetUserByMobile(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, s.SetUserBlocked(ctx, u.ID, true))
	got, _ = s.GetUser(ctx, u.ID)
	assert.True(t, got.IsBlocked)

	assert.ErrorIs(t, s.SetUserBlocked(ctx, "missing", true), storage.ErrNotFound)
	n, _ := s.CountUsers(ctx)
	assert.Equal(t, 1, n)
}

func TestApplyWalletChange(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.CreateUser(ctx, account.User{Name: "A", Mobile: "9000000000", WalletBalance: 100})

	// reserve 60, then a debit of 50 must fail: only 40 available
	u, err := s.ApplyWalletChange(ctx, u.ID, 0, 60)
	require.NoError(t, err)
	assert.Equal(t, 40.0, u.Available())

	_, err = s.ApplyWalletChange(ctx, u.ID, -50, 0)
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)

	// consume the hold
	u, err = s.ApplyWalletChange(ctx, u.ID, -60, -60)
	require.NoError(t, err)
	assert.Equal(t, 40.0, u.WalletBalance)
	assert.Equal(t, 0.0, u.ReservedBalance)

	// releasing more than held is rejected
	_, err = s.ApplyWalletChange(ctx, u.ID, 0, -1)
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
}

func TestApplyWalletChange_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.CreateUser(ctx, account.User{Name: "A", Mobile: "9000000001", WalletBalance: 100})

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ApplyWalletChange(ctx, u.ID, -10, 0); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	got, _ := s.GetUser(ctx, u.ID)
	assert.Equal(t, 0.0, got.WalletBalance)
}

func TestSetWalletBalance(t *testing.T) {
	ctx := context.Background()
	s := New()
	u, _ := s.CreateUser(ctx, account.User{Name: "A", Mobile: "9000000002", WalletBalance: 50})

	before, after, err := s.SetWalletBalance(ctx, u.ID, 120.456)
	require.NoError(t, err)
	assert.Equal(t, 50.0, before.WalletBalance)
	assert.Equal(t, 120.46, after.WalletBalance)

	_, err = s.ApplyWalletChange(ctx, u.ID, 0, 100)
	require.NoError(t, err)
	_, _, err = s.SetWalletBalance(ctx, u.ID, 10)
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
}

func TestClearReservations(t *testing.T) {
	ctx := context.Background()
	s := New()
	held, _ := s.CreateUser(ctx, account.User{Name: "A", Mobile: "9000000003", WalletBalance: 200})
	_, _ = s.CreateUser(ctx, account.User{Name: "B", Mobile: "9000000004", WalletBalance: 200})
	_, err := s.ApplyWalletChange(ctx, held.ID, 0, 150)
	require.NoError(t, err)

	n, err := s.ClearReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := s.GetUser(ctx, held.ID)
	assert.Equal(t, 0.0, got.ReservedBalance)
	assert.Equal(t, 200.0, got.WalletBalance)
}

func TestCatalogAndPrices(t *testing.T) {
	ctx := context.Background()
	s := New()
	svc, err := s.CreateService(ctx, catalog.Service{Name: "RC", DefaultPrice: 100, IsActive: true})
	require.NoError(t, err)
	off, _ := s.CreateService(ctx, catalog.Service{Name: "Old", IsActive: false})

	active, _ := s.ListServices(ctx, true)
	require.Len(t, active, 1)
	assert.Equal(t, svc.ID, active[0].ID)
	assert.NotNil(t, active[0].Fields)

	require.NoError(t, s.SeedPrices(ctx, []catalog.PriceOverride{{UserID: "u1", ServiceID: svc.ID, Price: 100}}))
	_, err = s.UpsertPrice(ctx, catalog.PriceOverride{UserID: "u1", ServiceID: svc.ID, Price: 80})
	require.NoError(t, err)
	// seeding again must not clobber the admin price
	require.NoError(t, s.SeedPrices(ctx, []catalog.PriceOverride{{UserID: "u1", ServiceID: svc.ID, Price: 100}}))
	p, err := s.GetPrice(ctx, "u1", svc.ID)
	require.NoError(t, err)
	assert.Equal(t, 80.0, p.Price)

	require.NoError(t, s.DeleteService(ctx, svc.ID))
	_, err = s.GetPrice(ctx, "u1", svc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteService(ctx, svc.ID), storage.ErrNotFound)

	require.NoError(t, s.SetServiceActive(ctx, off.ID, true))
	active, _ = s.ListServices(ctx, true)
	assert.Len(t, active, 1)
}

func TestTransitionRequest(t *testing.T) {
	ctx := context.Background()
	s := New()
	req, _ := s.CreateRequest(ctx, request.ServiceRequest{UserID: "u1", Status: request.StatusPending, FieldData: map[string]interface{}{"a": "b"}})

	done, err := s.TransitionRequest(ctx, req.ID, request.StatusPending, request.StatusFailed, "bad docs")
	require.NoError(t, err)
	assert.Equal(t, request.StatusFailed, done.Status)
	assert.Equal(t, "bad docs", done.AdminMessage)

	_, err = s.TransitionRequest(ctx, req.ID, request.StatusPending, request.StatusFailed, "again")
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestListOrderingNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) })

	first, _ := s.CreateRequest(ctx, request.ServiceRequest{UserID: "u1"})
	second, _ := s.CreateRequest(ctx, request.ServiceRequest{UserID: "u1"})
	_, _ = s.CreateRequest(ctx, request.ServiceRequest{UserID: "u2"})

	list, _ := s.ListRequests(ctx, "u1")
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	all, _ := s.ListRequests(ctx, "")
	assert.Len(t, all, 3)
}

func TestTransitionToken(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateToken(ctx, llr.Token{Token: "tok-1", UserID: "u1", Status: llr.StatusSubmitted})
	require.NoError(t, err)

	tok, err := s.TransitionToken(ctx, "tok-1", llr.Active(), llr.Update{Status: llr.StatusCompleted, PDFData: "JVBE"})
	require.NoError(t, err)
	assert.Equal(t, llr.StatusCompleted, tok.Status)
	assert.NotNil(t, tok.LastChecked)

	_, err = s.TransitionToken(ctx, "tok-1", llr.Active(), llr.Update{Status: llr.StatusRefunded})
	assert.ErrorIs(t, err, storage.ErrConflict)

	list, _ := s.ListTokens(ctx, "u1")
	require.Len(t, list, 1)
	assert.Empty(t, list[0].PDFData)

	full, _ := s.GetToken(ctx, "tok-1")
	assert.Equal(t, "JVBE", full.PDFData)

	active, _ := s.ListTokensByStatus(ctx, llr.Active())
	assert.Empty(t, active)
}

func TestOrders(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return base })

	_, err := s.CreateOrder(ctx, payment.Order{UserID: "u1", TransactionID: "TXN1", Status: payment.StatusPending})
	require.NoError(t, err)
	_, err = s.CreateOrder(ctx, payment.Order{UserID: "u1", TransactionID: "TXN1"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	stale, _ := s.ListPendingOrdersBefore(ctx, base.Add(time.Minute))
	assert.Len(t, stale, 1)

	_, err = s.TransitionOrder(ctx, "TXN1", payment.StatusPending, payment.StatusSuccess)
	require.NoError(t, err)
	_, err = s.TransitionOrder(ctx, "TXN1", payment.StatusPending, payment.StatusSuccess)
	assert.ErrorIs(t, err, storage.ErrConflict)

	for i := 0; i < 12; i++ {
		_, _ = s.CreateOrder(ctx, payment.Order{UserID: "u1", TransactionID: payment.NewTransactionID()})
	}
	list, _ := s.ListOrders(ctx, "u1", 10)
	assert.Len(t, list, 10)
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec, err := s.CreateRecord(ctx, dlpdf.Record{UserID: "u1", DLNo: "JK01", PDFData: "JVBE"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecord(ctx, rec.ID))
	_, err = s.GetRecord(ctx, rec.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRecord(ctx, rec.ID), storage.ErrNotFound)
}
