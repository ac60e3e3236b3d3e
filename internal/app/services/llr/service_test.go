package llr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	domain "github.com/jkdigital/servicehub/internal/app/domain/llr"
	catalogsvc "github.com/jkdigital/servicehub/internal/app/services/catalog"
	"github.com/jkdigital/servicehub/internal/app/services/wallet"
	"github.com/jkdigital/servicehub/internal/app/storage"
	"github.com/jkdigital/servicehub/internal/app/storage/memory"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/provider"
)

type fakeProvider struct {
	mu        sync.Mutex
	submitted []provider.ExamInput
	checks    int
	submit    func(provider.ExamInput) (provider.ExamResult, error)
	check     func(n int) (provider.StatusResult, error)
}

func (f *fakeProvider) SubmitExam(_ context.Context, in provider.ExamInput) (provider.ExamResult, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, in)
	f.mu.Unlock()
	return f.submit(in)
}

func (f *fakeProvider) CheckExam(_ context.Context, _ string) (provider.StatusResult, error) {
	f.mu.Lock()
	f.checks++
	n := f.checks
	f.mu.Unlock()
	return f.check(n)
}

func (f *fakeProvider) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

func acceptAll(provider.ExamInput) (provider.ExamResult, error) {
	return provider.ExamResult{Status: "200", Token: "tok-1", ApplName: "RAVI KUMAR", Queue: "7", RTOName: "Srinagar"}, nil
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	wallet   *wallet.Service
	provider *fakeProvider
	catalog  *catalogsvc.Service
	user     account.User
	svcID    string
}

func setup(t *testing.T, balance float64) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	user, err := store.CreateUser(ctx, account.User{Name: "Ravi", Mobile: "9876501234", WalletBalance: balance})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	cat := catalogsvc.New(store, store, logging.Discard("catalog"))
	exam, err := cat.CreateService(ctx, "LLR Exam", "Learner licence exam", 300, nil)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	w := wallet.New(store, store, logging.Discard("wallet"))
	fp := &fakeProvider{submit: acceptAll, check: func(int) (provider.StatusResult, error) {
		return provider.StatusResult{Status: "500", Queue: "3", Remarks: "in queue"}, nil
	}}
	svc := New(store, cat, w, fp, nil, Options{CacheTTL: time.Nanosecond, WatchInterval: time.Millisecond}, logging.Discard("llr"))
	return fixture{svc: svc, store: store, wallet: w, provider: fp, catalog: cat, user: user, svcID: exam.ID}
}

func validInput() domain.ExamInput {
	return domain.ExamInput{ApplNo: " ab123 ", DOB: "01-01-2000", Password: "secret"}
}

func TestSubmitCharges(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()

	sub, err := f.svc.Submit(ctx, f.user.ID, f.svcID, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.NewWalletBalance != 700 {
		t.Fatalf("balance = %v, want 700", sub.NewWalletBalance)
	}
	if sub.Token.Token != "tok-1" || sub.Token.Status != domain.StatusSubmitted || sub.Token.ApplNo != "AB123" {
		t.Fatalf("token = %+v", sub.Token)
	}
	if got := f.provider.submitted[0]; got.ApplNo != "AB123" || got.Password != "SECRET" || got.Type != "day" {
		t.Fatalf("provider input = %+v", got)
	}
	if f.wallet.Pending() != 0 {
		t.Fatalf("hold left open")
	}

	history, _ := f.wallet.History(ctx, f.user.ID)
	if len(history) != 1 || history[0].Description != "Payment for LLR Exam service - Application: AB123" || history[0].ReferenceID != sub.Token.ID {
		t.Fatalf("history = %+v", history)
	}
}

func TestSubmitRejections(t *testing.T) {
	cases := []struct {
		name   string
		result provider.ExamResult
		err    error
		code   apperrors.Code
	}{
		{name: "verification failed", result: provider.ExamResult{Status: "404", Message: "no match"}, code: apperrors.CodeBadRequest},
		{name: "provider busy", result: provider.ExamResult{Status: "500"}, code: apperrors.CodeUpstream},
		{name: "unexpected", result: provider.ExamResult{Status: "201"}, code: apperrors.CodeBadRequest},
		{name: "transport", err: errors.New("connection reset"), code: apperrors.CodeUpstream},
		{name: "circuit open", err: provider.ErrCircuitOpen, code: apperrors.CodeUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, 1000)
			f.provider.submit = func(provider.ExamInput) (provider.ExamResult, error) { return tc.result, tc.err }

			_, err := f.svc.Submit(context.Background(), f.user.ID, f.svcID, validInput())
			if !apperrors.Is(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
			user, _ := f.store.GetUser(context.Background(), f.user.ID)
			if user.WalletBalance != 1000 || user.ReservedBalance != 0 {
				t.Fatalf("wallet changed: %+v", user)
			}
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.user.ID, "", domain.ExamInput{ApplNo: "A1"})
	se := apperrors.GetServiceError(err)
	if se == nil || se.Message != "Missing required fields: serviceId, dob, pass" {
		t.Fatalf("unexpected error %v", err)
	}

	poor := setup(t, 100)
	if _, err := poor.svc.Submit(ctx, poor.user.ID, poor.svcID, validInput()); !apperrors.Is(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if len(poor.provider.submitted) != 0 {
		t.Fatalf("provider called without funds")
	}
}

func TestCheckStatusLifecycle(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()
	if _, err := f.svc.Submit(ctx, f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.provider.check = func(n int) (provider.StatusResult, error) {
		if n == 1 {
			return provider.StatusResult{Status: "500", Queue: "3", Remarks: "in queue"}, nil
		}
		return provider.StatusResult{Status: "200", Message: "JVBERi0xLjQ=", Filename: "LL.pdf", Remarks: "passed"}, nil
	}

	res, err := f.svc.CheckStatus(ctx, "tok-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.TokenStatus != domain.StatusProcessing || res.Queue != "3" || res.PDFAvailable {
		t.Fatalf("processing result = %+v", res)
	}
	if _, err := f.svc.DownloadPDF(ctx, "tok-1"); !apperrors.Is(err, apperrors.CodeBadRequest) {
		t.Fatalf("expected bad request before completion, got %v", err)
	}

	time.Sleep(time.Millisecond)
	res, err = f.svc.CheckStatus(ctx, "tok-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Status != "200" || !res.PDFAvailable || res.Message == "JVBERi0xLjQ=" {
		t.Fatalf("completed result = %+v", res)
	}

	// terminal tokens are answered from storage
	again, err := f.svc.CheckStatus(ctx, "tok-1")
	if err != nil || again.TokenStatus != domain.StatusCompleted {
		t.Fatalf("terminal check = %+v, %v", again, err)
	}
	if f.provider.checkCount() != 2 {
		t.Fatalf("provider checks = %d, want 2", f.provider.checkCount())
	}

	pdf, err := f.svc.DownloadPDF(ctx, "tok-1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if pdf.Data != "JVBERi0xLjQ=" || pdf.Filename != "LL.pdf" || pdf.MimeType != "application/pdf" {
		t.Fatalf("pdf = %+v", pdf)
	}

	tokens, _ := f.svc.ListForUser(ctx, f.user.ID)
	if len(tokens) != 1 || tokens[0].PDFData != "" {
		t.Fatalf("tokens = %+v", tokens)
	}
}

func TestRefundHappensOnce(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()
	if _, err := f.svc.Submit(ctx, f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.provider.check = func(int) (provider.StatusResult, error) {
		return provider.StatusResult{Status: "300", Message: "slot cancelled"}, nil
	}
	stale, _ := f.store.GetToken(ctx, "tok-1")

	for i := 0; i < 3; i++ {
		res, err := f.svc.refresh(ctx, stale)
		if err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
		if res.TokenStatus != domain.StatusRefunded {
			t.Fatalf("status = %s", res.TokenStatus)
		}
	}

	user, _ := f.store.GetUser(ctx, f.user.ID)
	if user.WalletBalance != 1000 {
		t.Fatalf("balance = %v, want 1000 after one refund", user.WalletBalance)
	}
	history, _ := f.wallet.History(ctx, f.user.ID)
	refunds := 0
	for _, e := range history {
		if e.TransactionType == ledger.TypeRefund {
			refunds++
			if e.Description != "Refund for LLR exam - Application: AB123" {
				t.Fatalf("refund entry = %+v", e)
			}
		}
	}
	if refunds != 1 {
		t.Fatalf("refunds = %d, want 1", refunds)
	}
	tok, _ := f.store.GetToken(ctx, "tok-1")
	if tok.RefundReason != "slot cancelled" {
		t.Fatalf("token = %+v", tok)
	}
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

func TestRefundRetriedAfterWalletFailure(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()
	accounts := &flakyAccounts{AccountStore: f.store}
	w := wallet.New(accounts, f.store, logging.Discard("wallet"))
	svc := New(f.store, f.catalog, w, f.provider, nil, Options{CacheTTL: time.Nanosecond, WatchInterval: time.Millisecond}, logging.Discard("llr"))

	if _, err := svc.Submit(ctx, f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.provider.check = func(int) (provider.StatusResult, error) {
		return provider.StatusResult{Status: "300", Message: "slot cancelled"}, nil
	}

	accounts.failCredits = 1
	if _, err := svc.CheckStatus(ctx, "tok-1"); err == nil {
		t.Fatal("expected refund failure")
	}
	tok, _ := f.store.GetToken(ctx, "tok-1")
	if tok.Status != domain.StatusSubmitted {
		t.Fatalf("status = %s, want submitted after failed refund", tok.Status)
	}

	res, err := svc.CheckStatus(ctx, "tok-1")
	if err != nil {
		t.Fatalf("retry check: %v", err)
	}
	if res.TokenStatus != domain.StatusRefunded {
		t.Fatalf("status = %s, want refunded", res.TokenStatus)
	}
	user, _ := f.store.GetUser(ctx, f.user.ID)
	if user.WalletBalance != 1000 {
		t.Fatalf("balance = %v, want 1000 after refund", user.WalletBalance)
	}
}

func TestUnknownCodeKeepsStatus(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()
	if _, err := f.svc.Submit(ctx, f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.provider.check = func(int) (provider.StatusResult, error) {
		return provider.StatusResult{Status: "102", Message: "queued"}, nil
	}

	res, err := f.svc.CheckStatus(ctx, "tok-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.TokenStatus != domain.StatusSubmitted || res.Status != "102" {
		t.Fatalf("result = %+v", res)
	}
	tok, _ := f.store.GetToken(ctx, "tok-1")
	if tok.LastChecked == nil {
		t.Fatalf("lastChecked not recorded")
	}
}

func TestCheckStatusErrors(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()

	if _, err := f.svc.CheckStatus(ctx, ""); !apperrors.Is(err, apperrors.CodeBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if _, err := f.svc.CheckStatus(ctx, "nope"); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := f.svc.Submit(ctx, f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.provider.check = func(int) (provider.StatusResult, error) {
		return provider.StatusResult{}, errors.New("dial tcp: refused")
	}
	if _, err := f.svc.CheckStatus(ctx, "tok-1"); !apperrors.Is(err, apperrors.CodeUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestStatusCacheSharesUpstreamCalls(t *testing.T) {
	f := setup(t, 1000)
	ctx := context.Background()
	f.svc.opts.CacheTTL = time.Minute
	if _, err := f.svc.Submit(ctx, f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := f.svc.CheckStatus(ctx, "tok-1"); err != nil {
			t.Fatalf("check: %v", err)
		}
	}
	if f.provider.checkCount() != 1 {
		t.Fatalf("provider checks = %d, want 1", f.provider.checkCount())
	}

	// a callback drops the cached answer
	if _, err := f.svc.HandleCallback(ctx, "tok-1"); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if f.provider.checkCount() != 2 {
		t.Fatalf("provider checks = %d, want 2", f.provider.checkCount())
	}
}

func TestWatchStopsAtTerminal(t *testing.T) {
	f := setup(t, 1000)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := f.svc.Submit(ctx, f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	f.provider.check = func(n int) (provider.StatusResult, error) {
		switch {
		case n == 1:
			return provider.StatusResult{Status: "500", Queue: "2"}, nil
		case n == 2:
			return provider.StatusResult{}, errors.New("timeout")
		default:
			return provider.StatusResult{Status: "404", Message: "application rejected"}, nil
		}
	}

	var seen []domain.Status
	err := f.svc.Watch(ctx, "tok-1", time.Millisecond, func(res CheckResult) error {
		seen = append(seen, res.TokenStatus)
		return nil
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(seen) != 2 || seen[0] != domain.StatusProcessing || seen[1] != domain.StatusFailed {
		t.Fatalf("seen = %v", seen)
	}
}

func TestWatchHonoursContext(t *testing.T) {
	f := setup(t, 1000)
	if _, err := f.svc.Submit(context.Background(), f.user.ID, f.svcID, validInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := f.svc.Watch(ctx, "tok-1", time.Millisecond, func(CheckResult) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
