// Package llr books learner's licence exams with the provider and tracks the
// returned tokens until they complete, fail or are refunded.
package llr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	domain "github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/metrics"
	catalogsvc "github.com/jkdigital/servicehub/internal/app/services/catalog"
	"github.com/jkdigital/servicehub/internal/app/services/wallet"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/platform/cache"
	"github.com/jkdigital/servicehub/internal/provider"
)

const (
	completedMessage = "LLR exam completed. PDF is ready for download."
	verifyDetails    = "Please verify that your Application Number and Date of Birth exactly match your LLR application documents."
	cachePrefix      = "llr:status:"
)

// Provider is the subset of the provider client the service needs.
type Provider interface {
	SubmitExam(ctx context.Context, in provider.ExamInput) (provider.ExamResult, error)
	CheckExam(ctx context.Context, token string) (provider.StatusResult, error)
}

// Options tunes the service.
type Options struct {
	// CacheTTL bounds how long a provider status answer is reused.
	CacheTTL time.Duration
	// WatchInterval is the default Watch period.
	WatchInterval time.Duration
}

// Submission is the outcome of a successful booking.
type Submission struct {
	Token            domain.Token
	NewWalletBalance float64
}

// CheckResult is the status view returned to clients. It never carries PDF
// data.
type CheckResult struct {
	Status       string        `json:"status"`
	TokenStatus  domain.Status `json:"tokenStatus"`
	Message      string        `json:"message"`
	Queue        string        `json:"queue"`
	Remarks      string        `json:"remarks"`
	Filename     string        `json:"filename"`
	PDFAvailable bool          `json:"pdfAvailable"`
}

// Terminal reports whether the token needs no further checks.
func (r CheckResult) Terminal() bool {
	return r.TokenStatus.IsTerminal()
}

// PDF is a downloadable certificate.
type PDF struct {
	Data     string `json:"pdfData"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

// Service manages LLR exam bookings.
type Service struct {
	store    storage.LLRStore
	catalog  *catalogsvc.Service
	wallet   *wallet.Service
	provider Provider
	cache    cache.Cache
	opts     Options
	log      *logging.Logger
	now      func() time.Time
	inflight singleflight.Group
}

// New constructs the service. A nil cache keeps status answers in process.
func New(store storage.LLRStore, catalog *catalogsvc.Service, wallet *wallet.Service, p Provider, c cache.Cache, opts Options, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("llr")
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 4 * time.Second
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = 5 * time.Second
	}
	return &Service{
		store:    store,
		catalog:  catalog,
		wallet:   wallet,
		provider: p,
		cache:    c,
		opts:     opts,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit books an exam. The price is held while the provider is called and
// only charged when the provider accepts the booking.
func (s *Service) Submit(ctx context.Context, userID, serviceID string, in domain.ExamInput) (Submission, error) {
	var missing []string
	if strings.TrimSpace(userID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(serviceID) == "" {
		missing = append(missing, "serviceId")
	}
	missing = append(missing, in.Missing()...)
	if len(missing) > 0 {
		return Submission{}, apperrors.BadRequest("Missing required fields: " + strings.Join(missing, ", "))
	}
	in = in.Normalize()

	quote, err := s.catalog.Quote(ctx, userID, serviceID, catalogsvc.QuoteOptions{})
	if err != nil {
		return Submission{}, err
	}

	hold, err := s.wallet.Reserve(ctx, userID, quote.Price, "llr-exam")
	if err != nil {
		return Submission{}, err
	}

	res, err := s.provider.SubmitExam(ctx, provider.ExamInput{
		ApplNo:   in.ApplNo,
		DOB:      in.DOB,
		Password: in.Password,
		Pin:      in.Pin,
		Type:     in.Type,
	})
	if err != nil {
		s.release(ctx, hold)
		return Submission{}, provider.AsServiceError(err, "LLR API request failed")
	}

	switch strings.TrimSpace(res.Status) {
	case domain.CodeCompleted:
	case domain.CodeNotFound:
		s.release(ctx, hold)
		return Submission{}, apperrors.BadRequest("Application data verification failed").
			WithDetails("message", res.Message).
			WithDetails("details", verifyDetails)
	case domain.CodeProcessing:
		s.release(ctx, hold)
		return Submission{}, apperrors.Upstream("LLR service temporarily unavailable", nil).
			WithDetails("message", res.Message)
	default:
		s.release(ctx, hold)
		return Submission{}, apperrors.BadRequest("Unexpected response from LLR API").
			WithDetails("message", res.Message).
			WithDetails("status", res.Status)
	}

	if strings.TrimSpace(res.Token) == "" {
		s.release(ctx, hold)
		return Submission{}, apperrors.Upstream("LLR API returned no token", nil)
	}

	tok, err := s.store.CreateToken(ctx, domain.Token{
		UserID:       quote.User.ID,
		UserName:     quote.User.Name,
		UserMobile:   quote.User.Mobile,
		ServiceID:    quote.Service.ID,
		ServiceName:  quote.Service.Name,
		ServicePrice: quote.Price,
		Token:        res.Token,
		ApplNo:       firstNonEmpty(res.ApplNo, in.ApplNo),
		ApplName:     res.ApplName,
		DOB:          firstNonEmpty(res.DOB, in.DOB),
		Queue:        res.Queue,
		RTOCode:      res.RTOCode,
		RTOName:      res.RTOName,
		StateCode:    res.StateCode,
		StateName:    res.StateName,
		Status:       domain.StatusSubmitted,
	})
	if err != nil {
		// The provider has already booked the exam, so the charge stands.
		s.log.WithContext(ctx).WithError(err).WithField("token", res.Token).Error("failed to store llr token")
		if _, cerr := s.wallet.Consume(ctx, hold, s.debitDescription(quote.Service.Name, in.ApplNo), res.Token); cerr != nil {
			s.release(ctx, hold)
		}
		return Submission{}, apperrors.Internal("Failed to record LLR booking", err)
	}

	user, err := s.wallet.Consume(ctx, hold, s.debitDescription(quote.Service.Name, in.ApplNo), tok.ID)
	if err != nil {
		s.release(ctx, hold)
		return Submission{}, err
	}

	s.log.WithContext(ctx).
		WithField("user_id", userID).
		WithField("token", tok.Token).
		WithField("applno", tok.ApplNo).
		Info("llr exam submitted")
	return Submission{Token: tok.WithoutPDF(), NewWalletBalance: user.WalletBalance}, nil
}

func (s *Service) debitDescription(serviceName, applNo string) string {
	return fmt.Sprintf("Payment for %s service - Application: %s", serviceName, applNo)
}

// Get returns a token without its PDF.
func (s *Service) Get(ctx context.Context, token string) (domain.Token, error) {
	tok, err := s.lookup(ctx, token)
	if err != nil {
		return domain.Token{}, err
	}
	return tok.WithoutPDF(), nil
}

// CheckStatus returns the token status, asking the provider unless the token
// is already terminal.
func (s *Service) CheckStatus(ctx context.Context, token string) (CheckResult, error) {
	tok, err := s.lookup(ctx, token)
	if err != nil {
		return CheckResult{}, err
	}
	if tok.Status.IsTerminal() {
		return resultFromToken(tok), nil
	}
	return s.refresh(ctx, tok)
}

// HandleCallback refreshes a token after the provider notified us of a
// change. The notification itself is not trusted; the provider is asked.
func (s *Service) HandleCallback(ctx context.Context, token string) (CheckResult, error) {
	tok, err := s.lookup(ctx, token)
	if err != nil {
		return CheckResult{}, err
	}
	if tok.Status.IsTerminal() {
		return resultFromToken(tok), nil
	}
	if err := s.cache.Delete(ctx, cachePrefix+tok.Token); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("drop cached llr status")
	}
	return s.refresh(ctx, tok)
}

// DownloadPDF returns the certificate of a completed token.
func (s *Service) DownloadPDF(ctx context.Context, token string) (PDF, error) {
	tok, err := s.lookup(ctx, token)
	if err != nil {
		return PDF{}, err
	}
	if tok.Status != domain.StatusCompleted {
		return PDF{}, apperrors.BadRequest("PDF not available. Exam not completed yet.")
	}
	if tok.PDFData == "" {
		return PDF{}, apperrors.NotFound("PDF data not available")
	}
	return PDF{Data: tok.PDFData, Filename: tok.Filename, MimeType: "application/pdf"}, nil
}

// ListForUser returns the user's tokens, newest first, without PDF data.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Token, error) {
	tokens, err := s.store.ListTokens(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list LLR tokens", err)
	}
	for i := range tokens {
		tokens[i] = tokens[i].WithoutPDF()
	}
	return tokens, nil
}

// Watch refreshes the token every interval and passes each result to fn
// until the token is terminal or ctx ends. Upstream failures are skipped;
// the next tick tries again.
func (s *Service) Watch(ctx context.Context, token string, interval time.Duration, fn func(CheckResult) error) error {
	if interval <= 0 {
		interval = s.opts.WatchInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := s.CheckStatus(ctx, token)
		switch {
		case err == nil:
			if ferr := fn(res); ferr != nil {
				return ferr
			}
			if res.Terminal() {
				return nil
			}
		case apperrors.Is(err, apperrors.CodeNotFound), apperrors.Is(err, apperrors.CodeBadRequest):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.log.WithContext(ctx).WithError(err).WithField("token", token).Debug("watch refresh failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) lookup(ctx context.Context, token string) (domain.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Token{}, apperrors.BadRequest("Token is required")
	}
	tok, err := s.store.GetToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Token{}, apperrors.NotFound("Invalid token")
	}
	if err != nil {
		return domain.Token{}, apperrors.Internal("Failed to load token", err)
	}
	return tok, nil
}

// refresh asks the provider for tok's status and applies the transition.
// Only one caller wins a transition into a terminal status, so the refund
// for a refunded exam is issued once.
func (s *Service) refresh(ctx context.Context, tok domain.Token) (CheckResult, error) {
	res, err := s.checkUpstream(ctx, tok.Token)
	if err != nil {
		return CheckResult{}, provider.AsServiceError(err, "Failed to connect to LLR status API")
	}

	next := domain.StatusFromProviderCode(res.Status)
	update := domain.Update{CheckedAt: s.now()}
	switch {
	case next == domain.StatusCompleted:
		update.Status = domain.StatusCompleted
		update.PDFData = res.Message
		update.Filename = res.Filename
		update.Remarks = res.Remarks
	case next == domain.StatusProcessing:
		update.Status = next
		update.Queue = res.Queue
		update.Remarks = res.Remarks
	case next == domain.StatusRefunded:
		update.Status = next
		update.RefundReason = res.Message
	case next == domain.StatusFailed:
		update.Status = next
		update.Remarks = res.Message
	}

	updated, err := s.store.TransitionToken(ctx, tok.Token, domain.Active(), update)
	if errors.Is(err, storage.ErrConflict) {
		current, gerr := s.store.GetToken(ctx, tok.Token)
		if gerr != nil {
			return CheckResult{}, apperrors.Internal("Failed to load token", gerr)
		}
		return resultFromToken(current), nil
	}
	if err != nil {
		return CheckResult{}, apperrors.Internal("Failed to update token", err)
	}

	if updated.Status != tok.Status {
		metrics.RecordLLRTransition(string(tok.Status), string(updated.Status))
		s.log.WithContext(ctx).
			WithField("token", tok.Token).
			WithField("from", string(tok.Status)).
			WithField("to", string(updated.Status)).
			Info("llr token status changed")
	}
	if updated.Status == domain.StatusRefunded && tok.Status != domain.StatusRefunded {
		desc := fmt.Sprintf("Refund for LLR exam - Application: %s", updated.ApplNo)
		if _, err := s.wallet.Refund(ctx, updated.UserID, updated.ServicePrice, desc, updated.ID); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("token", tok.Token).Error("llr refund failed")
			// Put the token back so the next refresh retries the refund.
			revert := domain.Update{Status: tok.Status, CheckedAt: s.now()}
			if _, rerr := s.store.TransitionToken(ctx, tok.Token, []domain.Status{domain.StatusRefunded}, revert); rerr != nil {
				s.log.WithContext(ctx).WithError(rerr).WithField("token", tok.Token).Error("failed to reopen unrefunded token")
			}
			return CheckResult{}, err
		}
	}

	out := CheckResult{
		Status:       res.Status,
		TokenStatus:  updated.Status,
		Message:      res.Message,
		Queue:        res.Queue,
		Remarks:      res.Remarks,
		Filename:     res.Filename,
		PDFAvailable: updated.Status == domain.StatusCompleted && updated.PDFData != "",
	}
	if next == domain.StatusCompleted {
		out.Message = completedMessage
	}
	return out, nil
}

// checkUpstream serves the provider status from the shared cache, collapsing
// concurrent misses for the same token into one call.
func (s *Service) checkUpstream(ctx context.Context, token string) (provider.StatusResult, error) {
	key := cachePrefix + token
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("read cached llr status")
	} else if ok {
		var cached provider.StatusResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	v, err, _ := s.inflight.Do(token, func() (interface{}, error) {
		res, err := s.provider.CheckExam(ctx, token)
		if err != nil {
			return provider.StatusResult{}, err
		}
		if raw, merr := json.Marshal(res); merr == nil {
			if serr := s.cache.Set(ctx, key, raw, s.opts.CacheTTL); serr != nil {
				s.log.WithContext(ctx).WithError(serr).Warn("cache llr status")
			}
		}
		return res, nil
	})
	if err != nil {
		return provider.StatusResult{}, err
	}
	return v.(provider.StatusResult), nil
}

func (s *Service) release(ctx context.Context, hold wallet.Reservation) {
	if err := s.wallet.Release(ctx, hold); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("reservation", hold.ID).Error("failed to release hold")
	}
}

func resultFromToken(tok domain.Token) CheckResult {
	out := CheckResult{
		Status:       providerCode(tok.Status),
		TokenStatus:  tok.Status,
		Queue:        tok.Queue,
		Remarks:      tok.Remarks,
		Filename:     tok.Filename,
		PDFAvailable: tok.Status == domain.StatusCompleted && tok.PDFData != "",
	}
	switch tok.Status {
	case domain.StatusCompleted:
		out.Message = completedMessage
	case domain.StatusRefunded:
		out.Message = tok.RefundReason
	case domain.StatusFailed:
		out.Message = tok.Remarks
	}
	return out
}

func providerCode(status domain.Status) string {
	switch status {
	case domain.StatusCompleted:
		return domain.CodeCompleted
	case domain.StatusProcessing:
		return domain.CodeProcessing
	case domain.StatusRefunded:
		return domain.CodeRefunded
	case domain.StatusFailed:
		return domain.CodeNotFound
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
