// Package dlpdf generates driving licence PDFs through the provider and
// keeps the generated documents for later download.
package dlpdf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
	catalogsvc "github.com/jkdigital/servicehub/internal/app/services/catalog"
	"github.com/jkdigital/servicehub/internal/app/services/wallet"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/provider"
)

// Generator is the provider call the service depends on.
type Generator interface {
	GenerateDLPDF(ctx context.Context, in provider.DLInput) (provider.DLResult, error)
}

// Result is a freshly generated document.
type Result struct {
	Record           domain.Record
	NewWalletBalance float64
}

// Service generates DL PDFs.
type Service struct {
	store     storage.DLStore
	catalog   *catalogsvc.Service
	wallet    *wallet.Service
	generator Generator
	log       *logging.Logger
}

// New constructs the service.
func New(store storage.DLStore, catalog *catalogsvc.Service, wallet *wallet.Service, generator Generator, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("dlpdf")
	}
	return &Service{store: store, catalog: catalog, wallet: wallet, generator: generator, log: log}
}

// Generate charges the user and asks the provider for the licence PDF. The
// price is held during the call and only charged on success.
func (s *Service) Generate(ctx context.Context, userID, serviceID string, req domain.Request) (Result, error) {
	var missing []string
	if strings.TrimSpace(userID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(serviceID) == "" {
		missing = append(missing, "serviceId")
	}
	if strings.TrimSpace(req.DLNo) == "" {
		missing = append(missing, "dlno")
	}
	if len(missing) > 0 {
		return Result{}, apperrors.BadRequest("Missing required fields: " + strings.Join(missing, ", "))
	}
	req = req.Normalize()

	quote, err := s.catalog.Quote(ctx, userID, serviceID, catalogsvc.QuoteOptions{
		BlockedMessage:  "Account blocked",
		InactiveMessage: "Service unavailable",
		UnpricedMessage: "Service price not configured",
	})
	if err != nil {
		return Result{}, err
	}

	hold, err := s.wallet.Reserve(ctx, userID, quote.Price, "dl-pdf")
	if err != nil {
		return Result{}, err
	}

	res, err := s.generator.GenerateDLPDF(ctx, provider.DLInput{
		DLNo:     req.DLNo,
		Type:     req.Type,
		Blood:    req.Blood,
		AddrType: req.AddrType,
	})
	if err != nil {
		s.release(ctx, hold)
		return Result{}, mapGenerateErr(err)
	}
	if strings.TrimSpace(res.Status) != "200" {
		s.release(ctx, hold)
		msg := res.Message
		if msg == "" {
			msg = "API request failed"
		}
		return Result{}, apperrors.BadRequest(msg).WithDetails("api_status", res.Status)
	}

	rec, err := s.store.CreateRecord(ctx, domain.Record{
		UserID:       quote.User.ID,
		UserName:     quote.User.Name,
		UserMobile:   quote.User.Mobile,
		ServiceID:    quote.Service.ID,
		ServiceName:  quote.Service.Name,
		ServicePrice: quote.Price,
		DLNo:         req.DLNo,
		PDFType:      req.Type,
		BloodGroup:   req.Blood,
		AddressType:  req.AddrType,
		Status:       "completed",
		Name:         res.Name,
		DOB:          res.DOB,
		PDFData:      res.PDF,
	})
	if err != nil {
		s.release(ctx, hold)
		return Result{}, apperrors.Internal("Failed to store DL PDF", err)
	}

	user, err := s.wallet.Consume(ctx, hold, fmt.Sprintf("DL PDF Generation - %s", req.DLNo), rec.ID)
	if err != nil {
		s.release(ctx, hold)
		// an uncharged document must not stay downloadable
		if delErr := s.store.DeleteRecord(ctx, rec.ID); delErr != nil {
			s.log.WithContext(ctx).WithError(delErr).
				WithField("record_id", rec.ID).
				Error("delete uncharged dl pdf failed")
		}
		return Result{}, err
	}

	s.log.WithContext(ctx).
		WithField("user_id", userID).
		WithField("record_id", rec.ID).
		Info("dl pdf generated")
	return Result{Record: rec, NewWalletBalance: user.WalletBalance}, nil
}

// ListForUser returns the user's documents, newest first, without PDF data.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Record, error) {
	records, err := s.store.ListRecords(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list DL PDFs", err)
	}
	for i := range records {
		records[i] = records[i].WithoutPDF()
	}
	return records, nil
}

// Download returns a stored document including its PDF.
func (s *Service) Download(ctx context.Context, id string) (domain.Record, error) {
	rec, err := s.store.GetRecord(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && rec.PDFData == "") {
		return domain.Record{}, apperrors.NotFound("PDF not found")
	}
	if err != nil {
		return domain.Record{}, apperrors.Internal("Failed to load DL PDF", err)
	}
	return rec, nil
}

func (s *Service) release(ctx context.Context, hold wallet.Reservation) {
	if err := s.wallet.Release(ctx, hold); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("reservation", hold.ID).Error("failed to release hold")
	}
}

func mapGenerateErr(err error) error {
	if errors.Is(err, provider.ErrBadResponse) {
		return apperrors.Upstream("Invalid API response", err)
	}
	return apperrors.Unavailable("DL API service unavailable", err)
}
