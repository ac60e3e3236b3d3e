// Package requests handles generic paid service requests and the
// administrator decisions on them.
package requests

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
	catalogsvc "github.com/jkdigital/servicehub/internal/app/services/catalog"
	"github.com/jkdigital/servicehub/internal/app/services/wallet"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
)

// Submission is the outcome of a successful submit.
type Submission struct {
	Request          request.ServiceRequest
	NewWalletBalance float64
}

// Service manages service requests.
type Service struct {
	store   storage.RequestStore
	catalog *catalogsvc.Service
	wallet  *wallet.Service
	log     *logging.Logger
}

// New constructs a requests service.
func New(store storage.RequestStore, catalog *catalogsvc.Service, wallet *wallet.Service, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("requests")
	}
	return &Service{store: store, catalog: catalog, wallet: wallet, log: log}
}

// Submit charges the user's price for serviceID and records a pending
// request.
func (s *Service) Submit(ctx context.Context, userID, serviceID string, fieldData map[string]interface{}) (Submission, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(serviceID) == "" {
		return Submission{}, apperrors.BadRequest("User ID and Service ID are required")
	}

	quote, err := s.catalog.Quote(ctx, userID, serviceID, catalogsvc.QuoteOptions{})
	if err != nil {
		return Submission{}, err
	}
	if fieldData == nil {
		fieldData = map[string]interface{}{}
	}
	if missing := catalog.MissingRequired(quote.Service.Fields, fieldData); len(missing) > 0 {
		return Submission{}, apperrors.Validation("Missing required fields: " + strings.Join(missing, ", "))
	}

	hold, err := s.wallet.Reserve(ctx, userID, quote.Price, "service-request")
	if err != nil {
		return Submission{}, err
	}

	created, err := s.store.CreateRequest(ctx, request.ServiceRequest{
		UserID:       quote.User.ID,
		UserName:     quote.User.Name,
		UserMobile:   quote.User.Mobile,
		ServiceID:    quote.Service.ID,
		ServiceName:  quote.Service.Name,
		ServicePrice: quote.Price,
		FieldData:    fieldData,
		Status:       request.StatusPending,
	})
	if err != nil {
		s.release(ctx, hold)
		return Submission{}, apperrors.Internal("Failed to create service request", err)
	}

	user, err := s.wallet.Consume(ctx, hold, fmt.Sprintf("Payment for %s service", quote.Service.Name), created.ID)
	if err != nil {
		s.release(ctx, hold)
		if _, terr := s.store.TransitionRequest(ctx, created.ID, request.StatusPending, request.StatusFailed, "Payment could not be completed"); terr != nil {
			s.log.WithContext(ctx).WithError(terr).WithField("request_id", created.ID).Error("failed to mark unpaid request failed")
		}
		return Submission{}, err
	}

	s.log.WithContext(ctx).
		WithField("request_id", created.ID).
		WithField("user_id", userID).
		WithField("service", quote.Service.Name).
		Info("service request submitted")
	return Submission{Request: created, NewWalletBalance: user.WalletBalance}, nil
}

// Respond records the administrator's decision. A failed request is refunded
// exactly once; when the refund cannot be applied the request goes back to
// pending.
func (s *Service) Respond(ctx context.Context, requestID, status, adminMessage string) (request.ServiceRequest, error) {
	to, err := request.ParseResponse(status)
	if err != nil {
		return request.ServiceRequest{}, apperrors.Validation(err.Error())
	}

	updated, err := s.store.TransitionRequest(ctx, requestID, request.StatusPending, to, adminMessage)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return request.ServiceRequest{}, apperrors.NotFound("Request not found")
	case errors.Is(err, storage.ErrConflict):
		return request.ServiceRequest{}, apperrors.Conflict("Request has already been processed")
	case err != nil:
		return request.ServiceRequest{}, apperrors.Internal("Failed to update request", err)
	}

	if to == request.StatusFailed && updated.ServicePrice > 0 {
		desc := fmt.Sprintf("Refund for failed %s service", updated.ServiceName)
		if _, err := s.wallet.Refund(ctx, updated.UserID, updated.ServicePrice, desc, updated.ID); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("request_id", updated.ID).Error("refund failed")
			// Reopen the request so the decision can be retried.
			if _, rerr := s.store.TransitionRequest(ctx, updated.ID, to, request.StatusPending, ""); rerr != nil {
				s.log.WithContext(ctx).WithError(rerr).WithField("request_id", updated.ID).Error("failed to reopen unrefunded request")
			}
			return request.ServiceRequest{}, err
		}
	}
	return updated, nil
}

// ListAll returns every request, newest first.
func (s *Service) ListAll(ctx context.Context) ([]request.ServiceRequest, error) {
	return s.list(ctx, "")
}

// ListForUser returns the user's requests, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]request.ServiceRequest, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperrors.BadRequest("User ID is required")
	}
	return s.list(ctx, userID)
}

func (s *Service) list(ctx context.Context, userID string) ([]request.ServiceRequest, error) {
	reqs, err := s.store.ListRequests(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to list service requests", err)
	}
	return reqs, nil
}

func (s *Service) release(ctx context.Context, hold wallet.Reservation) {
	if err := s.wallet.Release(ctx, hold); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("reservation", hold.ID).Error("failed to release hold")
	}
}
