// Package catalog manages the service catalog, per-user prices and price
// resolution for paid submissions.
package catalog

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	domain "github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/logging"
)

// Messages shared with the web client.
const (
	BlockedMessage  = "Your account has been blocked. Please contact administrator."
	InactiveMessage = "This service is currently unavailable"
	UnpricedMessage = "Service price not set for your account. Please contact administrator."
)

// Quote is a priced, validated (user, service) pair ready to be charged.
type Quote struct {
	User    account.User
	Service domain.Service
	Price   float64
}

// QuoteOptions tweaks the messages a quote fails with.
type QuoteOptions struct {
	BlockedMessage  string
	InactiveMessage string
	UnpricedMessage string
}

// Service manages the catalog.
type Service struct {
	accounts storage.AccountStore
	store    storage.CatalogStore
	log      *logging.Logger
}

// New constructs a catalog service.
func New(accounts storage.AccountStore, store storage.CatalogStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("catalog")
	}
	return &Service{accounts: accounts, store: store, log: log}
}

// CreateService adds an active catalog entry and seeds prices for every user
// when the default price is positive.
func (s *Service) CreateService(ctx context.Context, name, description string, defaultPrice float64, fields []domain.Field) (domain.Service, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" || description == "" {
		return domain.Service{}, apperrors.BadRequest("Name and description are required")
	}
	if math.IsNaN(defaultPrice) || math.IsInf(defaultPrice, 0) || defaultPrice < 0 {
		return domain.Service{}, apperrors.Validation("Default price must be a valid number")
	}
	if fields == nil {
		fields = []domain.Field{}
	}
	if err := domain.ValidateFields(fields); err != nil {
		return domain.Service{}, apperrors.Validation(err.Error())
	}
	for i := range fields {
		fields[i].Name = strings.TrimSpace(fields[i].Name)
		if fields[i].Type == "" {
			fields[i].Type = "text"
		}
	}

	svc, err := s.store.CreateService(ctx, domain.Service{
		Name:         name,
		Description:  description,
		DefaultPrice: defaultPrice,
		Fields:       fields,
		IsActive:     true,
	})
	if err != nil {
		return domain.Service{}, apperrors.Internal("Failed to create service", err)
	}

	if defaultPrice > 0 {
		if err := s.seedForAllUsers(ctx, svc); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("service_id", svc.ID).Warn("seed prices for new service")
		}
	}
	return svc, nil
}

func (s *Service) seedForAllUsers(ctx context.Context, svc domain.Service) error {
	users, err := s.accounts.ListUsers(ctx)
	if err != nil {
		return err
	}
	overrides := make([]domain.PriceOverride, 0, len(users))
	for _, u := range users {
		overrides = append(overrides, domain.PriceOverride{UserID: u.ID, ServiceID: svc.ID, Price: svc.DefaultPrice})
	}
	return s.store.SeedPrices(ctx, overrides)
}

// ListServices returns every service, active or not.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	services, err := s.store.ListServices(ctx, false)
	if err != nil {
		return nil, apperrors.Internal("Failed to list services", err)
	}
	return services, nil
}

// SetActive activates or deactivates a service.
func (s *Service) SetActive(ctx context.Context, serviceID string, active bool) error {
	if err := s.store.SetServiceActive(ctx, serviceID, active); err != nil {
		return mapServiceErr(err)
	}
	return nil
}

// DeleteService removes a service and its per-user prices.
func (s *Service) DeleteService(ctx context.Context, serviceID string) error {
	if err := s.store.DeleteService(ctx, serviceID); err != nil {
		return mapServiceErr(err)
	}
	return nil
}

// SetPrice upserts a user's price for a service.
func (s *Service) SetPrice(ctx context.Context, userID, serviceID string, price float64) (domain.PriceOverride, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(serviceID) == "" {
		return domain.PriceOverride{}, apperrors.BadRequest("User ID, Service ID, and price are required")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return domain.PriceOverride{}, apperrors.Validation("Price must be a valid number")
	}
	if _, err := s.accounts.GetUser(ctx, userID); err != nil {
		return domain.PriceOverride{}, mapUserErr(err)
	}
	if _, err := s.store.GetService(ctx, serviceID); err != nil {
		return domain.PriceOverride{}, mapServiceErr(err)
	}

	override, err := s.store.UpsertPrice(ctx, domain.PriceOverride{UserID: userID, ServiceID: serviceID, Price: price})
	if err != nil {
		return domain.PriceOverride{}, apperrors.Internal("Failed to update price", err)
	}
	return override, nil
}

// UserServicePrices lists every service with the user's effective price.
func (s *Service) UserServicePrices(ctx context.Context, userID string) ([]domain.ServicePrice, error) {
	services, err := s.store.ListServices(ctx, false)
	if err != nil {
		return nil, apperrors.Internal("Failed to list services", err)
	}
	prices, err := s.priceMap(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.ServicePrice, 0, len(services))
	for _, svc := range services {
		result = append(result, domain.ServicePrice{
			ServiceID:   svc.ID,
			ServiceName: svc.Name,
			Price:       domain.EffectivePrice(svc, prices[svc.ID]),
		})
	}
	return result, nil
}

// UserServices lists active services annotated with the user's price.
func (s *Service) UserServices(ctx context.Context, userID string) ([]domain.UserService, error) {
	user, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	if user.IsBlocked {
		return nil, apperrors.Forbidden(BlockedMessage)
	}

	services, err := s.store.ListServices(ctx, true)
	if err != nil {
		return nil, apperrors.Internal("Failed to list services", err)
	}
	prices, err := s.priceMap(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.UserService, 0, len(services))
	for _, svc := range services {
		result = append(result, domain.UserService{Service: svc, UserPrice: domain.EffectivePrice(svc, prices[svc.ID])})
	}
	return result, nil
}

// ResolvePrice returns the effective price of a service for a user.
func (s *Service) ResolvePrice(ctx context.Context, userID string, svc domain.Service) (float64, error) {
	override, err := s.store.GetPrice(ctx, userID, svc.ID)
	switch {
	case err == nil:
		return domain.EffectivePrice(svc, &override), nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.EffectivePrice(svc, nil), nil
	default:
		return 0, apperrors.Internal("Failed to resolve price", err)
	}
}

// Quote validates that userID may buy serviceID and returns the price.
// Checks run in order: user exists, user not blocked, service exists,
// service active, price positive.
func (s *Service) Quote(ctx context.Context, userID, serviceID string, opts QuoteOptions) (Quote, error) {
	if opts.BlockedMessage == "" {
		opts.BlockedMessage = BlockedMessage
	}
	if opts.InactiveMessage == "" {
		opts.InactiveMessage = InactiveMessage
	}
	if opts.UnpricedMessage == "" {
		opts.UnpricedMessage = UnpricedMessage
	}

	user, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return Quote{}, mapUserErr(err)
	}
	if user.IsBlocked {
		return Quote{}, apperrors.Forbidden(opts.BlockedMessage)
	}
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return Quote{}, mapServiceErr(err)
	}
	if !svc.IsActive {
		return Quote{}, apperrors.BadRequest(opts.InactiveMessage)
	}
	price, err := s.ResolvePrice(ctx, userID, svc)
	if err != nil {
		return Quote{}, err
	}
	if price <= 0 {
		return Quote{}, apperrors.BadRequest(opts.UnpricedMessage)
	}
	return Quote{User: user, Service: svc, Price: price}, nil
}

func (s *Service) priceMap(ctx context.Context, userID string) (map[string]*domain.PriceOverride, error) {
	overrides, err := s.store.ListPricesForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load prices", err)
	}
	out := make(map[string]*domain.PriceOverride, len(overrides))
	for i := range overrides {
		out[overrides[i].ServiceID] = &overrides[i]
	}
	return out, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("User not found")
	}
	return apperrors.Internal("User lookup failed", err)
}

func mapServiceErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("Service not found")
	}
	return apperrors.Internal("Service lookup failed", err)
}
