package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jkdigital/servicehub/internal/app/auth"
	"github.com/jkdigital/servicehub/internal/app/services/accounts"
	catalogsvc "github.com/jkdigital/servicehub/internal/app/services/catalog"
	dlpdfsvc "github.com/jkdigital/servicehub/internal/app/services/dlpdf"
	llrsvc "github.com/jkdigital/servicehub/internal/app/services/llr"
	"github.com/jkdigital/servicehub/internal/app/services/payments"
	"github.com/jkdigital/servicehub/internal/app/services/requests"
	"github.com/jkdigital/servicehub/internal/app/services/stats"
	"github.com/jkdigital/servicehub/internal/app/services/wallet"
	"github.com/jkdigital/servicehub/internal/app/storage"
	"github.com/jkdigital/servicehub/internal/app/storage/memory"
	"github.com/jkdigital/servicehub/internal/app/system"
	"github.com/jkdigital/servicehub/internal/config"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/platform/cache"
	"github.com/jkdigital/servicehub/internal/provider"
)

// Provider is the third-party API surface the application uses.
type Provider interface {
	llrsvc.Provider
	dlpdfsvc.Generator
	payments.Verifier
}

// Option customises New.
type Option func(*options)

type options struct {
	statusCache cache.Cache
	background  bool
}

// WithStatusCache shares LLR status answers through c.
func WithStatusCache(c cache.Cache) Option {
	return func(o *options) { o.statusCache = c }
}

// WithoutBackground skips the status poller and the payment expiry schedule.
func WithoutBackground() Option {
	return func(o *options) { o.background = false }
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger
	cfg     *config.Config

	Auth     *auth.Manager
	Accounts *accounts.Service
	Catalog  *catalogsvc.Service
	Wallet   *wallet.Service
	Requests *requests.Service
	LLR      *llrsvc.Service
	DL       *dlpdfsvc.Service
	Payments *payments.Service
	Stats    *stats.Service
}

// New builds a fully initialised application. Nil stores default to the
// in-memory implementation.
func New(stores storage.Stores, cfg *config.Config, prov Provider, log *logging.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if prov == nil {
		return nil, errors.New("app: provider is required")
	}
	if log == nil {
		log = logging.NewDefault("app")
	}
	o := options{background: true}
	for _, opt := range opts {
		opt(&o)
	}

	mem := memory.New()
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Catalog == nil {
		stores.Catalog = mem
	}
	if stores.Requests == nil {
		stores.Requests = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}
	if stores.LLR == nil {
		stores.LLR = mem
	}
	if stores.DL == nil {
		stores.DL = mem
	}
	if stores.Payments == nil {
		stores.Payments = mem
	}
	if err := stores.Validate(); err != nil {
		return nil, err
	}

	authManager, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth manager: %w", err)
	}

	walletService := wallet.New(stores.Accounts, stores.Ledger, log.Named("wallet"))
	catalogService := catalogsvc.New(stores.Accounts, stores.Catalog, log.Named("catalog"))
	accountService := accounts.New(stores.Accounts, stores.Catalog, authManager, log.Named("accounts"))
	requestService := requests.New(stores.Requests, catalogService, walletService, log.Named("requests"))
	llrService := llrsvc.New(stores.LLR, catalogService, walletService, prov, o.statusCache, llrsvc.Options{
		CacheTTL:      cfg.Redis.CacheTTL,
		WatchInterval: cfg.Polling.WatchInterval,
	}, log.Named("llr"))
	dlService := dlpdfsvc.New(stores.DL, catalogService, walletService, prov, log.Named("dlpdf"))
	paymentService := payments.New(stores.Accounts, stores.Payments, walletService, prov, payments.Gateway{
		UPIID:           cfg.Provider.UPIID,
		PayeeName:       cfg.Provider.PayeeName,
		QRCodeBase:      cfg.Provider.QRCodeBase,
		PaymentLinkBase: cfg.Provider.PaymentLinkBase,
	}, log.Named("payments"))
	statsService := stats.New(stores.Accounts, stores.Catalog, stores.Requests, stores.LLR)

	manager := system.NewManager()
	for _, name := range []string{"accounts", "catalog", "wallet", "requests"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if o.background {
		poller := llrsvc.NewStatusPoller(stores.LLR, llrService, cfg.Polling.LLRInterval, log.Named("llr-poller"))
		expiry, err := payments.NewExpiryScheduler(paymentService, cfg.Polling.ExpirySpec, cfg.Polling.PaymentExpiry, log.Named("payment-expiry"))
		if err != nil {
			return nil, err
		}
		for _, svc := range []system.Service{poller, expiry} {
			if err := manager.Register(svc); err != nil {
				return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
			}
		}
	} else {
		log.Warn("background services disabled; llr tokens refresh only on demand")
	}

	return &Application{
		manager:  manager,
		log:      log,
		cfg:      cfg,
		Auth:     authManager,
		Accounts: accountService,
		Catalog:  catalogService,
		Wallet:   walletService,
		Requests: requestService,
		LLR:      llrService,
		DL:       dlService,
		Payments: paymentService,
		Stats:    statsService,
	}, nil
}

// NewProvider builds the provider client from configuration.
func NewProvider(cfg *config.Config, log *logging.Logger) *provider.Client {
	return provider.New(provider.ConfigFrom(cfg.Provider), log)
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config {
	return a.cfg
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Bootstrap releases wallet holds left by a previous run and creates the
// default administrator when missing.
func (a *Application) Bootstrap(ctx context.Context) error {
	if _, err := a.Wallet.ReleaseOrphaned(ctx); err != nil {
		return err
	}
	return a.Accounts.EnsureDefaultAdmin(ctx, a.cfg.Auth.DefaultAdminUsername, a.cfg.Auth.DefaultAdminPassword)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
