package testutil

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "github.com/jkdigital/servicehub/internal/app"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/httpapi"
	"github.com/jkdigital/servicehub/internal/app/storage"
	"github.com/jkdigital/servicehub/internal/config"
	"github.com/jkdigital/servicehub/internal/logging"
)

// Server is a complete in-memory ServiceHub behind an httptest server.
type Server struct {
	URL           string
	App           *app.Application
	Provider      *StubProvider
	AdminUsername string
	AdminPassword string
}

// NewServer starts a server with background pollers disabled. Everything is
// torn down by t.Cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	cfg.Environment = "test"
	cfg.Auth.JWTSecret = "testutil-secret-value"
	cfg.Redis.CacheTTL = time.Nanosecond
	require.NoError(t, cfg.Validate())

	prov := NewStubProvider()
	application, err := app.New(storage.Stores{}, cfg, prov, logging.Discard("test"), app.WithoutBackground())
	require.NoError(t, err)
	require.NoError(t, application.Bootstrap(context.Background()))
	require.NoError(t, application.Start(context.Background()))

	handler, err := httpapi.NewHandler(application, httpapi.Config{
		LoginRate:     100,
		LoginBurst:    100,
		WatchInterval: 10 * time.Millisecond,
		Logger:        logging.Discard("httpapi"),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		_ = handler.Close()
		_ = application.Stop(context.Background())
	})

	return &Server{
		URL:           srv.URL,
		App:           application,
		Provider:      prov,
		AdminUsername: cfg.Auth.DefaultAdminUsername,
		AdminPassword: cfg.Auth.DefaultAdminPassword,
	}
}

// CreateUser registers a customer with password "secret1" and balance.
func (s *Server) CreateUser(t *testing.T, mobile string, balance float64) string {
	t.Helper()
	ctx := context.Background()
	profile, err := s.App.Accounts.CreateUser(ctx, "Ravi", mobile, "secret1")
	require.NoError(t, err)
	if balance > 0 {
		_, err = s.App.Wallet.SetBalance(ctx, profile.ID, balance)
		require.NoError(t, err)
	}
	return profile.ID
}

// CreateService adds an active catalog entry and returns its id.
func (s *Server) CreateService(t *testing.T, name string, price float64, fields ...catalog.Field) string {
	t.Helper()
	svc, err := s.App.Catalog.CreateService(context.Background(), name, name+" service", price, fields)
	require.NoError(t, err)
	return svc.ID
}
