// Package stats computes the admin dashboard counters.
package stats

import (
	"context"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
	"github.com/jkdigital/servicehub/internal/app/storage"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
)

// Dashboard is the admin overview. The day boundary is UTC midnight.
type Dashboard struct {
	TodayRequests   int     `json:"todayRequests"`
	TodayAmount     float64 `json:"todayAmount"`
	TotalRequests   int     `json:"totalRequests"`
	TotalUsers      int     `json:"totalUsers"`
	TotalServices   int     `json:"totalServices"`
	PendingRequests int     `json:"pendingRequests"`
	SuccessRequests int     `json:"successRequests"`
}

// Service reads the counters straight from the stores.
type Service struct {
	accounts storage.AccountStore
	catalog  storage.CatalogStore
	requests storage.RequestStore
	tokens   storage.LLRStore
	now      func() time.Time
}

// New constructs a stats service.
func New(accounts storage.AccountStore, catalog storage.CatalogStore, requests storage.RequestStore, tokens storage.LLRStore) *Service {
	return &Service{
		accounts: accounts,
		catalog:  catalog,
		requests: requests,
		tokens:   tokens,
		now:      time.Now,
	}
}

// Dashboard gathers the counters. Today's amount is the price of today's
// successful service requests plus every LLR booking made today.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	start := s.now().UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	today := func(t time.Time) bool {
		t = t.UTC()
		return !t.Before(start) && t.Before(end)
	}

	reqs, err := s.requests.ListRequests(ctx, "")
	if err != nil {
		return Dashboard{}, apperrors.Internal("Failed to load requests", err)
	}
	toks, err := s.tokens.ListTokens(ctx, "")
	if err != nil {
		return Dashboard{}, apperrors.Internal("Failed to load LLR tokens", err)
	}
	users, err := s.accounts.CountUsers(ctx)
	if err != nil {
		return Dashboard{}, apperrors.Internal("Failed to count users", err)
	}
	services, err := s.catalog.CountServices(ctx)
	if err != nil {
		return Dashboard{}, apperrors.Internal("Failed to count services", err)
	}

	d := Dashboard{
		TotalRequests: len(reqs) + len(toks),
		TotalUsers:    users,
		TotalServices: services,
	}
	for _, r := range reqs {
		switch r.Status {
		case request.StatusPending:
			d.PendingRequests++
		case request.StatusSuccess:
			d.SuccessRequests++
		}
		if today(r.CreatedAt) {
			d.TodayRequests++
			if r.Status == request.StatusSuccess {
				d.TodayAmount += r.ServicePrice
			}
		}
	}
	for _, t := range toks {
		if t.Status == llr.StatusCompleted {
			d.SuccessRequests++
		}
		if today(t.CreatedAt) {
			d.TodayRequests++
			d.TodayAmount += t.ServicePrice
		}
	}
	d.TodayAmount = ledger.Round2(d.TodayAmount)
	return d, nil
}
