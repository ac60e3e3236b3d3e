package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jkdigital/servicehub/internal/app/metrics"
	"github.com/jkdigital/servicehub/internal/app/system"
	"github.com/jkdigital/servicehub/internal/logging"
)

// ExpiryScheduler runs ExpireStale on a cron schedule.
type ExpiryScheduler struct {
	service *Service
	spec    string
	maxAge  time.Duration
	log     *logging.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ system.Service = (*ExpiryScheduler)(nil)

// NewExpiryScheduler validates spec (standard five-field cron or a
// descriptor such as "@every 5m").
func NewExpiryScheduler(service *Service, spec string, maxAge time.Duration, log *logging.Logger) (*ExpiryScheduler, error) {
	if log == nil {
		log = logging.NewDefault("payment-expiry")
	}
	if spec == "" {
		spec = "@every 5m"
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid payment expiry schedule %q: %w", spec, err)
	}
	return &ExpiryScheduler{service: service, spec: spec, maxAge: maxAge, log: log}, nil
}

func (e *ExpiryScheduler) Name() string { return "payment-expiry" }

func (e *ExpiryScheduler) Start(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cron != nil {
		return nil
	}

	logger := cron.PrintfLogger(e.log)
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(e.spec, e.RunOnce); err != nil {
		return err
	}
	c.Start()
	e.cron = c
	e.log.WithField("schedule", e.spec).Info("payment expiry scheduler started")
	return nil
}

func (e *ExpiryScheduler) Stop(ctx context.Context) error {
	e.mu.Lock()
	c := e.cron
	e.cron = nil
	e.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce expires stale orders immediately.
func (e *ExpiryScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := e.service.ExpireStale(ctx, e.maxAge)
	metrics.RecordPollerTick(e.Name(), err == nil)
	if err != nil {
		e.log.WithError(err).Warn("expire stale payment orders")
		return
	}
	if n > 0 {
		e.log.WithField("expired", n).Info("expired stale payment orders")
	}
}
