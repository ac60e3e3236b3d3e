package llr

import (
	"context"
	"sync"
	"time"

	domain "github.com/jkdigital/servicehub/internal/app/domain/llr"
	"github.com/jkdigital/servicehub/internal/app/metrics"
	"github.com/jkdigital/servicehub/internal/app/storage"
	"github.com/jkdigital/servicehub/internal/app/system"
	"github.com/jkdigital/servicehub/internal/logging"
)

const maxPollBackoff = 10 * time.Minute

// StatusPoller refreshes every non-terminal token in the background. A token
// whose refresh fails is retried with exponential backoff.
type StatusPoller struct {
	store    storage.LLRStore
	service  *Service
	interval time.Duration
	log      *logging.Logger
	now      func() time.Time

	mu          sync.Mutex
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	nextAttempt map[string]time.Time
	failures    map[string]int
}

var _ system.Service = (*StatusPoller)(nil)

// NewStatusPoller builds a poller that ticks every interval (30s when unset).
func NewStatusPoller(store storage.LLRStore, service *Service, interval time.Duration, log *logging.Logger) *StatusPoller {
	if log == nil {
		log = logging.NewDefault("llr-poller")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatusPoller{
		store:       store,
		service:     service,
		interval:    interval,
		log:         log,
		now:         time.Now,
		nextAttempt: make(map[string]time.Time),
		failures:    make(map[string]int),
	}
}

// Name identifies the poller in the lifecycle manager.
func (p *StatusPoller) Name() string { return "llr-status-poller" }

// Start launches the polling loop. Starting a running poller is a no-op.
func (p *StatusPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.tick(runCtx)
			}
		}
	}()

	p.log.WithField("interval", p.interval.String()).Info("llr status poller started")
	return nil
}

// Stop cancels the loop and waits for the current tick to finish or ctx to
// expire.
func (p *StatusPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *StatusPoller) tick(ctx context.Context) {
	tokens, err := p.store.ListTokensByStatus(ctx, domain.Active())
	if err != nil {
		metrics.RecordPollerTick(p.Name(), false)
		p.log.WithError(err).Warn("list active llr tokens failed")
		return
	}

	p.prune(tokens)

	ok := true
	now := p.now()
	for _, tok := range tokens {
		if ctx.Err() != nil {
			return
		}
		if !p.shouldAttempt(tok.Token, now) {
			continue
		}

		res, err := p.service.refresh(ctx, tok)
		if err != nil {
			ok = false
			delay := p.backoff(tok.Token)
			p.log.WithError(err).
				WithField("token", tok.Token).
				WithField("retry_in", delay.String()).
				Warn("llr status refresh failed")
			continue
		}
		if res.Terminal() {
			p.log.WithField("token", tok.Token).WithField("status", string(res.TokenStatus)).Info("llr token settled")
		}
		p.clearSchedule(tok.Token)
	}
	metrics.RecordPollerTick(p.Name(), ok)
}

func (p *StatusPoller) shouldAttempt(token string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, ok := p.nextAttempt[token]
	return !ok || !now.Before(next)
}

// backoff records a failure and schedules the next attempt.
func (p *StatusPoller) backoff(token string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[token]++
	delay := p.interval
	for i := 1; i < p.failures[token] && delay < maxPollBackoff; i++ {
		delay *= 2
	}
	if delay > maxPollBackoff {
		delay = maxPollBackoff
	}
	p.nextAttempt[token] = p.now().Add(delay)
	return delay
}

func (p *StatusPoller) clearSchedule(token string) {
	p.mu.Lock()
	delete(p.nextAttempt, token)
	delete(p.failures, token)
	p.mu.Unlock()
}

// prune forgets backoff state for tokens that are no longer active, such as
// those settled by a status check, a watcher or a provider callback.
func (p *StatusPoller) prune(active []domain.Token) {
	keep := make(map[string]struct{}, len(active))
	for _, tok := range active {
		keep[tok.Token] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for token := range p.failures {
		if _, ok := keep[token]; !ok {
			delete(p.failures, token)
			delete(p.nextAttempt, token)
		}
	}
	for token := range p.nextAttempt {
		if _, ok := keep[token]; !ok {
			delete(p.nextAttempt, token)
		}
	}
}
