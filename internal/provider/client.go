// Package provider talks to the third-party LLR exam, DL PDF and payment
// gateway APIs. Every call passes a shared circuit breaker; idempotent reads
// are retried.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/tidwall/gjson"

	"github.com/jkdigital/servicehub/internal/app/metrics"
	"github.com/jkdigital/servicehub/internal/config"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/httputil"
	"github.com/jkdigital/servicehub/internal/logging"
)

const (
	llrUserAgent     = "ServiceHub-LLR/1.0"
	dlUserAgent      = "ServiceHub-DL/1.0"
	paymentUserAgent = "ServiceHub/1.0"
)

// ErrBadResponse is returned when the provider body is not JSON.
var ErrBadResponse = errors.New("provider returned an unreadable response")

// HTTPStatusError is returned for non-2xx provider responses.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	// Body holds the JSON answer when the provider sent one with a status
	// field alongside a retryable HTTP status.
	Body []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: provider responded %d %s", e.Operation, e.StatusCode, http.StatusText(e.StatusCode))
}

// Config configures a Client.
type Config struct {
	APIKey           string
	ExamURL          string
	StatusURL        string
	DLURL            string
	PaymentStatusURL string
	CallbackURL      string

	SubmitTimeout time.Duration
	StatusTimeout time.Duration
	DLTimeout     time.Duration

	// MaxRetries applies to CheckExam and PaymentStatus only.
	MaxRetries int
	RetryDelay time.Duration
	Breaker    BreakerConfig

	HTTPClient *http.Client
}

// ConfigFrom maps the application provider settings.
func ConfigFrom(cfg config.ProviderConfig) Config {
	return Config{
		APIKey:           cfg.APIKey,
		ExamURL:          cfg.ExamURL,
		StatusURL:        cfg.StatusURL,
		DLURL:            cfg.DLURL,
		PaymentStatusURL: cfg.PaymentStatusURL,
		CallbackURL:      cfg.CallbackURL,
		SubmitTimeout:    cfg.SubmitTimeout,
		StatusTimeout:    cfg.StatusTimeout,
		DLTimeout:        cfg.DLTimeout,
		MaxRetries:       cfg.MaxRetries,
		RetryDelay:       500 * time.Millisecond,
		Breaker: BreakerConfig{
			FailureThreshold: cfg.BreakerFailures,
			Cooldown:         cfg.BreakerCooldown,
		},
	}
}

// ExamResult is the provider answer to an exam booking.
type ExamResult struct {
	Status    string
	Message   string
	Token     string
	ApplNo    string
	ApplName  string
	DOB       string
	Queue     string
	RTOCode   string
	RTOName   string
	StateCode string
	StateName string
}

// StatusResult is the provider answer to a token status check. On status
// "200" Message carries the base64 PDF.
type StatusResult struct {
	Status   string
	Message  string
	Filename string
	Remarks  string
	Queue    string
}

// DLResult is the provider answer to a DL PDF request.
type DLResult struct {
	Status  string
	Message string
	Name    string
	DOB     string
	PDF     string
}

// PaymentResult is the gateway answer to an order status query.
type PaymentResult struct {
	Status  string
	Message string
}

// DLInput is the licence data posted to the DL PDF API.
type DLInput struct {
	DLNo     string
	Type     string
	Blood    string
	AddrType string
}

// ExamInput is the applicant data posted to the exam API.
type ExamInput struct {
	ApplNo   string
	DOB      string
	Password string
	Pin      string
	Type     string
}

// Client calls the third-party APIs.
type Client struct {
	cfg     Config
	llr     *httputil.FormClient
	dl      *httputil.FormClient
	payment *httputil.FormClient
	breaker *CircuitBreaker
	log     *logging.Logger
}

// New creates a provider client.
func New(cfg Config, log *logging.Logger) *Client {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 90 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 30 * time.Second
	}
	if cfg.DLTimeout <= 0 {
		cfg.DLTimeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if log == nil {
		log = logging.NewDefault("provider")
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(from, to CircuitState) {
			log.WithField("from", from.String()).WithField("to", to.String()).Warn("provider circuit state changed")
		}
	}

	// Per-call deadlines come from the context; the client timeout is a backstop.
	newForm := func(ua string) *httputil.FormClient {
		return httputil.NewFormClient(httputil.FormClientConfig{
			Timeout:    2 * cfg.SubmitTimeout,
			UserAgent:  ua,
			HTTPClient: cfg.HTTPClient,
		})
	}

	return &Client{
		cfg:     cfg,
		llr:     newForm(llrUserAgent),
		dl:      newForm(dlUserAgent),
		payment: newForm(paymentUserAgent),
		breaker: NewCircuitBreaker(breakerCfg),
		log:     log,
	}
}

// CircuitState exposes the breaker state for health reporting.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

// SubmitExam books an exam. It is never retried.
func (c *Client) SubmitExam(ctx context.Context, in ExamInput) (ExamResult, error) {
	values := url.Values{}
	values.Set("apikey", c.cfg.APIKey)
	values.Set("applno", in.ApplNo)
	values.Set("dob", in.DOB)
	values.Set("pass", in.Password)
	values.Set("pin", in.Pin)
	values.Set("type", in.Type)
	values.Set("callback", c.cfg.CallbackURL)

	body, err := c.call(ctx, "submit_exam", false, c.cfg.SubmitTimeout, func(ctx context.Context) (int, []byte, error) {
		return c.llr.PostForm(ctx, c.cfg.ExamURL, values)
	})
	if err != nil {
		return ExamResult{}, err
	}

	r := gjson.ParseBytes(body)
	return ExamResult{
		Status:    r.Get("status").String(),
		Message:   r.Get("message").String(),
		Token:     r.Get("token").String(),
		ApplNo:    r.Get("applno").String(),
		ApplName:  r.Get("applname").String(),
		DOB:       r.Get("dob").String(),
		Queue:     r.Get("queue").String(),
		RTOCode:   r.Get("rtocode").String(),
		RTOName:   r.Get("rtoname").String(),
		StateCode: r.Get("statecode").String(),
		StateName: r.Get("statename").String(),
	}, nil
}

// CheckExam fetches the status of a booked exam.
func (c *Client) CheckExam(ctx context.Context, token string) (StatusResult, error) {
	values := url.Values{}
	values.Set("token", token)

	body, err := c.call(ctx, "check_exam", true, c.cfg.StatusTimeout, func(ctx context.Context) (int, []byte, error) {
		return c.llr.PostForm(ctx, c.cfg.StatusURL, values)
	})
	if err != nil {
		return StatusResult{}, err
	}

	r := gjson.ParseBytes(body)
	return StatusResult{
		Status:   r.Get("status").String(),
		Message:  r.Get("message").String(),
		Filename: r.Get("filename").String(),
		Remarks:  r.Get("remarks").String(),
		Queue:    r.Get("queue").String(),
	}, nil
}

// GenerateDLPDF requests a driving licence PDF. It is never retried.
func (c *Client) GenerateDLPDF(ctx context.Context, in DLInput) (DLResult, error) {
	values := url.Values{}
	values.Set("apikey", c.cfg.APIKey)
	values.Set("dlno", in.DLNo)
	values.Set("type", in.Type)
	values.Set("blood", in.Blood)
	values.Set("addrtype", in.AddrType)

	body, err := c.call(ctx, "generate_dl_pdf", false, c.cfg.DLTimeout, func(ctx context.Context) (int, []byte, error) {
		return c.dl.PostForm(ctx, c.cfg.DLURL, values)
	})
	if err != nil {
		return DLResult{}, err
	}

	r := gjson.ParseBytes(body)
	return DLResult{
		Status:  r.Get("status").String(),
		Message: r.Get("message").String(),
		Name:    r.Get("name").String(),
		DOB:     r.Get("dob").String(),
		PDF:     r.Get("pdf").String(),
	}, nil
}

// PaymentStatus asks the gateway whether txnID has been paid.
func (c *Client) PaymentStatus(ctx context.Context, txnID string) (PaymentResult, error) {
	endpoint, err := url.Parse(c.cfg.PaymentStatusURL)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("payment status url: %w", err)
	}
	q := endpoint.Query()
	q.Set("txnid", txnID)
	endpoint.RawQuery = q.Encode()

	body, err := c.call(ctx, "payment_status", true, c.cfg.StatusTimeout, func(ctx context.Context) (int, []byte, error) {
		return c.payment.Get(ctx, endpoint.String())
	})
	if err != nil {
		return PaymentResult{}, err
	}

	r := gjson.ParseBytes(body)
	return PaymentResult{
		Status:  r.Get("status").String(),
		Message: r.Get("message").String(),
	}, nil
}

type requestFunc func(ctx context.Context) (int, []byte, error)

func (c *Client) call(ctx context.Context, op string, idempotent bool, timeout time.Duration, fn requestFunc) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		metrics.RecordProviderCall(op, "circuit_open", 0)
		return nil, err
	}

	attempts := uint(1)
	if idempotent {
		attempts += uint(c.cfg.MaxRetries)
	}

	start := time.Now()
	body, err := retry.DoWithData(
		func() ([]byte, error) {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			status, body, err := fn(callCtx)
			if err != nil {
				return nil, err
			}
			if status < 200 || status >= 300 {
				statusErr := &HTTPStatusError{Operation: op, StatusCode: status}
				if carriesStatus(body) {
					// The provider reports outcomes in the body whatever the
					// HTTP status; only 429 and 5xx answers are retried.
					if !retryableStatus(status) {
						return body, nil
					}
					statusErr.Body = body
				}
				return nil, statusErr
			}
			if !gjson.ValidBytes(body) {
				return nil, ErrBadResponse
			}
			return body, nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.WithContext(ctx).WithError(err).WithField("operation", op).WithField("attempt", n+1).
				Warn("retrying provider call")
		}),
	)
	elapsed := time.Since(start)

	if err != nil {
		if countsAsFailure(err) {
			c.breaker.RecordFailure(err)
		} else {
			c.breaker.RecordSuccess()
		}
		metrics.RecordProviderCall(op, "error", elapsed)
		c.log.WithContext(ctx).WithError(err).WithField("operation", op).Warn("provider call failed")

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.Body != nil {
			return statusErr.Body, nil
		}
		return nil, err
	}

	c.breaker.RecordSuccess()
	metrics.RecordProviderCall(op, "ok", elapsed)
	return body, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrBadResponse) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// carriesStatus reports whether body is a JSON object with a status field.
func carriesStatus(body []byte) bool {
	return gjson.ValidBytes(body) && gjson.GetBytes(body, "status").Exists()
}

// countsAsFailure reports whether err says the provider is unhealthy, as
// opposed to a well-formed rejection.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrBadResponse) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return true
}

// AsServiceError maps a call failure to an API error: an open circuit is 503,
// anything else 502.
func AsServiceError(err error, message string) error {
	if errors.Is(err, ErrCircuitOpen) {
		return apperrors.Unavailable(message, err)
	}
	return apperrors.Upstream(message, err)
}
