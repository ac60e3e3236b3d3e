package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jkdigital/servicehub/internal/app/domain/llr"
)

// DefaultWatchInterval is how often Watch polls check-status.
const DefaultWatchInterval = 5 * time.Second

// SubmitExam books an LLR exam for the user. The input is normalised and
// checked for blank required lines before anything is sent.
func (c *Client) SubmitExam(ctx context.Context, userID, serviceID string, in llr.ExamInput) (ExamSubmission, error) {
	if err := requireUser(userID); err != nil {
		return ExamSubmission{}, err
	}
	if strings.TrimSpace(serviceID) == "" {
		return ExamSubmission{}, invalid("service id is required")
	}
	in = in.Normalize()
	if missing := in.Missing(); len(missing) > 0 {
		return ExamSubmission{}, invalid("missing required fields: %s", strings.Join(missing, ", "))
	}

	var out ExamSubmission
	body := struct {
		UserID    string `json:"userId"`
		ServiceID string `json:"serviceId"`
		llr.ExamInput
	}{userID, serviceID, in}
	err := c.do(ctx, http.MethodPost, "/api/llr/submit-exam", body, &out)
	return out, err
}

// CheckExamStatus asks the server for the token's current state.
func (c *Client) CheckExamStatus(ctx context.Context, token string) (ExamStatus, error) {
	if strings.TrimSpace(token) == "" {
		return ExamStatus{}, invalid("token is required")
	}
	var out ExamStatus
	err := c.do(ctx, http.MethodPost, "/api/llr/check-status", map[string]string{"token": token}, &out)
	return out, err
}

// DownloadExamPDF fetches the certificate of a completed token.
func (c *Client) DownloadExamPDF(ctx context.Context, token string) (PDF, error) {
	if strings.TrimSpace(token) == "" {
		return PDF{}, invalid("token is required")
	}
	var out PDF
	err := c.do(ctx, http.MethodPost, "/api/llr/download-pdf", map[string]string{"token": token}, &out)
	return out, err
}

// ExamTokens lists the user's booked exams.
func (c *Client) ExamTokens(ctx context.Context, userID string) ([]llr.Token, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out struct {
		Tokens []llr.Token `json:"tokens"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/llr/user-tokens/", userID), nil, &out)
	return out.Tokens, err
}

// Watch polls the token at a fixed interval and hands every status to fn
// until the token reaches a terminal state, fn returns an error or ctx ends.
// Transport failures and 5xx answers are skipped; 4xx answers end the watch.
func (c *Client) Watch(ctx context.Context, token string, interval time.Duration, fn func(ExamStatus) error) error {
	if strings.TrimSpace(token) == "" {
		return invalid("token is required")
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.CheckExamStatus(ctx, token)
		switch {
		case err == nil:
			if err := fn(status); err != nil {
				return err
			}
			if status.Terminal() {
				return nil
			}
		case ctx.Err() != nil:
			return ctx.Err()
		case isClientError(err):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}
