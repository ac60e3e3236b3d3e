package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/ledger"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
)

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalid("user id is required")
	}
	return nil
}

// Profile returns the user's public record.
func (c *Client) Profile(ctx context.Context, userID string) (account.Profile, error) {
	if err := requireUser(userID); err != nil {
		return account.Profile{}, err
	}
	var out struct {
		User account.Profile `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/user/profile/", userID), nil, &out)
	return out.User, err
}

// Refresh re-reads the user's record, typically to pick up a new balance.
func (c *Client) Refresh(ctx context.Context, userID string) (account.Profile, error) {
	if err := requireUser(userID); err != nil {
		return account.Profile{}, err
	}
	var out struct {
		User account.Profile `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/user/refresh/", userID), nil, &out)
	return out.User, err
}

// Services lists the active services with the user's effective prices.
func (c *Client) Services(ctx context.Context, userID string) ([]catalog.UserService, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out struct {
		Services []catalog.UserService `json:"services"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/user/services/", userID), nil, &out)
	return out.Services, err
}

// SubmitRequest files a service request. When svc is known its required
// fields are checked before anything is sent.
func (c *Client) SubmitRequest(ctx context.Context, userID string, svc catalog.Service, fieldData map[string]interface{}) (RequestSubmission, error) {
	if err := requireUser(userID); err != nil {
		return RequestSubmission{}, err
	}
	if svc.ID == "" {
		return RequestSubmission{}, invalid("service id is required")
	}
	if missing := catalog.MissingRequired(svc.Fields, fieldData); len(missing) > 0 {
		return RequestSubmission{}, invalid("missing required fields: %s", strings.Join(missing, ", "))
	}
	if fieldData == nil {
		fieldData = map[string]interface{}{}
	}

	var out RequestSubmission
	body := map[string]interface{}{
		"userId":    userID,
		"serviceId": svc.ID,
		"fieldData": fieldData,
	}
	err := c.do(ctx, http.MethodPost, "/api/user/service-request", body, &out)
	return out, err
}

// Requests lists the user's service requests, newest first.
func (c *Client) Requests(ctx context.Context, userID string) ([]request.ServiceRequest, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out struct {
		Requests []request.ServiceRequest `json:"requests"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/user/service-requests/", userID), nil, &out)
	return out.Requests, err
}

// PaymentHistory returns the user's wallet ledger.
func (c *Client) PaymentHistory(ctx context.Context, userID string) ([]ledger.Entry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out struct {
		History []ledger.Entry `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/user/payment-history/", userID), nil, &out)
	return out.History, err
}
