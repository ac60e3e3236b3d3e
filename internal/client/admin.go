package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	"github.com/jkdigital/servicehub/internal/app/domain/request"
)

type successMessage struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DashboardStats returns the admin overview counters.
func (c *Client) DashboardStats(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := c.do(ctx, http.MethodGet, "/api/admin/dashboard-stats", nil, &out)
	return out, err
}

// CreateUser registers a customer account.
func (c *Client) CreateUser(ctx context.Context, name, mobile, password string) (account.Profile, error) {
	name, mobile = strings.TrimSpace(name), strings.TrimSpace(mobile)
	if name == "" || mobile == "" || password == "" {
		return account.Profile{}, invalid("name, mobile number and password are required")
	}
	if err := account.ValidateMobile(mobile); err != nil {
		return account.Profile{}, invalid("%s", err.Error())
	}

	var out struct {
		User account.Profile `json:"user"`
	}
	body := map[string]string{"name": name, "mobile": mobile, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/admin/create-user", body, &out)
	return out.User, err
}

// Users lists every customer account.
func (c *Client) Users(ctx context.Context) ([]account.User, error) {
	var out struct {
		Users []account.User `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &out)
	return out.Users, err
}

// SetUserBlocked blocks or unblocks a customer.
func (c *Client) SetUserBlocked(ctx context.Context, userID string, blocked bool) (string, error) {
	if err := requireUser(userID); err != nil {
		return "", err
	}
	var out successMessage
	body := map[string]interface{}{"userId": userID, "isBlocked": blocked}
	err := c.do(ctx, http.MethodPut, "/api/admin/toggle-user-status", body, &out)
	return out.Message, err
}

// SetServicePrice sets a per-user price override.
func (c *Client) SetServicePrice(ctx context.Context, userID, serviceID string, price float64) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(serviceID) == "" {
		return "", invalid("user id and service id are required")
	}
	if price < 0 {
		return "", invalid("price cannot be negative")
	}
	var out successMessage
	body := map[string]interface{}{"userId": userID, "serviceId": serviceID, "price": price}
	err := c.do(ctx, http.MethodPut, "/api/admin/set-service-price", body, &out)
	return out.Message, err
}

// UpdateWallet overwrites a customer's wallet balance and returns the new one.
func (c *Client) UpdateWallet(ctx context.Context, userID string, balance float64) (float64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	if balance < 0 {
		return 0, invalid("wallet balance cannot be negative")
	}
	var out struct {
		NewWalletBalance float64 `json:"newWalletBalance"`
	}
	body := map[string]interface{}{"userId": userID, "walletBalance": balance}
	err := c.do(ctx, http.MethodPut, "/api/admin/update-wallet", body, &out)
	return out.NewWalletBalance, err
}

// UserServicePrices lists a customer's effective price for every service.
func (c *Client) UserServicePrices(ctx context.Context, userID string) ([]catalog.ServicePrice, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out struct {
		ServicePrices []catalog.ServicePrice `json:"servicePrices"`
	}
	err := c.do(ctx, http.MethodGet, userPath("/api/admin/user-service-prices/", userID), nil, &out)
	return out.ServicePrices, err
}

// CreateService adds a catalog entry.
func (c *Client) CreateService(ctx context.Context, in ServiceInput) (catalog.Service, error) {
	if strings.TrimSpace(in.Name) == "" {
		return catalog.Service{}, invalid("service name is required")
	}
	if in.DefaultPrice < 0 {
		return catalog.Service{}, invalid("default price cannot be negative")
	}
	fields := make([]FieldInput, len(in.Fields))
	copy(fields, in.Fields)
	for i, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return catalog.Service{}, invalid("field %d has no name", i+1)
		}
		if f.Type == "" {
			fields[i].Type = "text"
		}
	}

	var out struct {
		Service catalog.Service `json:"service"`
	}
	body := map[string]interface{}{
		"name":         strings.TrimSpace(in.Name),
		"description":  in.Description,
		"defaultPrice": in.DefaultPrice,
		"fields":       fields,
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/services", body, &out)
	return out.Service, err
}

// AllServices lists the whole catalog, inactive entries included.
func (c *Client) AllServices(ctx context.Context) ([]catalog.Service, error) {
	var out struct {
		Services []catalog.Service `json:"services"`
	}
	err := c.do(ctx, http.MethodGet, "/api/admin/services", nil, &out)
	return out.Services, err
}

// SetServiceActive activates or deactivates a catalog entry.
func (c *Client) SetServiceActive(ctx context.Context, serviceID string, active bool) (string, error) {
	if strings.TrimSpace(serviceID) == "" {
		return "", invalid("service id is required")
	}
	var out successMessage
	path := fmt.Sprintf("/api/admin/services/%s/toggle", url.PathEscape(serviceID))
	err := c.do(ctx, http.MethodPut, path, map[string]bool{"isActive": active}, &out)
	return out.Message, err
}

// DeleteService removes a catalog entry and its price overrides.
func (c *Client) DeleteService(ctx context.Context, serviceID string) (string, error) {
	if strings.TrimSpace(serviceID) == "" {
		return "", invalid("service id is required")
	}
	var out successMessage
	err := c.do(ctx, http.MethodDelete, "/api/admin/services/"+url.PathEscape(serviceID), nil, &out)
	return out.Message, err
}

// ServiceRequests lists every customer request.
func (c *Client) ServiceRequests(ctx context.Context) ([]request.ServiceRequest, error) {
	var out struct {
		Requests []request.ServiceRequest `json:"requests"`
	}
	err := c.do(ctx, http.MethodGet, "/api/admin/service-requests", nil, &out)
	return out.Requests, err
}

// RespondToRequest decides a pending request. Failing it refunds the user.
func (c *Client) RespondToRequest(ctx context.Context, requestID string, status request.Status, message string) (string, error) {
	if strings.TrimSpace(requestID) == "" {
		return "", invalid("request id is required")
	}
	if _, err := request.ParseResponse(string(status)); err != nil {
		return "", invalid("%s", err.Error())
	}
	var out successMessage
	path := fmt.Sprintf("/api/admin/service-request/%s/respond", url.PathEscape(requestID))
	body := map[string]string{"status": string(status), "adminMessage": message}
	err := c.do(ctx, http.MethodPut, path, body, &out)
	return out.Message, err
}

// Audit returns the newest admin mutations, oldest first. limit <= 0 returns all
// retained entries.
func (c *Client) Audit(ctx context.Context, limit int) ([]AuditEntry, error) {
	path := "/api/admin/audit"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var out struct {
		Entries []AuditEntry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Entries, err
}
