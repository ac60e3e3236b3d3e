package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jkdigital/servicehub/internal/app/domain/payment"
)

// CreateOrder opens a wallet top-up. Amounts below the minimum are refused
// locally.
func (c *Client) CreateOrder(ctx context.Context, userID string, amount float64) (PaymentOrder, error) {
	if err := requireUser(userID); err != nil {
		return PaymentOrder{}, err
	}
	if err := payment.ValidateAmount(amount); err != nil {
		return PaymentOrder{}, invalid("%s", err.Error())
	}

	var out struct {
		Data PaymentOrder `json:"data"`
	}
	body := map[string]interface{}{"userId": userID, "amount": amount}
	err := c.do(ctx, http.MethodPost, "/api/payment/create-order", body, &out)
	return out.Data, err
}

// GatewayHistory lists the user's top-up orders.
func (c *Client) GatewayHistory(ctx context.Context, userID string) ([]payment.Order, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	var out struct {
		History []payment.Order `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, "/api/payment/gateway-history?userId="+url.QueryEscape(userID), nil, &out)
	return out.History, err
}
