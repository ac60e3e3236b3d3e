package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/jkdigital/servicehub/internal/app/domain/account"
)

// Login signs a customer in and keeps the returned token on the client.
func (c *Client) Login(ctx context.Context, mobile, password string) (LoginResult, error) {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" || password == "" {
		return LoginResult{}, invalid("mobile number and password are required")
	}
	if err := account.ValidateMobile(mobile); err != nil {
		return LoginResult{}, invalid("%s", err.Error())
	}

	var out LoginResult
	body := map[string]string{"mobile": mobile, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return LoginResult{}, err
	}
	c.token = out.Token
	return out, nil
}

// AdminLogin signs an administrator in and keeps the returned token.
func (c *Client) AdminLogin(ctx context.Context, username, password string) (AdminLoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AdminLoginResult{}, invalid("username and password are required")
	}

	var out AdminLoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", body, &out); err != nil {
		return AdminLoginResult{}, err
	}
	c.token = out.Token
	return out, nil
}
