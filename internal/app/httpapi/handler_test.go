package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/jkdigital/servicehub/internal/app"
	"github.com/jkdigital/servicehub/internal/app/storage"
	"github.com/jkdigital/servicehub/internal/config"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/provider"
)

const samplePDF = "JVBERi0xLjQK"

type stubProvider struct {
	mu            sync.Mutex
	examStatus    string
	paymentStatus string
	paymentCalls  int
}

func (p *stubProvider) SubmitExam(_ context.Context, in provider.ExamInput) (provider.ExamResult, error) {
	return provider.ExamResult{
		Status:   "200",
		Token:    "tok-" + in.ApplNo,
		Queue:    "5",
		ApplName: "RAVI KUMAR",
		RTOName:  "Jammu",
	}, nil
}

func (p *stubProvider) CheckExam(_ context.Context, _ string) (provider.StatusResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.examStatus == "200" {
		return provider.StatusResult{Status: "200", Message: samplePDF, Filename: "llr.pdf", Remarks: "Passed"}, nil
	}
	return provider.StatusResult{Status: "500", Queue: "3", Remarks: "In queue"}, nil
}

func (p *stubProvider) GenerateDLPDF(_ context.Context, in provider.DLInput) (provider.DLResult, error) {
	return provider.DLResult{Status: "200", Name: "RAVI KUMAR", DOB: "01-01-1990", PDF: samplePDF}, nil
}

func (p *stubProvider) PaymentStatus(_ context.Context, _ string) (provider.PaymentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paymentCalls++
	if p.paymentStatus == "" {
		return provider.PaymentResult{Status: "200"}, nil
	}
	return provider.PaymentResult{Status: p.paymentStatus}, nil
}

func (p *stubProvider) setExamStatus(status string) {
	p.mu.Lock()
	p.examStatus = status
	p.mu.Unlock()
}

type testEnv struct {
	t        *testing.T
	app      *app.Application
	handler  *Handler
	provider *stubProvider
	admin    string
}

func newTestEnv(t *testing.T, tune ...func(*Config)) *testEnv {
	t.Helper()

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	cfg.Environment = "test"
	cfg.Auth.JWTSecret = "httpapi-test-secret-value"
	cfg.Redis.CacheTTL = time.Nanosecond
	require.NoError(t, cfg.Validate())

	prov := &stubProvider{}
	application, err := app.New(storage.Stores{}, cfg, prov, logging.Discard("test"), app.WithoutBackground())
	require.NoError(t, err)
	require.NoError(t, application.Bootstrap(context.Background()))
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() { _ = application.Stop(context.Background()) })

	hcfg := Config{
		CORSOrigins:   []string{"http://localhost:5173"},
		LoginRate:     100,
		LoginBurst:    100,
		WatchInterval: 10 * time.Millisecond,
		Logger:        logging.Discard("httpapi"),
	}
	for _, fn := range tune {
		fn(&hcfg)
	}
	h, err := NewHandler(application, hcfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	env := &testEnv{t: t, app: application, handler: h, provider: prov}
	resp := env.do(http.MethodPost, "/api/admin/login", "", map[string]any{
		"username": cfg.Auth.DefaultAdminUsername,
		"password": cfg.Auth.DefaultAdminPassword,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env.admin = decode(t, resp)["token"].(string)
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

// createUser registers a customer with balance and returns its id and token.
func (e *testEnv) createUser(mobile string, balance float64) (string, string) {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/admin/create-user", e.admin, map[string]any{
		"name": "Ravi", "mobile": mobile, "password": "secret1",
	})
	require.Equal(e.t, http.StatusOK, resp.Code, resp.Body.String())
	id := decode(e.t, resp)["user"].(map[string]any)["id"].(string)

	if balance > 0 {
		resp = e.do(http.MethodPut, "/api/admin/update-wallet", e.admin, map[string]any{
			"userId": id, "walletBalance": balance,
		})
		require.Equal(e.t, http.StatusOK, resp.Code, resp.Body.String())
	}

	resp = e.do(http.MethodPost, "/api/auth/login", "", map[string]any{"mobile": mobile, "password": "secret1"})
	require.Equal(e.t, http.StatusOK, resp.Code, resp.Body.String())
	return id, decode(e.t, resp)["token"].(string)
}

func (e *testEnv) createService(name string, price any, fields []map[string]any) string {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/admin/services", e.admin, map[string]any{
		"name": name, "description": name + " service", "defaultPrice": price, "fields": fields,
	})
	require.Equal(e.t, http.StatusOK, resp.Code, resp.Body.String())
	return decode(e.t, resp)["service"].(map[string]any)["_id"].(string)
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "healthy", decode(t, resp)["status"])

	resp = env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "servicehub_http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)
	userID, userToken := env.createUser("9876543210", 0)
	otherID, _ := env.createUser("9876543211", 0)

	resp := env.do(http.MethodGet, "/api/user/profile/"+userID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodGet, "/api/user/profile/"+otherID, userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodGet, "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodGet, "/api/user/profile/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "9876543210", decode(t, resp)["user"].(map[string]any)["mobile"])

	resp = env.do(http.MethodGet, "/api/user/profile/"+otherID, env.admin, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestEmptyUserIDIsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.createUser("9876543212", 500)
	svcID := env.createService("PAN", 100, nil)

	resp := env.do(http.MethodPost, "/api/user/service-request", userToken, map[string]any{
		"userId": "", "serviceId": svcID, "fieldData": map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	assert.Equal(t, "User ID and Service ID are required", decode(t, resp)["error"])

	resp = env.do(http.MethodPost, "/api/payment/create-order", userToken, map[string]any{"amount": 500})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	assert.Equal(t, "Missing required fields: userId", decode(t, resp)["error"])
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("9876543210", 0)

	resp := env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"mobile": "9876543210"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Mobile number and password are required", decode(t, resp)["error"])

	resp = env.do(http.MethodPost, "/api/auth/login", "", map[string]any{"mobile": "9876543210", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodPost, "/api/admin/login", "", map[string]any{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestServiceRequestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	serviceID := env.createService("PAN Card", "150", []map[string]any{
		{"name": "fatherName", "type": "text", "required": true},
	})
	userID, userToken := env.createUser("9876543210", 500)

	resp := env.do(http.MethodGet, "/api/user/services/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	services := decode(t, resp)["services"].([]any)
	require.Len(t, services, 1)
	assert.Equal(t, 150.0, services[0].(map[string]any)["userPrice"])

	resp = env.do(http.MethodPost, "/api/user/service-request", userToken, map[string]any{
		"userId": userID, "serviceId": serviceID, "fieldData": map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, decode(t, resp)["error"], "fatherName")

	resp = env.do(http.MethodPost, "/api/user/service-request", userToken, map[string]any{
		"userId": userID, "serviceId": serviceID, "fieldData": map[string]any{"fatherName": "Mohan"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode(t, resp)
	assert.Equal(t, 350.0, body["newWalletBalance"])
	requestID := body["requestId"].(string)

	resp = env.do(http.MethodGet, "/api/admin/service-requests", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["requests"].([]any), 1)

	path := "/api/admin/service-request/" + requestID + "/respond"
	resp = env.do(http.MethodPut, path, env.admin, map[string]any{"status": "failed", "adminMessage": "Documents unclear"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.do(http.MethodPut, path, env.admin, map[string]any{"status": "success"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = env.do(http.MethodGet, "/api/user/refresh/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 500.0, decode(t, resp)["user"].(map[string]any)["walletBalance"])

	resp = env.do(http.MethodGet, "/api/user/payment-history/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	history := decode(t, resp)["history"].([]any)
	require.NotEmpty(t, history)
	assert.Equal(t, "refund", history[0].(map[string]any)["transactionType"])

	resp = env.do(http.MethodGet, "/api/admin/audit", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var routes []string
	for _, e := range decode(t, resp)["entries"].([]any) {
		routes = append(routes, e.(map[string]any)["route"].(string))
	}
	assert.Contains(t, routes, "/api/admin/update-wallet")
	assert.Contains(t, routes, "/api/admin/service-request/{id}/respond")
}

func TestAdminCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)
	serviceID := env.createService("Voter ID", 80, nil)
	userID, userToken := env.createUser("9876543210", 0)

	resp := env.do(http.MethodPost, "/api/admin/services", env.admin, map[string]any{
		"name": "Bad", "description": "bad", "defaultPrice": "abc",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Default price must be a valid number", decode(t, resp)["error"])

	resp = env.do(http.MethodPost, "/api/admin/services", env.admin, map[string]any{
		"name": "Bad", "description": "bad", "fields": "oops",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Fields must be an array", decode(t, resp)["error"])

	resp = env.do(http.MethodPut, "/api/admin/set-service-price", env.admin, map[string]any{
		"userId": userID, "serviceId": serviceID, "price": 60,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.do(http.MethodGet, "/api/admin/user-service-prices/"+userID, env.admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	prices := decode(t, resp)["servicePrices"].([]any)
	require.Len(t, prices, 1)
	assert.Equal(t, 60.0, prices[0].(map[string]any)["price"])

	resp = env.do(http.MethodPut, "/api/admin/services/"+serviceID+"/toggle", env.admin, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Service deactivated successfully", decode(t, resp)["message"])

	resp = env.do(http.MethodGet, "/api/user/services/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode(t, resp)["services"])

	resp = env.do(http.MethodPut, "/api/admin/toggle-user-status", env.admin, map[string]any{"userId": userID, "isBlocked": true})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "User blocked successfully", decode(t, resp)["message"])

	resp = env.do(http.MethodGet, "/api/user/refresh/"+userID, userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodDelete, "/api/admin/services/"+serviceID, env.admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = env.do(http.MethodDelete, "/api/admin/services/"+serviceID, env.admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(http.MethodGet, "/api/admin/dashboard-stats", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1.0, decode(t, resp)["totalUsers"])
}

func TestLLRFlow(t *testing.T) {
	env := newTestEnv(t)
	serviceID := env.createService("LLR Exam", 300, nil)
	userID, userToken := env.createUser("9876543210", 1000)
	_, otherToken := env.createUser("9876543211", 0)

	resp := env.do(http.MethodPost, "/api/llr/submit-exam", userToken, map[string]any{
		"userId": userID, "serviceId": serviceID, "applno": "jk123", "dob": "01-01-2000",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Missing required fields: pass", decode(t, resp)["error"])

	resp = env.do(http.MethodPost, "/api/llr/submit-exam", userToken, map[string]any{
		"userId": userID, "serviceId": serviceID, "applno": "jk123", "dob": "01-01-2000", "pass": "abc",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode(t, resp)
	token := body["token"].(string)
	assert.Equal(t, "tok-JK123", token)
	assert.Equal(t, 700.0, body["newWalletBalance"])
	assert.Equal(t, "RAVI KUMAR", body["applname"])

	resp = env.do(http.MethodPost, "/api/llr/check-status", otherToken, map[string]any{"token": token})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodPost, "/api/llr/check-status", userToken, map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body = decode(t, resp)
	assert.Equal(t, false, body["pdfAvailable"])
	assert.Equal(t, "3", body["queue"])

	resp = env.do(http.MethodPost, "/api/llr/download-pdf", userToken, map[string]any{"token": token})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	env.provider.setExamStatus("200")
	resp = env.do(http.MethodPost, "/api/llr/check-status", userToken, map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decode(t, resp)
	assert.Equal(t, true, body["pdfAvailable"])
	assert.NotContains(t, resp.Body.String(), samplePDF)

	resp = env.do(http.MethodPost, "/api/llr/download-pdf", userToken, map[string]any{"token": token})
	require.Equal(t, http.StatusOK, resp.Code)
	body = decode(t, resp)
	assert.Equal(t, samplePDF, body["pdfData"])
	assert.Equal(t, "application/pdf", body["mimeType"])

	resp = env.do(http.MethodGet, "/api/llr/user-tokens/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["tokens"].([]any), 1)
	assert.NotContains(t, resp.Body.String(), samplePDF)

	resp = env.do(http.MethodPost, "/api/llr/check-status", userToken, map[string]any{"token": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLLRCallbackIsPublic(t *testing.T) {
	env := newTestEnv(t)
	serviceID := env.createService("LLR Exam", 300, nil)
	userID, userToken := env.createUser("9876543210", 1000)

	resp := env.do(http.MethodPost, "/api/llr/submit-exam", userToken, map[string]any{
		"userId": userID, "serviceId": serviceID, "applno": "jk9", "dob": "01-01-2000", "pass": "abc",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env.provider.setExamStatus("200")
	resp = env.do(http.MethodPost, "/api/llr/callback", "", map[string]any{"token": "tok-JK9"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	tok, err := env.app.LLR.Get(context.Background(), "tok-JK9")
	require.NoError(t, err)
	assert.Equal(t, "completed", string(tok.Status))
}

func TestLLRWatchWebsocket(t *testing.T) {
	env := newTestEnv(t)
	serviceID := env.createService("LLR Exam", 300, nil)
	userID, userToken := env.createUser("9876543210", 1000)

	resp := env.do(http.MethodPost, "/api/llr/submit-exam", userToken, map[string]any{
		"userId": userID, "serviceId": serviceID, "applno": "ws1", "dob": "01-01-2000", "pass": "abc",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env.provider.setExamStatus("200")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+userToken)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/llr/watch?token=tok-WS1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, true, frame["success"])
	assert.Equal(t, "completed", frame["tokenStatus"])
	assert.Equal(t, true, frame["pdfAvailable"])

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestDLFlow(t *testing.T) {
	env := newTestEnv(t)
	serviceID := env.createService("DL PDF", 100, nil)
	userID, userToken := env.createUser("9876543210", 250)
	_, otherToken := env.createUser("9876543211", 0)

	resp := env.do(http.MethodPost, "/api/dl/generate-pdf", userToken, map[string]any{
		"userId": userID, "serviceId": serviceID, "dlno": "jk0120200001234",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	body := decode(t, resp)
	assert.Equal(t, 150.0, body["newWalletBalance"])
	assert.Equal(t, samplePDF, body["pdfData"])

	resp = env.do(http.MethodGet, "/api/dl/user-pdfs/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	pdfs := decode(t, resp)["pdfs"].([]any)
	require.Len(t, pdfs, 1)
	id := pdfs[0].(map[string]any)["_id"].(string)
	assert.Equal(t, "JK0120200001234", pdfs[0].(map[string]any)["dlno"])

	resp = env.do(http.MethodGet, "/api/dl/download-pdf/"+id, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodGet, "/api/dl/download-pdf/"+id, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, samplePDF, decode(t, resp)["pdfData"])
}

func TestPaymentFlow(t *testing.T) {
	env := newTestEnv(t)
	userID, userToken := env.createUser("9876543210", 0)

	resp := env.do(http.MethodPost, "/api/payment/create-order", userToken, map[string]any{"userId": userID, "amount": 100})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 200.0, decode(t, resp)["minimum_amount"])

	resp = env.do(http.MethodPost, "/api/payment/create-order", userToken, map[string]any{"userId": userID})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Missing required fields: amount", decode(t, resp)["error"])

	resp = env.do(http.MethodPost, "/api/payment/create-order", userToken, map[string]any{"userId": userID, "amount": "250"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	data := decode(t, resp)["data"].(map[string]any)
	txn := data["transactionId"].(string)
	assert.True(t, strings.HasPrefix(txn, "TXN"))
	assert.Contains(t, data["paymentLink"], txn)

	resp = env.do(http.MethodGet, "/api/payment/gateway-history?userId="+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode(t, resp)["history"].([]any), 1)

	for i := 0; i < 2; i++ {
		resp = env.do(http.MethodPost, "/api/payment/callback?token="+txn, "", nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	resp = env.do(http.MethodGet, "/api/user/refresh/"+userID, userToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 250.0, decode(t, resp)["user"].(map[string]any)["walletBalance"])

	resp = env.do(http.MethodPost, "/api/payment/callback", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	env.handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "http://localhost:5173", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.LoginRate = 0.001
		c.LoginBurst = 1
	})

	// The admin login in newTestEnv used the only token.
	resp := env.do(http.MethodPost, "/api/admin/login", "", map[string]any{"username": "admin", "password": "admin123"})
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}

func TestNumberAcceptsStringsAndNumbers(t *testing.T) {
	var payload struct {
		A number `json:"a"`
		B number `json:"b"`
		C number `json:"c"`
		D number `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.5, "b": " 40 ", "c": "abc", "d": null}`), &payload))

	assert.True(t, payload.A.Valid)
	assert.Equal(t, 12.5, payload.A.Value)
	assert.True(t, payload.B.Valid)
	assert.Equal(t, 40.0, payload.B.Value)
	assert.True(t, payload.C.Set)
	assert.False(t, payload.C.Valid)
	assert.False(t, payload.D.Set)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/api/llr/watch", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	req.Header.Set("Origin", "http://api.example.com")
	assert.True(t, check(req))
}
