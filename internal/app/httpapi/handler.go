// Package httpapi exposes the ServiceHub REST API.
package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "github.com/jkdigital/servicehub/internal/app"
	"github.com/jkdigital/servicehub/internal/app/auth"
	"github.com/jkdigital/servicehub/internal/app/metrics"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/httputil"
	"github.com/jkdigital/servicehub/internal/logging"
	"github.com/jkdigital/servicehub/internal/middleware"
)

// Config tunes the HTTP surface.
type Config struct {
	Verifier    middleware.TokenVerifier
	CORSOrigins []string
	LoginRate   float64
	LoginBurst  int
	// TrustedProxies lists peers whose X-Forwarded-For is honoured by the
	// login rate limiter.
	TrustedProxies []string
	AuditCapacity  int
	AuditFile      string
	WatchInterval  time.Duration
	Logger         *logging.Logger
}

// Handler bundles HTTP endpoints for the application services.
type Handler struct {
	app           *app.Application
	log           *logging.Logger
	root          http.Handler
	limiter       *middleware.RateLimiter
	audit         *auditLog
	upgrader      websocket.Upgrader
	watchInterval time.Duration
}

// NewHandler returns the router exposing the REST API under /api and
// Prometheus metrics under /metrics.
func NewHandler(application *app.Application, cfg Config) (*Handler, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = application.Auth
	}
	if cfg.LoginRate <= 0 {
		cfg.LoginRate = 1
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 5
	}

	limiter := middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst, log)
	if err := limiter.TrustProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	sink, err := newFileAuditSink(cfg.AuditFile)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		app:           application,
		log:           log,
		limiter:       limiter,
		audit:         newAuditLog(cfg.AuditCapacity, sink),
		upgrader:      websocket.Upgrader{CheckOrigin: originChecker(cfg.CORSOrigins)},
		watchInterval: cfg.WatchInterval,
	}

	router := mux.NewRouter()
	router.Use(
		middleware.Recover(log),
		middleware.NewTracingMiddleware(log).Handler,
		middleware.MetricsMiddleware(),
	)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.health).Methods(http.MethodGet)
	api.HandleFunc("/llr/callback", h.llrCallback).Methods(http.MethodPost)
	api.HandleFunc("/payment/callback", h.paymentCallback).Methods(http.MethodPost)

	login := api.NewRoute().Subrouter()
	login.Use(h.limiter.Handler)
	login.HandleFunc("/auth/login", h.userLogin).Methods(http.MethodPost)
	login.HandleFunc("/admin/login", h.adminLogin).Methods(http.MethodPost)

	authn := middleware.NewAuthMiddleware(verifier, log, nil)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authn.Handler, middleware.RequireRole(auth.RoleAdmin, log), h.audit.middleware)
	h.registerAdminRoutes(admin)

	secured := api.NewRoute().Subrouter()
	secured.Use(authn.Handler)
	h.registerUserRoutes(secured)
	h.registerLLRRoutes(secured)
	h.registerDLRoutes(secured)
	h.registerPaymentRoutes(secured)

	h.root = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(router)
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

// StartCleanup drops idle login rate limiters until ctx is done.
func (h *Handler) StartCleanup(ctx context.Context) {
	h.limiter.StartCleanup(ctx, time.Minute)
}

// Close releases the audit file, if any.
func (h *Handler) Close() error {
	return h.audit.close()
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"message": "Service Hub API is running",
	})
}

// =============================================================================
// Helpers
// =============================================================================

// authorizeUser rejects callers acting on another user's data. An empty id is
// left for the service to reject.
func (h *Handler) authorizeUser(w http.ResponseWriter, r *http.Request, userID string) bool {
	if userID == "" || middleware.CanAccessUser(r, userID) {
		return true
	}
	h.log.LogSecurityEvent(r.Context(), "ownership_denied", map[string]interface{}{
		"path":   r.URL.Path,
		"target": userID,
	})
	httputil.WriteServiceError(w, apperrors.Forbidden("Access denied"))
	return false
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		httputil.WriteServiceError(w, err)
		return false
	}
	return true
}

func writeSuccess(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
	})
}

// number accepts JSON numbers and numeric strings, the way form inputs send
// prices and amounts.
type number struct {
	Value float64
	Set   bool
	Valid bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	n.Set = true
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Value, n.Valid = v, true
	return nil
}

var _ json.Unmarshaler = (*number)(nil)
