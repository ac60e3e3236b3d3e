package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jkdigital/servicehub/internal/app/domain/catalog"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/httputil"
)

func (h *Handler) registerAdminRoutes(r *mux.Router) {
	r.HandleFunc("/dashboard-stats", h.dashboardStats).Methods(http.MethodGet)
	r.HandleFunc("/create-user", h.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/toggle-user-status", h.toggleUserStatus).Methods(http.MethodPut)
	r.HandleFunc("/set-service-price", h.setServicePrice).Methods(http.MethodPut)
	r.HandleFunc("/update-wallet", h.updateWallet).Methods(http.MethodPut)
	r.HandleFunc("/user-service-prices/{userId}", h.userServicePrices).Methods(http.MethodGet)
	r.HandleFunc("/services", h.createService).Methods(http.MethodPost)
	r.HandleFunc("/services", h.listServices).Methods(http.MethodGet)
	r.HandleFunc("/services/{id}/toggle", h.toggleService).Methods(http.MethodPut)
	r.HandleFunc("/services/{id}", h.deleteService).Methods(http.MethodDelete)
	r.HandleFunc("/service-requests", h.listServiceRequests).Methods(http.MethodGet)
	r.HandleFunc("/service-request/{id}/respond", h.respondToRequest).Methods(http.MethodPut)
	r.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)
}

// =============================================================================
// Authentication
// =============================================================================

func (h *Handler) userLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.Mobile == "" || payload.Password == "" {
		httputil.WriteServiceError(w, apperrors.BadRequest("Mobile number and password are required"))
		return
	}

	profile, session, err := h.app.Accounts.Login(r.Context(), payload.Mobile, payload.Password)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"user":      profile,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.Username == "" || payload.Password == "" {
		httputil.WriteServiceError(w, apperrors.BadRequest("Username and password are required"))
		return
	}

	admin, session, err := h.app.Accounts.AdminLogin(r.Context(), payload.Username, payload.Password)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"admin":     admin,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// =============================================================================
// Users
// =============================================================================

func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Stats.Dashboard(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	profile, err := h.app.Accounts.CreateUser(r.Context(), payload.Name, payload.Mobile, payload.Password)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    profile,
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.app.Accounts.ListUsers(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *Handler) toggleUserStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"userId"`
		IsBlocked *bool  `json:"isBlocked"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.UserID == "" || payload.IsBlocked == nil {
		httputil.WriteServiceError(w, apperrors.BadRequest("User ID and block status are required"))
		return
	}

	if err := h.app.Accounts.SetBlocked(r.Context(), payload.UserID, *payload.IsBlocked); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	status := "unblocked"
	if *payload.IsBlocked {
		status = "blocked"
	}
	writeSuccess(w, "User "+status+" successfully")
}

func (h *Handler) updateWallet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID        string `json:"userId"`
		WalletBalance number `json:"walletBalance"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.UserID == "" || !payload.WalletBalance.Set {
		httputil.WriteServiceError(w, apperrors.BadRequest("User ID and wallet balance are required"))
		return
	}
	if !payload.WalletBalance.Valid {
		httputil.WriteServiceError(w, apperrors.Validation("Wallet balance must be a valid number"))
		return
	}

	user, err := h.app.Wallet.SetBalance(r.Context(), payload.UserID, payload.WalletBalance.Value)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"message":          "Wallet balance updated successfully",
		"newWalletBalance": user.WalletBalance,
	})
}

// =============================================================================
// Catalog
// =============================================================================

func (h *Handler) setServicePrice(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"userId"`
		ServiceID string `json:"serviceId"`
		Price     number `json:"price"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if !payload.Price.Set {
		httputil.WriteServiceError(w, apperrors.BadRequest("User ID, Service ID, and price are required"))
		return
	}
	if !payload.Price.Valid {
		httputil.WriteServiceError(w, apperrors.Validation("Price must be a valid number"))
		return
	}

	if _, err := h.app.Catalog.SetPrice(r.Context(), payload.UserID, payload.ServiceID, payload.Price.Value); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	writeSuccess(w, "Service price updated successfully")
}

func (h *Handler) userServicePrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.app.Catalog.UserServicePrices(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"servicePrices": prices})
}

func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name         string          `json:"name"`
		Description  string          `json:"description"`
		DefaultPrice number          `json:"defaultPrice"`
		Fields       json.RawMessage `json:"fields"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.DefaultPrice.Set && !payload.DefaultPrice.Valid {
		httputil.WriteServiceError(w, apperrors.Validation("Default price must be a valid number"))
		return
	}
	var fields []catalog.Field
	if len(payload.Fields) > 0 && string(payload.Fields) != "null" {
		if err := json.Unmarshal(payload.Fields, &fields); err != nil {
			httputil.WriteServiceError(w, apperrors.Validation("Fields must be an array"))
			return
		}
	}

	svc, err := h.app.Catalog.CreateService(r.Context(), payload.Name, payload.Description, payload.DefaultPrice.Value, fields)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"service": svc,
	})
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.app.Catalog.ListServices(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

func (h *Handler) toggleService(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		IsActive *bool `json:"isActive"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.IsActive == nil {
		httputil.WriteServiceError(w, apperrors.BadRequest("Service status is required"))
		return
	}

	if err := h.app.Catalog.SetActive(r.Context(), mux.Vars(r)["id"], *payload.IsActive); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	status := "deactivated"
	if *payload.IsActive {
		status = "activated"
	}
	writeSuccess(w, "Service "+status+" successfully")
}

func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Catalog.DeleteService(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	writeSuccess(w, "Service deleted successfully")
}

// =============================================================================
// Requests
// =============================================================================

func (h *Handler) listServiceRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.app.Requests.ListAll(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

func (h *Handler) respondToRequest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status       string `json:"status"`
		AdminMessage string `json:"adminMessage"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	if _, err := h.app.Requests.Respond(r.Context(), mux.Vars(r)["id"], payload.Status, payload.AdminMessage); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	writeSuccess(w, "Response sent successfully")
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": h.audit.listLimit(limit)})
}
