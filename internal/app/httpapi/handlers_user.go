package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jkdigital/servicehub/internal/httputil"
)

func (h *Handler) registerUserRoutes(r *mux.Router) {
	r.HandleFunc("/user/profile/{userId}", h.userProfile).Methods(http.MethodGet)
	r.HandleFunc("/user/refresh/{userId}", h.refreshUser).Methods(http.MethodGet)
	r.HandleFunc("/user/services/{userId}", h.userServices).Methods(http.MethodGet)
	r.HandleFunc("/user/service-request", h.submitServiceRequest).Methods(http.MethodPost)
	r.HandleFunc("/user/service-requests/{userId}", h.userServiceRequests).Methods(http.MethodGet)
	r.HandleFunc("/user/payment-history/{userId}", h.paymentHistory).Methods(http.MethodGet)
}

// pathUser returns the {userId} route variable once the caller may act on it.
func (h *Handler) pathUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := mux.Vars(r)["userId"]
	if !h.authorizeUser(w, r, userID) {
		return "", false
	}
	return userID, true
}

func (h *Handler) userProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	profile, err := h.app.Accounts.Profile(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": profile})
}

func (h *Handler) refreshUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	profile, err := h.app.Accounts.Refresh(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    profile,
	})
}

func (h *Handler) userServices(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	services, err := h.app.Catalog.UserServices(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

func (h *Handler) submitServiceRequest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string                 `json:"userId"`
		ServiceID string                 `json:"serviceId"`
		FieldData map[string]interface{} `json:"fieldData"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if !h.authorizeUser(w, r, payload.UserID) {
		return
	}

	sub, err := h.app.Requests.Submit(r.Context(), payload.UserID, payload.ServiceID, payload.FieldData)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"message":          "Service request submitted successfully",
		"requestId":        sub.Request.ID,
		"newWalletBalance": sub.NewWalletBalance,
	})
}

func (h *Handler) userServiceRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	requests, err := h.app.Requests.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	history, err := h.app.Wallet.History(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}
