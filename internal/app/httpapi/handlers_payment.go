package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/httputil"
)

func (h *Handler) registerPaymentRoutes(r *mux.Router) {
	r.HandleFunc("/payment/create-order", h.createPaymentOrder).Methods(http.MethodPost)
	r.HandleFunc("/payment/gateway-history", h.gatewayHistory).Methods(http.MethodGet)
}

var orderRequiredFields = []string{"userId", "amount"}

func (h *Handler) createPaymentOrder(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"userId"`
		Amount number `json:"amount"`
	}
	if !h.decode(w, r, &payload) {
		return
	}

	var missing []string
	if strings.TrimSpace(payload.UserID) == "" {
		missing = append(missing, "userId")
	}
	if !payload.Amount.Set {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		httputil.WriteServiceError(w, apperrors.BadRequest("Missing required fields: "+strings.Join(missing, ", ")).
			WithDetails("required_fields", orderRequiredFields))
		return
	}
	if !payload.Amount.Valid {
		httputil.WriteServiceError(w, apperrors.Validation("Invalid amount value").
			WithDetails("details", "Amount must be a valid number"))
		return
	}
	if !h.authorizeUser(w, r, payload.UserID) {
		return
	}

	created, err := h.app.Payments.CreateOrder(r.Context(), payload.UserID, payload.Amount.Value)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	order, user := created.Order, created.User
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Payment order created successfully",
		"data": map[string]interface{}{
			"transactionId": order.TransactionID,
			"amount":        order.Amount,
			"qrCodeUrl":     order.QRCodeURL,
			"upiId":         order.UPIID,
			"paymentLink":   order.PaymentLink,
			"user": map[string]interface{}{
				"id":            user.ID,
				"name":          user.Name,
				"mobile":        user.Mobile,
				"walletBalance": user.WalletBalance,
			},
		},
	})
}

func (h *Handler) gatewayHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if !h.authorizeUser(w, r, userID) {
		return
	}
	orders, err := h.app.Payments.History(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"history": orders})
}

// paymentCallback is called by the gateway. Nothing is credited until the
// gateway confirms the transaction on a separate request.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.Payments.Callback(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	h.log.WithContext(r.Context()).
		WithField("txn", res.Order.TransactionID).
		WithField("credited", res.Credited).
		Info("payment callback processed")
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
