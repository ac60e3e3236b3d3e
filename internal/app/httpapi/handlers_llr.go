package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	domain "github.com/jkdigital/servicehub/internal/app/domain/llr"
	llrsvc "github.com/jkdigital/servicehub/internal/app/services/llr"
	"github.com/jkdigital/servicehub/internal/httputil"
)

func (h *Handler) registerLLRRoutes(r *mux.Router) {
	r.HandleFunc("/llr/submit-exam", h.submitExam).Methods(http.MethodPost)
	r.HandleFunc("/llr/check-status", h.checkExamStatus).Methods(http.MethodPost)
	r.HandleFunc("/llr/download-pdf", h.downloadExamPDF).Methods(http.MethodPost)
	r.HandleFunc("/llr/user-tokens/{userId}", h.userExamTokens).Methods(http.MethodGet)
	r.HandleFunc("/llr/watch", h.watchExam).Methods(http.MethodGet)
}

type tokenPayload struct {
	Token string `json:"token"`
}

// statusResponse is the check-status body.
type statusResponse struct {
	Success bool `json:"success"`
	llrsvc.CheckResult
}

func (h *Handler) submitExam(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"userId"`
		ServiceID string `json:"serviceId"`
		domain.ExamInput
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if !h.authorizeUser(w, r, payload.UserID) {
		return
	}

	sub, err := h.app.LLR.Submit(r.Context(), payload.UserID, payload.ServiceID, payload.ExamInput)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"message":          "LLR exam request submitted successfully!",
		"token":            sub.Token.Token,
		"queue":            sub.Token.Queue,
		"applname":         sub.Token.ApplName,
		"rtoname":          sub.Token.RTOName,
		"newWalletBalance": sub.NewWalletBalance,
	})
}

// ownedToken loads a token and checks the caller may see it.
func (h *Handler) ownedToken(w http.ResponseWriter, r *http.Request, token string) (domain.Token, bool) {
	tok, err := h.app.LLR.Get(r.Context(), token)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return domain.Token{}, false
	}
	if !h.authorizeUser(w, r, tok.UserID) {
		return domain.Token{}, false
	}
	return tok, true
}

func (h *Handler) checkExamStatus(w http.ResponseWriter, r *http.Request) {
	var payload tokenPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if _, ok := h.ownedToken(w, r, payload.Token); !ok {
		return
	}

	res, err := h.app.LLR.CheckStatus(r.Context(), payload.Token)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{Success: true, CheckResult: res})
}

func (h *Handler) downloadExamPDF(w http.ResponseWriter, r *http.Request) {
	var payload tokenPayload
	if !h.decode(w, r, &payload) {
		return
	}
	if _, ok := h.ownedToken(w, r, payload.Token); !ok {
		return
	}

	pdf, err := h.app.LLR.DownloadPDF(r.Context(), payload.Token)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"pdfData":  pdf.Data,
		"filename": pdf.Filename,
		"mimeType": pdf.MimeType,
	})
}

func (h *Handler) userExamTokens(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	tokens, err := h.app.LLR.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

// llrCallback is the provider's completion hook. It only triggers a refresh
// against the provider, so it needs no credentials.
func (h *Handler) llrCallback(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" && r.ContentLength != 0 {
		var payload tokenPayload
		if !h.decode(w, r, &payload) {
			return
		}
		token = payload.Token
	}

	res, err := h.app.LLR.HandleCallback(r.Context(), token)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	h.log.WithContext(r.Context()).
		WithField("status", res.TokenStatus).
		Info("llr callback processed")
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
