package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jkdigital/servicehub/internal/app/domain/dlpdf"
	"github.com/jkdigital/servicehub/internal/httputil"
)

func (h *Handler) registerDLRoutes(r *mux.Router) {
	r.HandleFunc("/dl/generate-pdf", h.generateDLPDF).Methods(http.MethodPost)
	r.HandleFunc("/dl/user-pdfs/{userId}", h.userDLPDFs).Methods(http.MethodGet)
	r.HandleFunc("/dl/download-pdf/{id}", h.downloadDLPDF).Methods(http.MethodGet)
}

func (h *Handler) generateDLPDF(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID    string `json:"userId"`
		ServiceID string `json:"serviceId"`
		dlpdf.Request
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if !h.authorizeUser(w, r, payload.UserID) {
		return
	}

	res, err := h.app.DL.Generate(r.Context(), payload.UserID, payload.ServiceID, payload.Request)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"message":          "DL PDF generated successfully",
		"name":             res.Record.Name,
		"dob":              res.Record.DOB,
		"pdfData":          res.Record.PDFData,
		"newWalletBalance": res.NewWalletBalance,
	})
}

func (h *Handler) userDLPDFs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}
	pdfs, err := h.app.DL.ListForUser(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"pdfs": pdfs})
}

func (h *Handler) downloadDLPDF(w http.ResponseWriter, r *http.Request) {
	rec, err := h.app.DL.Download(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if !h.authorizeUser(w, r, rec.UserID) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"name":    rec.Name,
		"dob":     rec.DOB,
		"dlno":    rec.DLNo,
		"pdfData": rec.PDFData,
	})
}
