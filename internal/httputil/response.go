package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	svcerrors "github.com/jkdigital/servicehub/internal/errors"
)

// MaxRequestBody bounds JSON request bodies accepted by the API.
const MaxRequestBody = 1 << 20

// WriteJSON writes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes {"error": message, "code": code, ...details}.
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	body := make(map[string]interface{}, len(details)+2)
	for k, v := range details {
		body[k] = v
	}
	body["error"] = message
	if code != "" {
		body["code"] = code
	}
	WriteJSON(w, status, body)
}

// WriteServiceError renders err, falling back to a generic 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	se := svcerrors.GetServiceError(err)
	if se == nil {
		se = svcerrors.Internal("", err)
	}
	WriteErrorResponse(w, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	se := svcerrors.Unauthorized(message)
	WriteErrorResponse(w, se.HTTPStatus, string(se.Code), se.Message, nil)
}

// DecodeJSON decodes a bounded JSON request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return svcerrors.BadRequest("Request body is required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return svcerrors.BadRequest("Request body is required")
		}
		return svcerrors.BadRequest(fmt.Sprintf("Invalid JSON body: %v", err))
	}
	return nil
}
