package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	llrsvc "github.com/jkdigital/servicehub/internal/app/services/llr"
	apperrors "github.com/jkdigital/servicehub/internal/errors"
)

const watchWriteWait = 10 * time.Second

type watchError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// watchExam streams status frames for one token over a websocket until the
// token is terminal or the client goes away.
func (h *Handler) watchExam(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if _, ok := h.ownedToken(w, r, token); !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Client frames are ignored; a read error means the peer left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.app.LLR.Watch(ctx, token, h.watchInterval, func(res llrsvc.CheckResult) error {
		_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
		return conn.WriteJSON(statusResponse{Success: true, CheckResult: res})
	})
	if err != nil && ctx.Err() == nil {
		frame := watchError{Error: err.Error()}
		if se := apperrors.GetServiceError(err); se != nil {
			frame = watchError{Error: se.Message, Code: string(se.Code)}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
		_ = conn.WriteJSON(frame)
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(watchWriteWait))
}

// originChecker allows same-origin requests and the configured CORS origins.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll || allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
