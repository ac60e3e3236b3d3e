package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/jkdigital/servicehub/internal/errors"
	"github.com/jkdigital/servicehub/internal/httputil"
	"github.com/jkdigital/servicehub/internal/logging"
)

// Recover turns handler panics into 500 responses.
func Recover(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.WithContext(r.Context()).WithFields(map[string]interface{}{
						"panic": rec,
						"stack": string(debug.Stack()),
						"path":  r.URL.Path,
					}).Error("panic recovered")
					httputil.WriteServiceError(w, errors.Internal("", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
