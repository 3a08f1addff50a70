package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/transport"
	"github.com/frahmantamala/sangha-registry/pkg/logger"
)

// RecoveryMiddleware turns a panic into a 500 without exposing its value.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			lg := logger.From(r.Context())
			lg.ErrorContext(r.Context(), "panic recovered",
				"error", rec,
				"method", r.Method,
				"url", r.URL.String(),
				"stack", string(debug.Stack()))

			transport.WriteAppError(w, internal.NewInternalError("Internal server error", fmt.Errorf("panic: %v", rec)), lg)
		}()

		next.ServeHTTP(w, r)
	})
}
