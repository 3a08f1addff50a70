package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/audit"
	"github.com/frahmantamala/sangha-registry/pkg/logger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

const TransactionHeader = "X-Transaction-ID"

// IdentityFunc reads the caller from the request without rejecting it.
type IdentityFunc func(r *http.Request) (userID *int64, sessionID *string)

type APICallRecorder interface {
	LogAPICall(ctx context.Context, call audit.APICall)
}

// RequestContext opens the correlation bundle every audit entry of the
// request is stamped with, and records the API call summary once the handler
// has written its response. The bundle is cleared when the request ends.
func RequestContext(recorder APICallRecorder, identify IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			meta := internal.RequestMeta{
				IPAddress: clientIP(r),
				UserAgent: r.UserAgent(),
				Route:     r.URL.Path,
				Method:    r.Method,
			}
			if identify != nil {
				meta.UserID, meta.SessionID = identify(r)
			}

			ctx, transactionID := internal.BeginRequest(r.Context(), meta)
			defer internal.EndRequest(ctx)

			ctx = logger.With(ctx, "transaction_id", transactionID)
			w.Header().Set(TransactionHeader, transactionID)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if recorder == nil {
				return
			}
			recorder.LogAPICall(ctx, audit.APICall{
				StatusCode: statusOf(ww),
				Route:      routePattern(r),
				Duration:   time.Since(start),
			})
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routePattern is filled in by chi once routing has happened.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

func statusOf(ww chiMiddleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
