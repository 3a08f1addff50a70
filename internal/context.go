package internal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ContextUserKey    ctxKey = "userID"
	contextRequestKey ctxKey = "requestContext"
)

// UserIDFromContext returns the authenticated user id, or false for anonymous calls.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	userID, ok := ctx.Value(ContextUserKey).(int64)
	return userID, ok
}

func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ContextUserKey, userID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}

// RequestMeta is the correlation data captured when a request enters the service.
type RequestMeta struct {
	UserID    *int64
	SessionID *string
	IPAddress string
	UserAgent string
	Route     string
	Method    string
}

// RequestContext is the immutable per-request correlation bundle read by the
// audit layer. It is never persisted directly.
type RequestContext struct {
	TransactionID string
	UserID        *int64
	SessionID     *string
	IPAddress     string
	UserAgent     string
	Route         string
	Method        string
	StartedAt     time.Time
}

// requestScope holds the bundle for one logical request. End clears it so that
// work outliving the request cannot observe stale correlation data.
type requestScope struct {
	mu  sync.RWMutex
	req *RequestContext
}

// BeginRequest attaches a fresh RequestContext to ctx and returns the derived
// context together with the generated transaction id.
func BeginRequest(ctx context.Context, meta RequestMeta) (context.Context, string) {
	rc := &RequestContext{
		TransactionID: uuid.NewString(),
		UserID:        meta.UserID,
		SessionID:     meta.SessionID,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Route:         meta.Route,
		Method:        meta.Method,
		StartedAt:     time.Now(),
	}
	scope := &requestScope{req: rc}
	return context.WithValue(ctx, contextRequestKey, scope), rc.TransactionID
}

// EndRequest discards the RequestContext bound to ctx. Safe to call more than
// once and on contexts that never had one.
func EndRequest(ctx context.Context) {
	if ctx == nil {
		return
	}
	scope, ok := ctx.Value(contextRequestKey).(*requestScope)
	if !ok || scope == nil {
		return
	}
	scope.mu.Lock()
	scope.req = nil
	scope.mu.Unlock()
}

// CurrentRequest returns a copy of the active RequestContext, if any.
func CurrentRequest(ctx context.Context) (RequestContext, bool) {
	if ctx == nil {
		return RequestContext{}, false
	}
	scope, ok := ctx.Value(contextRequestKey).(*requestScope)
	if !ok || scope == nil {
		return RequestContext{}, false
	}
	scope.mu.RLock()
	defer scope.mu.RUnlock()
	if scope.req == nil {
		return RequestContext{}, false
	}
	return *scope.req, true
}
