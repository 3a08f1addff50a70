package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/transport"
)

const (
	kindPermission = "permission"
	kindRole       = "role"
	kindGroup      = "group"
)

// DenialRecorder counts rejected requests by requirement kind.
type DenialRecorder interface {
	AccessDenied(kind string)
}

type noopDenials struct{}

func (noopDenials) AccessDenied(string) {}

// Gate builds route guards on top of a Resolver. Guards run before the
// business handler and never mutate anything.
type Gate struct {
	resolver *Resolver
	denials  DenialRecorder
	logger   *slog.Logger
}

func NewGate(resolver *Resolver, denials DenialRecorder, logger *slog.Logger) *Gate {
	if denials == nil {
		denials = noopDenials{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{resolver: resolver, denials: denials, logger: logger}
}

type check func(ctx context.Context, userID int64) (bool, error)

func (g *Gate) guard(kind string, missing []string, allowed check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, ok := internal.UserIDFromContext(ctx)
			if !ok {
				transport.WriteAppError(w, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken), g.logger)
				return
			}

			ok, err := allowed(ctx, userID)
			if err != nil {
				g.logger.ErrorContext(ctx, "access check failed", "error", err, "user_id", userID, "kind", kind)
				transport.WriteAppError(w, internal.NewInternalError("Failed to resolve access", err), g.logger)
				return
			}
			if !ok {
				g.denials.AccessDenied(kind)
				g.logger.WarnContext(ctx, "access denied",
					"user_id", userID,
					"kind", kind,
					"missing", missing,
					"route", r.URL.Path)
				transport.WriteAppError(w, internal.NewAccessDeniedError(kind, missing...), g.logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects callers that lack name.
func (g *Gate) RequirePermission(name string) func(http.Handler) http.Handler {
	return g.RequireAnyPermission(name)
}

// RequireAnyPermission passes when the caller holds at least one of names.
func (g *Gate) RequireAnyPermission(names ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(names)
	return g.guard(kindPermission, required, func(ctx context.Context, userID int64) (bool, error) {
		return g.resolver.HasAnyPermission(ctx, userID, required...)
	})
}

func (g *Gate) RequireRole(roleID int64) func(http.Handler) http.Handler {
	return g.guard(kindRole, []string{strconv.FormatInt(roleID, 10)}, func(ctx context.Context, userID int64) (bool, error) {
		return g.resolver.HasRole(ctx, userID, roleID)
	})
}

func (g *Gate) RequireGroup(name string) func(http.Handler) http.Handler {
	return g.guard(kindGroup, []string{name}, func(ctx context.Context, userID int64) (bool, error) {
		return g.resolver.InGroup(ctx, userID, name)
	})
}
