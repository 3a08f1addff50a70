package rest

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/audit"
	"github.com/frahmantamala/sangha-registry/internal/auth"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	"github.com/frahmantamala/sangha-registry/internal/branch"
	"github.com/frahmantamala/sangha-registry/internal/monk"
	"github.com/frahmantamala/sangha-registry/internal/observability"
	"github.com/frahmantamala/sangha-registry/internal/transport/middleware"
	"github.com/frahmantamala/sangha-registry/internal/transport/swagger"
	"github.com/frahmantamala/sangha-registry/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
)

type Handlers struct {
	Auth   *auth.Handler
	User   *user.Handler
	Authz  *authz.Handler
	Branch *branch.Handler
	Monk   *monk.Handler
	Audit  *audit.Handler
}

type RouterDeps struct {
	Config   *internal.Config
	DB       *sql.DB
	Gate     *authz.Gate
	APICalls middleware.APICallRecorder
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, deps RouterDeps, h Handlers) {
	healthHandler := NewHealthHandler(deps.DB)
	gate := deps.Gate

	var identify middleware.IdentityFunc
	if h.Auth != nil {
		identify = h.Auth.Identify
	}

	// Apply global middleware
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.SecureHeaders(deps.Config.IsProduction(), deps.Logger))
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestContext(deps.APICalls, identify))
	router.Use(middleware.Metrics(deps.Metrics))
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.RecoveryMiddleware)

	router.Get("/openapi.yml", swagger.SpecHandler())
	router.Handle("/docs/*", swagger.Handler())

	if deps.Config.Observability.Metrics.Enabled && deps.Metrics != nil {
		router.Handle(deps.Config.Observability.Metrics.Path, deps.Metrics.Handler())
	}

	router.Get("/health", healthHandler.healthCheckHandler)
	router.Get("/ping", healthHandler.pingHandler)

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(sr chi.Router) {
			sr.With(loginLimiter(deps.Config.Authz.LoginRateLimit)).Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
			}

			if h.Monk != nil {
				pr.Route("/monks", func(mr chi.Router) {
					mr.With(gate.RequirePermission(authz.PermMonkRead)).Get("/", h.Monk.ListMonks)
					mr.With(gate.RequirePermission(authz.PermMonkCreate)).Post("/", h.Monk.CreateMonk)
					mr.With(gate.RequirePermission(authz.PermMonkRead)).Get("/{id}", h.Monk.GetMonk)
					mr.With(gate.RequirePermission(authz.PermMonkUpdate)).Put("/{id}", h.Monk.UpdateMonk)
					mr.With(gate.RequireAnyPermission(authz.PermMonkApprove, authz.PermMonkUpdate)).Patch("/{id}/status", h.Monk.UpdateMonkStatus)
					mr.With(gate.RequirePermission(authz.PermMonkDelete)).Delete("/{id}", h.Monk.DeleteMonk)
				})
			}

			if h.Branch != nil {
				pr.With(gate.RequirePermission(authz.PermBranchRead)).Get("/branches", h.Branch.ListBranches)
				pr.Get("/branches/scope", h.Branch.MyScope)
			}

			if h.Audit != nil {
				pr.With(gate.RequirePermission(authz.PermAuditRead)).Get("/audit-logs", h.Audit.ListAuditLogs)
				pr.With(gate.RequireGroup(authz.GroupHeadOffice)).Get("/api-call-logs", h.Audit.ListAPICalls)
			}

			pr.Route("/admin/users/{id}", func(ar chi.Router) {
				if h.Authz != nil {
					ar.Group(func(gr chi.Router) {
						gr.Use(gate.RequirePermission(authz.PermAuthzManage))
						gr.Get("/access", h.Authz.GetAccessContext)
						gr.Post("/roles", h.Authz.AssignRole)
						gr.Delete("/roles/{roleID}", h.Authz.RevokeRole)
						gr.Post("/overrides", h.Authz.SetOverride)
					})
				}
				if h.User != nil {
					ar.With(gate.RequirePermission(authz.PermUserManage)).Put("/location", h.User.AssignLocation)
				}
			})
		})
	})
}

func loginLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
}
