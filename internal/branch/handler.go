package branch

import (
	"context"
	"net/http"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/transport"
	"github.com/frahmantamala/sangha-registry/pkg/logger"
)

type ServiceAPI interface {
	Hierarchy(ctx context.Context) ([]MainNode, error)
}

type ScopeResolver interface {
	Resolve(ctx context.Context, userID int64) (Scope, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	Scopes  ScopeResolver
}

func NewHandler(svc ServiceAPI, scopes ScopeResolver) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		Scopes:      scopes,
	}
}

// ListBranches handles GET /branches
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Service.Hierarchy(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"branches": tree})
}

// MyScope handles GET /branches/scope and reports the caller's visibility.
func (h *Handler) MyScope(w http.ResponseWriter, r *http.Request) {
	userID, ok := internal.UserIDFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	scope, err := h.Scopes.Resolve(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"unrestricted":  scope.Unrestricted,
		"location_type": scope.LocationType,
		"code":          scope.Code,
	})
}
