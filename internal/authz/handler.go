package authz

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/transport"
	"github.com/frahmantamala/sangha-registry/pkg/logger"
)

type ServiceAPI interface {
	AccessContext(ctx context.Context, userID int64) (*AccessContext, error)
	AssignRole(ctx context.Context, in AssignRoleInput) (int64, error)
	RevokeRole(ctx context.Context, userID, roleID int64) error
	SetOverride(ctx context.Context, in OverrideInput) (int64, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// AssignRole handles POST /admin/users/{id}/roles
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	id, err := h.Service.AssignRole(r.Context(), AssignRoleInput{
		UserID:    targetID,
		RoleID:    req.RoleID,
		ExpiresAt: req.ExpiresAt,
		GrantedBy: actor(r),
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      id,
		"user_id": targetID,
		"role_id": req.RoleID,
	})
}

// RevokeRole handles DELETE /admin/users/{id}/roles/{roleID}
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	roleID, err := h.PathInt64(r, "roleID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.RevokeRole(r.Context(), targetID, roleID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetOverride handles POST /admin/users/{id}/overrides
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	targetID, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	id, err := h.Service.SetOverride(r.Context(), OverrideInput{
		UserID:     targetID,
		Permission: req.Permission,
		Granted:    req.Granted,
		ExpiresAt:  req.ExpiresAt,
		Reason:     req.Reason,
		GrantedBy:  actor(r),
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         id,
		"user_id":    targetID,
		"permission": normalizePermission(req.Permission),
		"granted":    req.Granted,
	})
}

// GetAccessContext handles GET /admin/users/{id}/access
func (h *Handler) GetAccessContext(w http.ResponseWriter, r *http.Request) {
	targetID, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	ac, err := h.Service.AccessContext(r.Context(), targetID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ac)
}

func actor(r *http.Request) *int64 {
	if id, ok := internal.UserIDFromContext(r.Context()); ok {
		return &id
	}
	return nil
}
