package audit

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/transport"
	"github.com/frahmantamala/sangha-registry/pkg/logger"
)

type ServiceAPI interface {
	ListAuditLogs(ctx context.Context, f Filter) ([]*Record, error)
	ListAPICalls(ctx context.Context, f APICallFilter) ([]*APICallRecord, error)
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

// ListAuditLogs handles GET /audit-logs
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Table:         q.Get("table"),
		RecordID:      q.Get("record_id"),
		TransactionID: q.Get("transaction_id"),
		Limit:         atoi(q.Get("limit")),
		Offset:        atoi(q.Get("offset")),
	}
	if raw := q.Get("user_id"); raw != "" {
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.HandleServiceError(w, internal.NewValidationFieldError("user_id", "user_id must be numeric", internal.ErrCodeValidationFailed))
			return
		}
		f.UserID = &uid
	}

	records, err := h.Service.ListAuditLogs(r.Context(), f)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"audit_logs": records,
		"limit":      f.Limit,
		"offset":     f.Offset,
	})
}

// ListAPICalls handles GET /api-call-logs
func (h *Handler) ListAPICalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := APICallFilter{
		TransactionID: q.Get("transaction_id"),
		Route:         q.Get("route"),
		StatusCode:    atoi(q.Get("status_code")),
		Limit:         atoi(q.Get("limit")),
		Offset:        atoi(q.Get("offset")),
	}

	records, err := h.Service.ListAPICalls(r.Context(), f)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"api_calls": records,
		"limit":     f.Limit,
		"offset":    f.Offset,
	})
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
