package audit

import (
	"context"
	"log/slog"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type RepositoryAPI interface {
	ListAuditLogs(ctx context.Context, f Filter) ([]*Record, error)
	ListAPICalls(ctx context.Context, f APICallFilter) ([]*APICallRecord, error)
}

// Service is the read side of the audit trail. Entries are only ever written
// by the capture engine.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) ListAuditLogs(ctx context.Context, f Filter) ([]*Record, error) {
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	records, err := s.repo.ListAuditLogs(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list audit logs", "error", err, "table", f.Table, "record_id", f.RecordID)
		return nil, err
	}
	return records, nil
}

func (s *Service) ListAPICalls(ctx context.Context, f APICallFilter) ([]*APICallRecord, error) {
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	records, err := s.repo.ListAPICalls(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list api call logs", "error", err)
		return nil, err
	}
	return records, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
