package monk

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/branch"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RepositoryAPI reads through its own connection and writes through the
// transaction handed in by the unit of work.
type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*Monk, error)
	List(ctx context.Context, scope branch.Scope, f ListFilter) ([]*Monk, error)
	FindForUpdate(tx *gorm.DB, id int64) (*Monk, error)
	Create(tx *gorm.DB, m *Monk) error
	Save(tx *gorm.DB, m *Monk) error
	Delete(tx *gorm.DB, id int64) error
}

type ScopeResolver interface {
	Resolve(ctx context.Context, userID int64) (branch.Scope, error)
}

type Service struct {
	repo   RepositoryAPI
	uow    *uow.Manager
	scopes ScopeResolver
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, mgr *uow.Manager, scopes ScopeResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, uow: mgr, scopes: scopes, logger: logger}
}

func (s *Service) Create(ctx context.Context, userID int64, dto CreateMonkDTO) (*Monk, error) {
	if err := dto.Validate(); err != nil {
		s.logger.WarnContext(ctx, "monk validation failed", "error", err, "user_id", userID)
		return nil, err
	}

	m := NewMonk(userID, dto)
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		return s.repo.Create(tx, m)
	})
	if err != nil {
		return nil, s.internalError(ctx, err, "failed to create monk record", "user_id", userID)
	}

	s.logger.InfoContext(ctx, "monk record created", "monk_id", m.ID, "user_id", userID, "district_code", m.DistrictCode)
	return m, nil
}

// Get returns the record when it falls inside the caller's branch scope.
// Out-of-scope records are reported as not found.
func (s *Service) Get(ctx context.Context, userID, id int64) (*Monk, error) {
	scope, err := s.scopes.Resolve(ctx, userID)
	if err != nil {
		return nil, s.internalError(ctx, err, "failed to resolve location scope", "user_id", userID)
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.internalError(ctx, err, "failed to load monk record", "monk_id", id)
	}
	if !scope.Allows(m.ProvinceCode, m.DistrictCode, m.WorkflowStatus) {
		s.logger.WarnContext(ctx, "monk record outside caller scope", "monk_id", id, "user_id", userID, "scope_code", scope.Code)
		return nil, internal.ErrRecordNotFound
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, userID int64, f ListFilter) ([]*Monk, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	scope, err := s.scopes.Resolve(ctx, userID)
	if err != nil {
		return nil, s.internalError(ctx, err, "failed to resolve location scope", "user_id", userID)
	}

	monks, err := s.repo.List(ctx, scope, f)
	if err != nil {
		return nil, s.internalError(ctx, err, "failed to list monk records", "user_id", userID)
	}
	return monks, nil
}

func (s *Service) Update(ctx context.Context, userID, id int64, dto UpdateMonkDTO) (*Monk, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, id, func(m *Monk) error {
		dto.Apply(m)
		return nil
	})
}

func (s *Service) UpdateStatus(ctx context.Context, userID, id int64, dto UpdateStatusDTO) (*Monk, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, id, func(m *Monk) error {
		if !m.CanTransitionTo(dto.Status) {
			return internal.NewConflictError("Cannot move record from "+m.WorkflowStatus+" to "+dto.Status, internal.ErrCodeInvalidStatus)
		}
		m.WorkflowStatus = dto.Status
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		return s.repo.Delete(tx, id)
	})
	if err != nil {
		return s.internalError(ctx, err, "failed to delete monk record", "monk_id", id)
	}
	s.logger.InfoContext(ctx, "monk record deleted", "monk_id", id, "user_id", userID)
	return nil
}

// mutate checks scope, then reloads and saves the record inside one unit of
// work so the audit snapshot and the write see the same row.
func (s *Service) mutate(ctx context.Context, userID, id int64, change func(*Monk) error) (*Monk, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	var updated *Monk
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		m, err := s.repo.FindForUpdate(tx, id)
		if err != nil {
			return err
		}
		if err := change(m); err != nil {
			return err
		}
		if err := s.repo.Save(tx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, s.internalError(ctx, err, "failed to update monk record", "monk_id", id)
	}

	s.logger.InfoContext(ctx, "monk record updated", "monk_id", id, "user_id", userID, "status", updated.WorkflowStatus)
	return updated, nil
}

func (s *Service) internalError(ctx context.Context, err error, msg string, args ...any) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.ErrorContext(ctx, msg, append(args, "error", err)...)
	return internal.NewInternalError(msg, err)
}
