package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"gorm.io/gorm"
)

type Repository interface {
	// GetByID returns internal.ErrUserNotFound when the user does not exist.
	GetByID(ctx context.Context, userID int64) (*User, error)
	FindForUpdate(tx *gorm.DB, userID int64) (*User, error)
	Save(tx *gorm.DB, u *User) error
}

type AccessProvider interface {
	AccessContext(ctx context.Context, userID int64) (*authz.AccessContext, error)
}

type Service struct {
	repo   Repository
	access AccessProvider
	uow    *uow.Manager
	logger *slog.Logger
}

func NewService(repo Repository, access AccessProvider, mgr *uow.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		access: access,
		uow:    mgr,
		logger: logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrUserNotFound
		}
		s.logger.ErrorContext(ctx, "failed to get user by id", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("failed to get user", err)
	}
	return u, nil
}

// Profile returns the user together with what they may currently do.
func (s *Service) Profile(ctx context.Context, userID int64) (*Profile, error) {
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	access, err := s.access.AccessContext(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to resolve access context", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("failed to resolve access context", err)
	}

	return &Profile{User: u, Access: access}, nil
}

// AssignLocation changes the branch a user's data scope is derived from.
func (s *Service) AssignLocation(ctx context.Context, actorID, userID int64, dto AssignLocationDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var updated *User
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		u, err := s.repo.FindForUpdate(tx, userID)
		if err != nil {
			return err
		}
		dto.Apply(u)
		if err := s.repo.Save(tx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "failed to assign user location", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("failed to assign user location", err)
	}

	s.logger.InfoContext(ctx, "user location assigned",
		"user_id", userID,
		"actor_id", actorID,
		"location_type", dto.LocationType)
	return updated, nil
}
