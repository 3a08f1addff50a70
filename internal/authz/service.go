package authz

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"gorm.io/gorm"
)

// Service handles admin changes to grants. Every change runs in a unit of
// work and is therefore audited.
type Service struct {
	repo     AdminRepository
	resolver *Resolver
	uow      *uow.Manager
	logger   *slog.Logger
}

func NewService(repo AdminRepository, resolver *Resolver, mgr *uow.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, uow: mgr, logger: logger}
}

func (s *Service) AccessContext(ctx context.Context, userID int64) (*AccessContext, error) {
	return s.resolver.AccessContext(ctx, userID)
}

func (s *Service) AssignRole(ctx context.Context, in AssignRoleInput) (int64, error) {
	if in.ExpiresAt != nil && !in.ExpiresAt.After(time.Now()) {
		return 0, internal.NewValidationFieldError("expires_at", "expires_at must be in the future", internal.ErrCodeInvalidDate)
	}

	exists, err := s.repo.RoleExists(ctx, in.RoleID)
	if err != nil {
		return 0, internal.NewInternalError("Failed to load role", err)
	}
	if !exists {
		return 0, internal.ErrRoleNotFound
	}

	var id int64
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		id, err = s.repo.AssignRole(ctx, tx, in)
		return err
	})
	if err != nil {
		return 0, s.wrap(ctx, err, "failed to assign role", "user_id", in.UserID, "role_id", in.RoleID)
	}

	s.logger.InfoContext(ctx, "role assigned", "user_id", in.UserID, "role_id", in.RoleID, "granted_by", in.GrantedBy)
	return id, nil
}

func (s *Service) RevokeRole(ctx context.Context, userID, roleID int64) error {
	err := s.uow.Do(ctx, func(tx *gorm.DB) error {
		return s.repo.RevokeRole(ctx, tx, userID, roleID)
	})
	if err != nil {
		return s.wrap(ctx, err, "failed to revoke role", "user_id", userID, "role_id", roleID)
	}
	s.logger.InfoContext(ctx, "role revoked", "user_id", userID, "role_id", roleID)
	return nil
}

func (s *Service) SetOverride(ctx context.Context, in OverrideInput) (int64, error) {
	in.Permission = normalizePermission(in.Permission)
	if !strings.Contains(in.Permission, ":") {
		return 0, internal.NewValidationFieldError("permission", "permission must use the resource:action format", internal.ErrCodeValidationFailed)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(time.Now()) {
		return 0, internal.NewValidationFieldError("expires_at", "expires_at must be in the future", internal.ErrCodeInvalidDate)
	}

	permissionID, err := s.repo.PermissionID(ctx, in.Permission)
	if err != nil {
		return 0, s.wrap(ctx, err, "failed to load permission", "permission", in.Permission)
	}

	var id int64
	err = s.uow.Do(ctx, func(tx *gorm.DB) error {
		var err error
		id, err = s.repo.SetOverride(ctx, tx, permissionID, in)
		return err
	})
	if err != nil {
		return 0, s.wrap(ctx, err, "failed to set permission override", "user_id", in.UserID, "permission", in.Permission)
	}

	s.logger.InfoContext(ctx, "permission override set",
		"user_id", in.UserID,
		"permission", in.Permission,
		"granted", in.Granted,
		"granted_by", in.GrantedBy)
	return id, nil
}

func (s *Service) wrap(ctx context.Context, err error, msg string, args ...any) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.ErrorContext(ctx, msg, append(args, "error", err)...)
	return internal.NewInternalError(msg, err)
}
