package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	authzDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/authz"
	"gorm.io/gorm"
)

// AuthzRepository reads grants for the resolver and writes admin changes.
type AuthzRepository struct {
	db *gorm.DB
}

func NewAuthzRepository(db *gorm.DB) *AuthzRepository {
	return &AuthzRepository{db: db}
}

var (
	_ authz.Store           = (*AuthzRepository)(nil)
	_ authz.AdminRepository = (*AuthzRepository)(nil)
)

func (r *AuthzRepository) RoleAssignments(ctx context.Context, userID int64) ([]authz.RoleAssignment, error) {
	var rows []authz.RoleAssignment
	err := r.db.WithContext(ctx).
		Table("user_roles AS ur").
		Select("ur.role_id, r.name AS role_name, r.level, ur.is_active, ur.expires_at").
		Joins("JOIN roles r ON r.id = ur.role_id").
		Where("ur.user_id = ?", userID).
		Order("ur.role_id").
		Scan(&rows).Error
	return rows, err
}

func (r *AuthzRepository) RolePermissions(ctx context.Context, roleIDs []int64) ([]authz.RolePermissionGrant, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var rows []authz.RolePermissionGrant
	err := r.db.WithContext(ctx).
		Table("role_permissions AS rp").
		Select("rp.role_id, p.name AS permission, rp.granted").
		Joins("JOIN permissions p ON p.id = rp.permission_id").
		Where("rp.role_id IN ?", roleIDs).
		Scan(&rows).Error
	return rows, err
}

func (r *AuthzRepository) PermissionOverrides(ctx context.Context, userID int64) ([]authz.PermissionOverride, error) {
	var rows []authz.PermissionOverride
	err := r.db.WithContext(ctx).
		Table("user_permission_overrides AS o").
		Select("p.name AS permission, o.granted, o.is_active, o.expires_at").
		Joins("JOIN permissions p ON p.id = o.permission_id").
		Where("o.user_id = ?", userID).
		Order("o.id").
		Scan(&rows).Error
	return rows, err
}

func (r *AuthzRepository) GroupMemberships(ctx context.Context, userID int64) ([]authz.GroupMembership, error) {
	var rows []authz.GroupMembership
	err := r.db.WithContext(ctx).
		Table("user_access_groups AS ug").
		Select("ug.group_id, g.name, g.department, ug.is_active, ug.expires_at").
		Joins("JOIN access_groups g ON g.id = ug.group_id").
		Where("ug.user_id = ?", userID).
		Order("g.name").
		Scan(&rows).Error
	return rows, err
}

func (r *AuthzRepository) RoleExists(ctx context.Context, roleID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&authzDatamodel.Role{}).Where("id = ?", roleID).Count(&count).Error
	return count > 0, err
}

func (r *AuthzRepository) PermissionID(ctx context.Context, name string) (int64, error) {
	var p authzDatamodel.Permission
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, internal.NewNotFoundError(fmt.Sprintf("Permission %q not found", name), internal.ErrCodeRecordNotFound)
	}
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// AssignRole reactivates an existing assignment or inserts a new one. tx must
// carry the unit of work's context so the change is audited.
func (r *AuthzRepository) AssignRole(_ context.Context, tx *gorm.DB, in authz.AssignRoleInput) (int64, error) {
	var existing authzDatamodel.UserRole
	err := tx.Where("user_id = ? AND role_id = ?", in.UserID, in.RoleID).First(&existing).Error
	switch {
	case err == nil:
		existing.IsActive = true
		existing.ExpiresAt = in.ExpiresAt
		existing.GrantedBy = in.GrantedBy
		if err := tx.Save(&existing).Error; err != nil {
			return 0, err
		}
		return existing.ID, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := authzDatamodel.UserRole{
			UserID:    in.UserID,
			RoleID:    in.RoleID,
			IsActive:  true,
			ExpiresAt: in.ExpiresAt,
			GrantedBy: in.GrantedBy,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, err
		}
		return row.ID, nil
	default:
		return 0, err
	}
}

func (r *AuthzRepository) RevokeRole(_ context.Context, tx *gorm.DB, userID, roleID int64) error {
	res := tx.Model(&authzDatamodel.UserRole{}).
		Where("user_id = ? AND role_id = ? AND is_active = ?", userID, roleID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrRoleNotFound
	}
	return nil
}

// SetOverride deactivates any active override for the same permission before
// inserting the new one, so at most one override per permission is live.
func (r *AuthzRepository) SetOverride(_ context.Context, tx *gorm.DB, permissionID int64, in authz.OverrideInput) (int64, error) {
	if err := tx.Model(&authzDatamodel.UserPermissionOverride{}).
		Where("user_id = ? AND permission_id = ? AND is_active = ?", in.UserID, permissionID, true).
		Update("is_active", false).Error; err != nil {
		return 0, err
	}

	row := authzDatamodel.UserPermissionOverride{
		UserID:       in.UserID,
		PermissionID: permissionID,
		Granted:      in.Granted,
		IsActive:     true,
		ExpiresAt:    in.ExpiresAt,
		Reason:       in.Reason,
		GrantedBy:    in.GrantedBy,
	}
	if err := tx.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}
