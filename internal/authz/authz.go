package authz

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	LevelSuperAdmin = "SUPER_ADMIN"
	LevelAdmin      = "ADMIN"
)

type RoleAssignment struct {
	RoleID    int64
	RoleName  string
	Level     string
	IsActive  bool
	ExpiresAt *time.Time
}

type RolePermissionGrant struct {
	RoleID     int64
	Permission string
	Granted    bool
}

// PermissionOverride is a per-user grant (Granted=true) or deny (Granted=false).
type PermissionOverride struct {
	Permission string
	Granted    bool
	IsActive   bool
	ExpiresAt  *time.Time
}

type GroupMembership struct {
	GroupID    int64
	Name       string
	Department string
	IsActive   bool
	ExpiresAt  *time.Time
}

type RoleSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

// AccessContext summarises a user's access for login and profile responses.
type AccessContext struct {
	Roles        []RoleSummary `json:"roles"`
	Groups       []string      `json:"groups"`
	Permissions  []string      `json:"permissions"`
	IsSuperAdmin bool          `json:"is_super_admin"`
	IsAdmin      bool          `json:"is_admin"`
	Departments  []string      `json:"departments"`
}

// Store is the read side the resolver needs. Rows are returned unfiltered;
// active and expiry rules are applied by the resolver.
type Store interface {
	RoleAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error)
	RolePermissions(ctx context.Context, roleIDs []int64) ([]RolePermissionGrant, error)
	PermissionOverrides(ctx context.Context, userID int64) ([]PermissionOverride, error)
	GroupMemberships(ctx context.Context, userID int64) ([]GroupMembership, error)
}

type AssignRoleInput struct {
	UserID    int64
	RoleID    int64
	ExpiresAt *time.Time
	GrantedBy *int64
}

type OverrideInput struct {
	UserID     int64
	Permission string
	Granted    bool
	ExpiresAt  *time.Time
	Reason     string
	GrantedBy  *int64
}

// AdminRepository writes grants through the caller's transaction.
type AdminRepository interface {
	RoleExists(ctx context.Context, roleID int64) (bool, error)
	PermissionID(ctx context.Context, name string) (int64, error)
	AssignRole(ctx context.Context, tx *gorm.DB, in AssignRoleInput) (int64, error)
	RevokeRole(ctx context.Context, tx *gorm.DB, userID, roleID int64) error
	SetOverride(ctx context.Context, tx *gorm.DB, permissionID int64, in OverrideInput) (int64, error)
}

// effective reports whether an assignment row currently applies.
func effective(active bool, expiresAt *time.Time, now time.Time) bool {
	if !active {
		return false
	}
	return expiresAt == nil || expiresAt.After(now)
}

func normalizePermission(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// normalizePermissions trims, lowercases and dedupes while keeping order.
func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = normalizePermission(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
