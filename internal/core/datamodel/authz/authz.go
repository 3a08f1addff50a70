package authz

import "time"

const (
	RoleLevelSuperAdmin = "SUPER_ADMIN"
	RoleLevelAdmin      = "ADMIN"
	RoleLevelStaff      = "STAFF"
)

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	Level       string    `gorm:"column:level;not null;default:STAFF"`
	IsSystem    bool      `gorm:"column:is_system;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Role) TableName() string { return "roles" }

// Permission names follow the resource:action convention.
type Permission struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Permission) TableName() string { return "permissions" }

type RolePermission struct {
	ID           int64 `gorm:"primaryKey"`
	RoleID       int64 `gorm:"column:role_id;not null;uniqueIndex:idx_role_permission"`
	PermissionID int64 `gorm:"column:permission_id;not null;uniqueIndex:idx_role_permission"`
	Granted      bool  `gorm:"column:granted;not null"`
}

func (RolePermission) TableName() string { return "role_permissions" }

type UserRole struct {
	ID        int64      `gorm:"primaryKey"`
	UserID    int64      `gorm:"column:user_id;not null;index"`
	RoleID    int64      `gorm:"column:role_id;not null"`
	IsActive  bool       `gorm:"column:is_active;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	GrantedBy *int64     `gorm:"column:granted_by"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (UserRole) TableName() string { return "user_roles" }

// UserPermissionOverride grants (Granted=true) or denies (Granted=false) a
// single permission for one user, independent of roles.
type UserPermissionOverride struct {
	ID           int64      `gorm:"primaryKey"`
	UserID       int64      `gorm:"column:user_id;not null;index"`
	PermissionID int64      `gorm:"column:permission_id;not null"`
	Granted      bool       `gorm:"column:granted;not null"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	Reason       string     `gorm:"column:reason"`
	GrantedBy    *int64     `gorm:"column:granted_by"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (UserPermissionOverride) TableName() string { return "user_permission_overrides" }

type Group struct {
	ID         int64     `gorm:"primaryKey"`
	Name       string    `gorm:"column:name;uniqueIndex;not null"`
	Department string    `gorm:"column:department"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Group) TableName() string { return "access_groups" }

type UserGroup struct {
	ID        int64      `gorm:"primaryKey"`
	UserID    int64      `gorm:"column:user_id;not null;index"`
	GroupID   int64      `gorm:"column:group_id;not null"`
	IsActive  bool       `gorm:"column:is_active;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (UserGroup) TableName() string { return "user_access_groups" }
