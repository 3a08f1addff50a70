package authz

import (
	"time"

	"github.com/frahmantamala/sangha-registry/internal/core/common/validation"
)

type AssignRoleRequest struct {
	RoleID    int64      `json:"role_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (r AssignRoleRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("role_id", r.RoleID).Required().Positive()
	return v.Validate()
}

type OverrideRequest struct {
	Permission string     `json:"permission"`
	Granted    bool       `json:"granted"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason"`
}

func (r OverrideRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("permission", r.Permission).Required().MaxLength(100)
	v.Field("reason", r.Reason).Required().MaxLength(255)
	return v.Validate()
}
