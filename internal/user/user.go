package user

import (
	"time"

	userDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/user"
)

const (
	LocationMainBranch     = userDatamodel.LocationMainBranch
	LocationProvinceBranch = userDatamodel.LocationProvinceBranch
	LocationDistrictBranch = userDatamodel.LocationDistrictBranch
)

type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordHash     string    `json:"-"`
	IsActive         bool      `json:"is_active"`
	LocationType     *string   `json:"location_type,omitempty"`
	MainBranchID     *int64    `json:"main_branch_id,omitempty"`
	ProvinceBranchID *int64    `json:"province_branch_id,omitempty"`
	DistrictBranchID *int64    `json:"district_branch_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (u *User) IsActiveUser() bool {
	return u.IsActive
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		PasswordHash:     u.PasswordHash,
		IsActive:         u.IsActive,
		LocationType:     u.LocationType,
		MainBranchID:     u.MainBranchID,
		ProvinceBranchID: u.ProvinceBranchID,
		DistrictBranchID: u.DistrictBranchID,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		PasswordHash:     u.PasswordHash,
		IsActive:         u.IsActive,
		LocationType:     u.LocationType,
		MainBranchID:     u.MainBranchID,
		ProvinceBranchID: u.ProvinceBranchID,
		DistrictBranchID: u.DistrictBranchID,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
