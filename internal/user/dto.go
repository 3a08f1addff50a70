package user

import (
	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	"github.com/frahmantamala/sangha-registry/internal/core/common/validation"
)

// Profile is the /users/me payload.
type Profile struct {
	User   *User                `json:"user"`
	Access *authz.AccessContext `json:"access"`
}

// AssignLocationDTO moves a user to a branch. The branch id matching the
// location type is required; the others are cleared.
type AssignLocationDTO struct {
	LocationType     string `json:"location_type"`
	MainBranchID     *int64 `json:"main_branch_id"`
	ProvinceBranchID *int64 `json:"province_branch_id"`
	DistrictBranchID *int64 `json:"district_branch_id"`
}

func (d AssignLocationDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("location_type", d.LocationType).
		Required().
		OneOf(internal.ErrCodeInvalidLocation, LocationMainBranch, LocationProvinceBranch, LocationDistrictBranch)

	switch d.LocationType {
	case LocationMainBranch:
		v.Field("main_branch_id", derefID(d.MainBranchID)).Required().Positive()
	case LocationProvinceBranch:
		v.Field("province_branch_id", derefID(d.ProvinceBranchID)).Required().Positive()
	case LocationDistrictBranch:
		v.Field("district_branch_id", derefID(d.DistrictBranchID)).Required().Positive()
	}
	return v.Validate()
}

// Apply sets the location and clears branch ids unrelated to it. District
// users keep their province so scope can fall back to it.
func (d AssignLocationDTO) Apply(u *User) {
	locationType := d.LocationType
	u.LocationType = &locationType
	u.MainBranchID = nil
	u.ProvinceBranchID = nil
	u.DistrictBranchID = nil

	switch d.LocationType {
	case LocationMainBranch:
		u.MainBranchID = d.MainBranchID
	case LocationProvinceBranch:
		u.ProvinceBranchID = d.ProvinceBranchID
	case LocationDistrictBranch:
		u.ProvinceBranchID = d.ProvinceBranchID
		u.DistrictBranchID = d.DistrictBranchID
	}
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
