package branch

import (
	"context"

	branchDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/branch"
)

// StatusCompleted is the terminal workflow state visible to every branch.
const StatusCompleted = "COMPLETED"

type (
	MainBranch     = branchDatamodel.MainBranch
	ProvinceBranch = branchDatamodel.ProvinceBranch
	DistrictBranch = branchDatamodel.DistrictBranch
)

// UserLocation is a user's location tag and branch foreign keys.
type UserLocation struct {
	LocationType     *string
	MainBranchID     *int64
	ProvinceBranchID *int64
	DistrictBranchID *int64
}

type DistrictNode struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type ProvinceNode struct {
	ID        int64          `json:"id"`
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Districts []DistrictNode `json:"districts"`
}

type MainNode struct {
	ID        int64          `json:"id"`
	Code      string         `json:"code"`
	Name      string         `json:"name"`
	Provinces []ProvinceNode `json:"provinces"`
}

type RepositoryAPI interface {
	UserLocation(ctx context.Context, userID int64) (*UserLocation, error)
	ProvinceCode(ctx context.Context, provinceBranchID int64) (string, error)
	DistrictCode(ctx context.Context, districtBranchID int64) (string, error)
	// DistrictProvinceCode walks from a district to its parent province's code.
	DistrictProvinceCode(ctx context.Context, districtBranchID int64) (string, error)
	MainBranches(ctx context.Context) ([]*MainBranch, error)
	ProvinceBranches(ctx context.Context) ([]*ProvinceBranch, error)
	DistrictBranches(ctx context.Context) ([]*DistrictBranch, error)
}
