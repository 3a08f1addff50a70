package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/branch"
	userDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type BranchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) branch.RepositoryAPI {
	return &BranchRepository{db: db}
}

func (r *BranchRepository) UserLocation(ctx context.Context, userID int64) (*branch.UserLocation, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "location_type", "main_branch_id", "province_branch_id", "district_branch_id").
		Where("id = ?", userID).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &branch.UserLocation{
		LocationType:     u.LocationType,
		MainBranchID:     u.MainBranchID,
		ProvinceBranchID: u.ProvinceBranchID,
		DistrictBranchID: u.DistrictBranchID,
	}, nil
}

func (r *BranchRepository) ProvinceCode(ctx context.Context, provinceBranchID int64) (string, error) {
	return r.code(ctx, &branch.ProvinceBranch{}, provinceBranchID)
}

func (r *BranchRepository) DistrictCode(ctx context.Context, districtBranchID int64) (string, error) {
	return r.code(ctx, &branch.DistrictBranch{}, districtBranchID)
}

func (r *BranchRepository) DistrictProvinceCode(ctx context.Context, districtBranchID int64) (string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Table("district_branches AS d").
		Joins("JOIN province_branches p ON p.id = d.province_branch_id").
		Where("d.id = ?", districtBranchID).
		Pluck("p.code", &codes).Error
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "", internal.ErrRecordNotFound
	}
	return codes[0], nil
}

func (r *BranchRepository) code(ctx context.Context, model interface{}, id int64) (string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Pluck("code", &codes).Error; err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "", internal.ErrRecordNotFound
	}
	return codes[0], nil
}

func (r *BranchRepository) MainBranches(ctx context.Context) ([]*branch.MainBranch, error) {
	var rows []*branch.MainBranch
	err := r.db.WithContext(ctx).Order("code").Find(&rows).Error
	return rows, err
}

func (r *BranchRepository) ProvinceBranches(ctx context.Context) ([]*branch.ProvinceBranch, error) {
	var rows []*branch.ProvinceBranch
	err := r.db.WithContext(ctx).Order("code").Find(&rows).Error
	return rows, err
}

func (r *BranchRepository) DistrictBranches(ctx context.Context) ([]*branch.DistrictBranch, error) {
	var rows []*branch.DistrictBranch
	err := r.db.WithContext(ctx).Order("code").Find(&rows).Error
	return rows, err
}
