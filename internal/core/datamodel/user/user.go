package user

import "time"

const (
	LocationMainBranch     = "MAIN_BRANCH"
	LocationProvinceBranch = "PROVINCE_BRANCH"
	LocationDistrictBranch = "DISTRICT_BRANCH"
)

type User struct {
	ID               int64     `gorm:"primaryKey"`
	Email            string    `gorm:"column:email;uniqueIndex;not null"`
	Name             string    `gorm:"column:name;not null"`
	PasswordHash     string    `gorm:"column:password_hash;not null"`
	IsActive         bool      `gorm:"column:is_active;not null"`
	LocationType     *string   `gorm:"column:location_type"`
	MainBranchID     *int64    `gorm:"column:main_branch_id"`
	ProvinceBranchID *int64    `gorm:"column:province_branch_id"`
	DistrictBranchID *int64    `gorm:"column:district_branch_id"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
