package branch

import "time"

type MainBranch struct {
	ID        int64     `gorm:"primaryKey"`
	Code      string    `gorm:"column:code;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (MainBranch) TableName() string { return "main_branches" }

type ProvinceBranch struct {
	ID           int64     `gorm:"primaryKey"`
	MainBranchID int64     `gorm:"column:main_branch_id;not null;index"`
	Code         string    `gorm:"column:code;uniqueIndex;not null"`
	Name         string    `gorm:"column:name;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProvinceBranch) TableName() string { return "province_branches" }

type DistrictBranch struct {
	ID               int64     `gorm:"primaryKey"`
	ProvinceBranchID int64     `gorm:"column:province_branch_id;not null;index"`
	Code             string    `gorm:"column:code;uniqueIndex;not null"`
	Name             string    `gorm:"column:name;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DistrictBranch) TableName() string { return "district_branches" }
