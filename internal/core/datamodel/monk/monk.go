package monk

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Monk struct {
	ID             int64           `gorm:"primaryKey"`
	Name           string          `gorm:"column:name;not null"`
	OrdinationName string          `gorm:"column:ordination_name"`
	BirthDate      *time.Time      `gorm:"column:birth_date"`
	TempleName     string          `gorm:"column:temple_name"`
	ProvinceCode   string          `gorm:"column:province_code;not null;index"`
	DistrictCode   string          `gorm:"column:district_code;not null;index"`
	WorkflowStatus string          `gorm:"column:workflow_status;not null"`
	MonthlyStipend decimal.Decimal `gorm:"column:monthly_stipend;type:numeric(12,2);not null"`
	CreatedBy      *int64          `gorm:"column:created_by"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (Monk) TableName() string { return "monks" }
