package monk

import (
	"time"

	monkDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/monk"
	"github.com/shopspring/decimal"
)

type Monk struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	OrdinationName string          `json:"ordination_name"`
	BirthDate      *time.Time      `json:"birth_date,omitempty"`
	TempleName     string          `json:"temple_name"`
	ProvinceCode   string          `json:"province_code"`
	DistrictCode   string          `json:"district_code"`
	WorkflowStatus string          `json:"workflow_status"`
	MonthlyStipend decimal.Decimal `json:"monthly_stipend"`
	CreatedBy      *int64          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusPrinted   = "PRINTED"
	StatusCompleted = "COMPLETED"
)

var transitions = map[string][]string{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusPrinted},
	StatusPrinted:  {StatusCompleted},
	StatusRejected: {StatusPending},
}

func (m *Monk) CanTransitionTo(status string) bool {
	for _, next := range transitions[m.WorkflowStatus] {
		if next == status {
			return true
		}
	}
	return false
}

func NewMonk(createdBy int64, dto CreateMonkDTO) *Monk {
	return &Monk{
		Name:           dto.Name,
		OrdinationName: dto.OrdinationName,
		BirthDate:      dto.BirthDate,
		TempleName:     dto.TempleName,
		ProvinceCode:   dto.ProvinceCode,
		DistrictCode:   dto.DistrictCode,
		WorkflowStatus: StatusPending,
		MonthlyStipend: dto.MonthlyStipend,
		CreatedBy:      &createdBy,
	}
}

func ToDataModel(m *Monk) *monkDatamodel.Monk {
	return &monkDatamodel.Monk{
		ID:             m.ID,
		Name:           m.Name,
		OrdinationName: m.OrdinationName,
		BirthDate:      m.BirthDate,
		TempleName:     m.TempleName,
		ProvinceCode:   m.ProvinceCode,
		DistrictCode:   m.DistrictCode,
		WorkflowStatus: m.WorkflowStatus,
		MonthlyStipend: m.MonthlyStipend,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func FromDataModel(m *monkDatamodel.Monk) *Monk {
	return &Monk{
		ID:             m.ID,
		Name:           m.Name,
		OrdinationName: m.OrdinationName,
		BirthDate:      m.BirthDate,
		TempleName:     m.TempleName,
		ProvinceCode:   m.ProvinceCode,
		DistrictCode:   m.DistrictCode,
		WorkflowStatus: m.WorkflowStatus,
		MonthlyStipend: m.MonthlyStipend,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
