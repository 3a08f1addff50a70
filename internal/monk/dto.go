package monk

import (
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

type CreateMonkDTO struct {
	Name           string          `json:"name"`
	OrdinationName string          `json:"ordination_name"`
	BirthDate      *time.Time      `json:"birth_date,omitempty"`
	TempleName     string          `json:"temple_name"`
	ProvinceCode   string          `json:"province_code"`
	DistrictCode   string          `json:"district_code"`
	MonthlyStipend decimal.Decimal `json:"monthly_stipend"`
}

func (dto CreateMonkDTO) Validate() error {
	if err := validation.ValidateName("name", dto.Name); err != nil {
		return err
	}
	if err := validation.ValidateLocationCode("province_code", dto.ProvinceCode); err != nil {
		return err
	}
	if err := validation.ValidateLocationCode("district_code", dto.DistrictCode); err != nil {
		return err
	}
	v := validation.NewValidator()
	v.Field("ordination_name", dto.OrdinationName).MaxLength(200)
	v.Field("temple_name", dto.TempleName).MaxLength(200)
	v.Field("birth_date", dto.BirthDate).NotFuture()
	v.Field("monthly_stipend", dto.MonthlyStipend).NonNegative(internal.ErrCodeInvalidAmount)
	return v.Validate()
}

// UpdateMonkDTO is a partial update; nil fields are left untouched.
type UpdateMonkDTO struct {
	Name           *string          `json:"name,omitempty"`
	OrdinationName *string          `json:"ordination_name,omitempty"`
	BirthDate      *time.Time       `json:"birth_date,omitempty"`
	TempleName     *string          `json:"temple_name,omitempty"`
	ProvinceCode   *string          `json:"province_code,omitempty"`
	DistrictCode   *string          `json:"district_code,omitempty"`
	MonthlyStipend *decimal.Decimal `json:"monthly_stipend,omitempty"`
}

func (dto UpdateMonkDTO) Validate() error {
	if dto.Name != nil {
		if err := validation.ValidateName("name", *dto.Name); err != nil {
			return err
		}
	}
	if dto.ProvinceCode != nil {
		if err := validation.ValidateLocationCode("province_code", *dto.ProvinceCode); err != nil {
			return err
		}
	}
	if dto.DistrictCode != nil {
		if err := validation.ValidateLocationCode("district_code", *dto.DistrictCode); err != nil {
			return err
		}
	}
	v := validation.NewValidator()
	if dto.OrdinationName != nil {
		v.Field("ordination_name", *dto.OrdinationName).MaxLength(200)
	}
	if dto.TempleName != nil {
		v.Field("temple_name", *dto.TempleName).MaxLength(200)
	}
	v.Field("birth_date", dto.BirthDate).NotFuture()
	if dto.MonthlyStipend != nil {
		v.Field("monthly_stipend", *dto.MonthlyStipend).NonNegative(internal.ErrCodeInvalidAmount)
	}
	return v.Validate()
}

func (dto UpdateMonkDTO) Apply(m *Monk) {
	if dto.Name != nil {
		m.Name = *dto.Name
	}
	if dto.OrdinationName != nil {
		m.OrdinationName = *dto.OrdinationName
	}
	if dto.BirthDate != nil {
		m.BirthDate = dto.BirthDate
	}
	if dto.TempleName != nil {
		m.TempleName = *dto.TempleName
	}
	if dto.ProvinceCode != nil {
		m.ProvinceCode = *dto.ProvinceCode
	}
	if dto.DistrictCode != nil {
		m.DistrictCode = *dto.DistrictCode
	}
	if dto.MonthlyStipend != nil {
		m.MonthlyStipend = *dto.MonthlyStipend
	}
}

type UpdateStatusDTO struct {
	Status string `json:"status"`
}

func (dto UpdateStatusDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("status", dto.Status).
		Required().
		OneOf(internal.ErrCodeInvalidStatus, StatusPending, StatusApproved, StatusRejected, StatusPrinted, StatusCompleted)
	return v.Validate()
}

type ListFilter struct {
	Status       string
	ProvinceCode string
	DistrictCode string
	Limit        int
	Offset       int
}
