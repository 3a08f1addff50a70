package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/branch"
	monkDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/monk"
	"github.com/frahmantamala/sangha-registry/internal/monk"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var locationColumns = branch.LocationColumns{
	Province: "province_code",
	District: "district_code",
	Status:   "workflow_status",
}

type MonkRepository struct {
	db *gorm.DB
}

func NewMonkRepository(db *gorm.DB) monk.RepositoryAPI {
	return &MonkRepository{db: db}
}

func (r *MonkRepository) GetByID(ctx context.Context, id int64) (*monk.Monk, error) {
	return find(r.db.WithContext(ctx), id)
}

func (r *MonkRepository) List(ctx context.Context, scope branch.Scope, f monk.ListFilter) ([]*monk.Monk, error) {
	q := branch.ScopeQuery(r.db.WithContext(ctx).Model(&monkDatamodel.Monk{}), scope, locationColumns)
	if f.Status != "" {
		q = q.Where("workflow_status = ?", f.Status)
	}
	if f.ProvinceCode != "" {
		q = q.Where("province_code = ?", f.ProvinceCode)
	}
	if f.DistrictCode != "" {
		q = q.Where("district_code = ?", f.DistrictCode)
	}

	var rows []*monkDatamodel.Monk
	if err := q.Order("id").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*monk.Monk, len(rows))
	for i, row := range rows {
		out[i] = monk.FromDataModel(row)
	}
	return out, nil
}

// FindForUpdate reads the row through tx. Postgres takes a row lock; other
// dialects ignore the locking clause.
func (r *MonkRepository) FindForUpdate(tx *gorm.DB, id int64) (*monk.Monk, error) {
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return find(tx, id)
}

func (r *MonkRepository) Create(tx *gorm.DB, m *monk.Monk) error {
	row := monk.ToDataModel(m)
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	m.ID = row.ID
	m.CreatedAt = row.CreatedAt
	m.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *MonkRepository) Save(tx *gorm.DB, m *monk.Monk) error {
	row := monk.ToDataModel(m)
	if err := tx.Save(row).Error; err != nil {
		return err
	}
	m.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *MonkRepository) Delete(tx *gorm.DB, id int64) error {
	res := tx.Delete(&monkDatamodel.Monk{ID: id})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrRecordNotFound
	}
	return nil
}

func find(db *gorm.DB, id int64) (*monk.Monk, error) {
	var row monkDatamodel.Monk
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return monk.FromDataModel(&row), nil
}
