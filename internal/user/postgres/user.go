package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/sangha-registry/internal"
	userDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/user"
	"github.com/frahmantamala/sangha-registry/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	return find(r.db.WithContext(ctx), userID)
}

// FindForUpdate reads through tx; row locks are only taken on postgres.
func (r *Repository) FindForUpdate(tx *gorm.DB, userID int64) (*user.User, error) {
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return find(tx, userID)
}

func (r *Repository) Save(tx *gorm.DB, u *user.User) error {
	row := user.ToDataModel(u)
	if err := tx.Save(row).Error; err != nil {
		return err
	}
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func find(db *gorm.DB, userID int64) (*user.User, error) {
	var row userDatamodel.User
	if err := db.First(&row, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}
