package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/auth"
	userDatamodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) CredentialsByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&u).Error
	return credentials(&u, err)
}

func (r *Repository) CredentialsByID(ctx context.Context, userID int64) (*auth.Credentials, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).First(&u, userID).Error
	return credentials(&u, err)
}

func credentials(u *userDatamodel.User, err error) (*auth.Credentials, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &auth.Credentials{
		UserID:       u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
	}, nil
}
