package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GrantAccess sets the access flag and, only when the user has no
	// credential yet, stores credentialHash. The precondition check and
	// both writes happen inside one transaction so concurrent grants
	// cannot lose an update. Returns whether the credential was stored.
	GrantAccess(ctx context.Context, id uuid.UUID, credentialHash string) (bool, error)

	// RevokeAccess clears the access flag; the credential is untouched.
	RevokeAccess(ctx context.Context, id uuid.UUID) error
}

type gormUserRepo struct {
	db *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) UserRepository {
	return &gormUserRepo{db: db}
}

func (r *gormUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormUserRepo) GrantAccess(ctx context.Context, id uuid.UUID, credentialHash string) (bool, error) {
	credentialSet := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"has_access": true}
		if user.CredentialHash == nil {
			updates["credential_hash"] = credentialHash
			credentialSet = true
		}
		return tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return false, err
	}
	return credentialSet, nil
}

func (r *gormUserRepo) RevokeAccess(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("has_access", false).Error
}
