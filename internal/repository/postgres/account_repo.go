package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
	"gorm.io/gorm"
)

type AccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(account *entity.Account) error {
	if err := r.db.Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByID(id uint) (*entity.Account, error) {
	var account entity.Account
	err := r.db.First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}
	return &account, nil
}

func (r *AccountRepo) GetByEmail(email string) (*entity.Account, error) {
	var account entity.Account
	err := r.db.
		Where("email <> '' AND lower(email) = ?", entity.NormalizeEmail(email)).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return &account, nil
}

func (r *AccountRepo) Update(account *entity.Account) error {
	if err := r.db.Save(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicate
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *AccountRepo) MarkEmailConfirmed(accountID uint) error {
	now := time.Now()
	err := r.db.Model(&entity.Account{}).
		Where("id = ? AND email_confirmed_at IS NULL", accountID).
		Update("email_confirmed_at", now).Error
	if err != nil {
		return fmt.Errorf("failed to mark email confirmed: %w", err)
	}
	return nil
}
