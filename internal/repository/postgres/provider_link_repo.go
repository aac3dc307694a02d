package postgres

import (
	"errors"
	"fmt"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
	"gorm.io/gorm"
)

type ProviderLinkRepo struct {
	db *gorm.DB
}

func NewProviderLinkRepo(db *gorm.DB) *ProviderLinkRepo {
	return &ProviderLinkRepo{db: db}
}

func (r *ProviderLinkRepo) Create(link *entity.ProviderLink) error {
	if err := r.db.Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create provider link: %w", err)
	}
	return nil
}

func (r *ProviderLinkRepo) CreateWithAccount(account *entity.Account, link *entity.ProviderLink) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		link.AccountID = account.ID
		return tx.Create(link).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicate
		}
		return fmt.Errorf("failed to create account with provider link: %w", err)
	}
	return nil
}

func (r *ProviderLinkRepo) GetByProviderUserID(providerUserID string) (*entity.ProviderLink, error) {
	var link entity.ProviderLink
	err := r.db.
		Where("provider_user_id = ?", providerUserID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link by provider user id: %w", err)
	}
	return &link, nil
}

func (r *ProviderLinkRepo) GetByAccountID(accountID uint) (*entity.ProviderLink, error) {
	var link entity.ProviderLink
	err := r.db.
		Where("account_id = ?", accountID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get link by account id: %w", err)
	}
	return &link, nil
}

func (r *ProviderLinkRepo) UpdateBundle(linkID uint, bundle entity.TokenBundle) error {
	err := r.db.Model(&entity.ProviderLink{}).
		Where("id = ?", linkID).
		Updates(map[string]interface{}{
			"access_token":  bundle.AccessToken,
			"refresh_token": bundle.RefreshToken,
			"token_type":    bundle.TokenType,
			"scope":         bundle.Scope,
			"expires_in":    bundle.ExpiresIn,
			"issued_at":     bundle.IssuedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update token bundle: %w", err)
	}
	return nil
}
