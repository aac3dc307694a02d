package repository

import "github.com/bikedataproject/identity-api/internal/domain/entity"

// ProviderLinkRepository stores account-to-provider mappings. Uniqueness of
// ProviderUserID and of AccountID is enforced by the store; Create returns
// apperrors.ErrDuplicate when either constraint is violated, which callers
// treat as "someone else linked this identity first".
type ProviderLinkRepository interface {
	Create(link *entity.ProviderLink) error
	// CreateWithAccount creates a new account and its link in one
	// transaction, so a lost race never leaves an orphaned account behind.
	CreateWithAccount(account *entity.Account, link *entity.ProviderLink) error
	GetByProviderUserID(providerUserID string) (*entity.ProviderLink, error)
	GetByAccountID(accountID uint) (*entity.ProviderLink, error)
	// UpdateBundle replaces the stored token bundle wholesale, leaving the
	// sync progress markers untouched.
	UpdateBundle(linkID uint, bundle entity.TokenBundle) error
}
