package repository

import "github.com/bikedataproject/identity-api/internal/domain/entity"

// AccountRepository defines persistence for local accounts.
// Create returns apperrors.ErrDuplicate when the email is already taken.
type AccountRepository interface {
	Create(account *entity.Account) error
	GetByID(id uint) (*entity.Account, error)
	GetByEmail(email string) (*entity.Account, error)
	Update(account *entity.Account) error
	// MarkEmailConfirmed flips the confirmation timestamp. Idempotent:
	// confirming an already confirmed account keeps the original timestamp.
	MarkEmailConfirmed(accountID uint) error
}
