package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Account is a local user record. Email is empty for accounts provisioned
// from a provider callback without an email; when set it is unique across
// the store (case-insensitive, enforced by a partial unique index).
type Account struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"size:100;not null;default:''" json:"email,omitempty"`
	DisplayName string `gorm:"size:100;not null;default:''" json:"display_name"`

	// Password is the optional local credential. Empty for accounts that
	// only ever sign in through the external provider.
	Password string `gorm:"size:100;not null;default:''" json:"-"`

	EmailConfirmedAt *time.Time `gorm:"type:timestamp" json:"email_confirmed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// EmailConfirmed reports whether ownership of the email was proven.
func (a *Account) EmailConfirmed() bool {
	return a.EmailConfirmedAt != nil
}

// HasPassword reports whether a local credential is set.
func (a *Account) HasPassword() bool {
	return a.Password != ""
}

// BeforeSave hashes the password unless it is empty or already a bcrypt hash.
func (a *Account) BeforeSave(tx *gorm.DB) error {
	if len(a.Password) > 0 && !strings.HasPrefix(a.Password, "$2a$") &&
		!strings.HasPrefix(a.Password, "$2b$") && !strings.HasPrefix(a.Password, "$2y$") {
		hashed, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[Account.BeforeSave] failed to hash password for email=%s: %v", a.Email, err)
			return err
		}
		a.Password = string(hashed)
	}
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (a *Account) CheckPassword(password string) bool {
	if a.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) == nil
}

// NormalizeEmail lowercases and trims an email for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
