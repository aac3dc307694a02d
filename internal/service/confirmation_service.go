package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
)

const confirmationPurpose = "confirm-email"

// ConfirmationIssuer mints and validates the opaque secrets embedded in
// email-confirmation links. A secret is an HMAC-signed token bound to one
// account and one email; callers treat it as an opaque byte string and the
// transport encoding lives elsewhere.
type ConfirmationIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

type confirmationClaims struct {
	Purpose string `json:"purpose"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

func NewConfirmationIssuer(signingKey string, ttl time.Duration) (*ConfirmationIssuer, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("confirmation signing key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ConfirmationIssuer{
		signingKey: []byte(signingKey),
		ttl:        ttl,
	}, nil
}

// Issue mints a confirmation secret for the account's current email.
func (i *ConfirmationIssuer) Issue(account *entity.Account) ([]byte, error) {
	if account == nil || account.Email == "" {
		return nil, fmt.Errorf("account with an email is required to issue a confirmation secret")
	}

	now := time.Now()
	claims := confirmationClaims{
		Purpose: confirmationPurpose,
		Email:   entity.NormalizeEmail(account.Email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(account.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign confirmation secret: %w", err)
	}
	return []byte(signed), nil
}

// Validate checks a secret against the account it claims to confirm.
// Signature, expiry, purpose and binding failures all come back as
// ErrInvalidOrExpiredToken; the caller does not need to tell them apart.
func (i *ConfirmationIssuer) Validate(account *entity.Account, secret []byte) error {
	if account == nil {
		return fmt.Errorf("%w: no account", ErrInvalidOrExpiredToken)
	}

	claims := &confirmationClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(string(secret), claims, func(token *jwt.Token) (interface{}, error) {
		return i.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrExpiredToken, err)
	}
	if token == nil || !token.Valid {
		return fmt.Errorf("%w: invalid token", ErrInvalidOrExpiredToken)
	}

	if claims.Purpose != confirmationPurpose {
		return fmt.Errorf("%w: wrong purpose", ErrInvalidOrExpiredToken)
	}
	if claims.Subject != strconv.FormatUint(uint64(account.ID), 10) {
		return fmt.Errorf("%w: subject mismatch", ErrInvalidOrExpiredToken)
	}
	if claims.Email != entity.NormalizeEmail(account.Email) {
		return fmt.Errorf("%w: email mismatch", ErrInvalidOrExpiredToken)
	}

	return nil
}
