package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
	"github.com/bikedataproject/identity-api/internal/domain/repository"
	"github.com/bikedataproject/identity-api/internal/pkg/confirmtoken"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
)

// RegisterInput carries a direct registration request. DisplayName and
// Password are optional; passwordless accounts are provisioning targets
// for the external provider flow.
type RegisterInput struct {
	Email           string
	ConfirmEmailURL string
	DisplayName     string
	Password        string
}

// AccountService owns local account registration, email confirmation and
// password sign-in. It is stateless between calls.
type AccountService struct {
	accountRepo  repository.AccountRepository
	sessionRepo  repository.SessionRepository
	emailService EmailService
	confirmer    *ConfirmationIssuer
	sessionTTL   time.Duration
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	emailService EmailService,
	confirmer *ConfirmationIssuer,
	sessionTTL time.Duration,
) (*AccountService, error) {
	if accountRepo == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if sessionRepo == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required")
	}
	if confirmer == nil {
		return nil, fmt.Errorf("confirmation issuer is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = 14 * 24 * time.Hour
	}
	return &AccountService{
		accountRepo:  accountRepo,
		sessionRepo:  sessionRepo,
		emailService: emailService,
		confirmer:    confirmer,
		sessionTTL:   sessionTTL,
	}, nil
}

// Register creates (or reuses) an account for the email and sends a
// confirmation link to it. apperrors.ErrConflict when the email belongs to
// an account whose address is already confirmed; the response carries no
// other signal about whether the email exists.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) error {
	email := entity.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	}
	if err := validateAbsoluteURL(in.ConfirmEmailURL); err != nil {
		return fmt.Errorf("%w: confirm email url must be absolute", apperrors.ErrValidation)
	}

	account := &entity.Account{
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Password:    in.Password,
	}
	err := s.accountRepo.Create(account)
	if errors.Is(err, apperrors.ErrDuplicate) {
		existing, findErr := s.accountRepo.GetByEmail(email)
		if findErr != nil {
			return findErr
		}
		if existing.EmailConfirmed() {
			// Never re-send a confirmation link to an address that is not
			// the caller's.
			return apperrors.ErrConflict
		}
		// An earlier registration never got confirmed; pick it up again.
		account = existing
	} else if err != nil {
		return err
	}

	secret, err := s.confirmer.Issue(account)
	if err != nil {
		return err
	}

	confirmURL, err := buildConfirmURL(in.ConfirmEmailURL, secret, account.Email)
	if err != nil {
		return err
	}

	idempotencyKey := fmt.Sprintf("confirm-email:%d:%s", account.ID, uuid.NewString())
	if err := s.emailService.SendConfirmation(ctx, account.Email, confirmURL, idempotencyKey); err != nil {
		return fmt.Errorf("failed to send confirmation email: %w", err)
	}
	log.Printf("[AccountService] confirmation email queued for account ID=%d", account.ID)

	return nil
}

// ConfirmEmail validates a confirmation link's token and email parameters,
// marks the account's email confirmed and signs the account in. Confirming
// an already confirmed account with a still-valid token just re-establishes
// a session.
func (s *AccountService) ConfirmEmail(ctx context.Context, token, encodedEmail string) (*entity.Account, string, error) {
	secret, err := confirmtoken.DecodeSecret(token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	email, err := confirmtoken.DecodeEmail(encodedEmail)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	account, err := s.accountRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnknownAccount, email)
		}
		return nil, "", err
	}

	if err := s.confirmer.Validate(account, secret); err != nil {
		return nil, "", err
	}

	if err := s.accountRepo.MarkEmailConfirmed(account.ID); err != nil {
		return nil, "", err
	}

	sessionID, err := s.sessionRepo.Create(ctx, account.ID, s.sessionTTL)
	if err != nil {
		return nil, "", err
	}
	log.Printf("[AccountService] email confirmed for account ID=%d", account.ID)

	return account, sessionID, nil
}

// Login signs in with the optional local credential.
func (s *AccountService) Login(ctx context.Context, email, password string) (*entity.Account, string, error) {
	account, err := s.accountRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.ErrUnauthorized
		}
		return nil, "", err
	}
	if !account.CheckPassword(password) {
		return nil, "", apperrors.ErrUnauthorized
	}

	sessionID, err := s.sessionRepo.Create(ctx, account.ID, s.sessionTTL)
	if err != nil {
		return nil, "", err
	}
	return account, sessionID, nil
}

// Logout drops the session. Unknown sessions are not an error.
func (s *AccountService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

// CurrentAccount resolves a session to its account. A missing or expired
// session comes back as (nil, nil); a session pointing at a nonexistent
// account is store corruption and surfaces as ErrInconsistentSession.
func (s *AccountService) CurrentAccount(ctx context.Context, sessionID string) (*entity.Account, error) {
	if sessionID == "" {
		return nil, nil
	}
	accountID, err := s.sessionRepo.GetAccountID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: session references account ID=%d", ErrInconsistentSession, accountID)
		}
		return nil, err
	}
	return account, nil
}

// buildConfirmURL appends the encoded secret and email as the two query
// parameters of the confirmation link.
func buildConfirmURL(confirmEmailURL string, secret []byte, email string) (string, error) {
	u, err := url.Parse(confirmEmailURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	// Both values are unpadded base64url, already URL-safe.
	u.RawQuery = "token=" + confirmtoken.EncodeSecret(secret) + "&email=" + confirmtoken.EncodeEmail(email)
	return u.String(), nil
}
