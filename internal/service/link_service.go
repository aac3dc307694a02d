package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
	"github.com/bikedataproject/identity-api/internal/domain/repository"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
	"github.com/bikedataproject/identity-api/internal/provider"
)

// CallbackOutcome names the terminal branch a provider callback took.
type CallbackOutcome string

const (
	// CallbackUpdated: the provider identity was already linked; its token
	// bundle was replaced with the fresh exchange result.
	CallbackUpdated CallbackOutcome = "updated"
	// CallbackLinked: the identity was new and got linked to the account of
	// the already signed-in caller.
	CallbackLinked CallbackOutcome = "linked"
	// CallbackCreated: the identity was new and nobody was signed in; a new
	// account was provisioned from the provider profile and signed in.
	CallbackCreated CallbackOutcome = "created"
)

// CallbackResult is what a successful callback reconciliation produced.
type CallbackResult struct {
	Outcome CallbackOutcome
	Link    *entity.ProviderLink
	Account *entity.Account
	// SessionID is set only on the Created outcome, where a session was
	// established for the freshly provisioned account.
	SessionID string
}

// LinkService reconciles provider identities with local accounts. It is
// stateless between calls; all durable state lives in the repositories.
type LinkService struct {
	accountRepo    repository.AccountRepository
	linkRepo       repository.ProviderLinkRepository
	sessionRepo    repository.SessionRepository
	providerClient provider.Client
	sessionTTL     time.Duration
}

func NewLinkService(
	accountRepo repository.AccountRepository,
	linkRepo repository.ProviderLinkRepository,
	sessionRepo repository.SessionRepository,
	providerClient provider.Client,
	sessionTTL time.Duration,
) (*LinkService, error) {
	if accountRepo == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if linkRepo == nil {
		return nil, fmt.Errorf("provider link repository is required")
	}
	if sessionRepo == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if providerClient == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if sessionTTL <= 0 {
		sessionTTL = 14 * 24 * time.Hour
	}
	return &LinkService{
		accountRepo:    accountRepo,
		linkRepo:       linkRepo,
		sessionRepo:    sessionRepo,
		providerClient: providerClient,
		sessionTTL:     sessionTTL,
	}, nil
}

// Authorize builds the provider authorization URL for the given callback
// target. Purely computational; nothing is stored.
func (s *LinkService) Authorize(redirectURL string) (string, error) {
	if err := validateAbsoluteURL(redirectURL); err != nil {
		return "", err
	}
	return s.providerClient.AuthCodeURL(redirectURL), nil
}

// Callback finishes the authorization-code flow. current is the account of
// the signed-in caller, or nil. The branches are evaluated in order and each
// is terminal:
//
//  1. the provider identity is already linked: replace its token bundle.
//  2. unseen identity, caller signed in: link it to the caller's account.
//  3. unseen identity, nobody signed in: provision an anonymous account from
//     the provider profile, link it, and sign it in.
//
// A create losing a concurrent race surfaces as a duplicate from the store
// and is reinterpreted as branch 1.
func (s *LinkService) Callback(ctx context.Context, code, redirectURL string, current *entity.Account) (*CallbackResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: code is required", apperrors.ErrValidation)
	}
	if err := validateAbsoluteURL(redirectURL); err != nil {
		return nil, err
	}

	bundle, providerUserID, err := s.providerClient.ExchangeCode(ctx, code, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	link, err := s.linkRepo.GetByProviderUserID(providerUserID)
	if err == nil {
		return s.replaceBundle(link, bundle)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if current != nil {
		link = &entity.ProviderLink{
			AccountID:      current.ID,
			ProviderUserID: providerUserID,
			Bundle:         bundle,
		}
		if err := s.linkRepo.Create(link); err != nil {
			if errors.Is(err, apperrors.ErrDuplicate) {
				return s.recoverLostRace(providerUserID, bundle)
			}
			return nil, err
		}
		log.Printf("[LinkService] linked provider identity to account ID=%d", current.ID)
		return &CallbackResult{Outcome: CallbackLinked, Link: link, Account: current}, nil
	}

	profile, err := s.providerClient.FetchProfile(ctx, bundle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	// Email stays unset: the provider never hands us a confirmable address
	// in this flow, so the account starts out anonymous.
	account := &entity.Account{DisplayName: profile.DisplayName}
	link = &entity.ProviderLink{
		ProviderUserID: providerUserID,
		Bundle:         bundle,
	}
	if err := s.linkRepo.CreateWithAccount(account, link); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return s.recoverLostRace(providerUserID, bundle)
		}
		return nil, err
	}
	log.Printf("[LinkService] provisioned account ID=%d from provider profile", account.ID)

	sessionID, err := s.sessionRepo.Create(ctx, account.ID, s.sessionTTL)
	if err != nil {
		return nil, err
	}

	return &CallbackResult{
		Outcome:   CallbackCreated,
		Link:      link,
		Account:   account,
		SessionID: sessionID,
	}, nil
}

// FreshBundleForAccount resolves the account's provider link and returns a
// usable token bundle for it. apperrors.ErrNotFound when the account has no
// provider link.
func (s *LinkService) FreshBundleForAccount(ctx context.Context, accountID uint) (entity.TokenBundle, error) {
	link, err := s.linkRepo.GetByAccountID(accountID)
	if err != nil {
		return entity.TokenBundle{}, err
	}
	return s.FreshBundle(ctx, link)
}

// FreshBundle returns a usable token bundle for the link, performing the
// refresh-token grant and replacing the stored bundle when the current one
// is stale. ErrTokenExpired when stale with no refresh token.
func (s *LinkService) FreshBundle(ctx context.Context, link *entity.ProviderLink) (entity.TokenBundle, error) {
	if link.Bundle.IsFresh(time.Now(), entity.DefaultFreshnessTolerance) {
		return link.Bundle, nil
	}
	if link.Bundle.RefreshToken == "" {
		return entity.TokenBundle{}, fmt.Errorf("%w: no refresh token stored", ErrTokenExpired)
	}

	bundle, err := s.providerClient.Refresh(ctx, link.Bundle.RefreshToken)
	if err != nil {
		return entity.TokenBundle{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if err := s.linkRepo.UpdateBundle(link.ID, bundle); err != nil {
		return entity.TokenBundle{}, err
	}
	link.Bundle = bundle
	return bundle, nil
}

func (s *LinkService) replaceBundle(link *entity.ProviderLink, bundle entity.TokenBundle) (*CallbackResult, error) {
	if err := s.linkRepo.UpdateBundle(link.ID, bundle); err != nil {
		return nil, err
	}
	link.Bundle = bundle
	return &CallbackResult{Outcome: CallbackUpdated, Link: link}, nil
}

// recoverLostRace handles a concurrent callback creating the same link
// first: re-read the winner's row and apply our exchange result to it.
func (s *LinkService) recoverLostRace(providerUserID string, bundle entity.TokenBundle) (*CallbackResult, error) {
	link, err := s.linkRepo.GetByProviderUserID(providerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read provider link after duplicate create: %w", err)
	}
	return s.replaceBundle(link, bundle)
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: redirect url must be absolute", apperrors.ErrValidation)
	}
	return nil
}
