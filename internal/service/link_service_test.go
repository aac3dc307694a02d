package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
	"github.com/bikedataproject/identity-api/internal/provider"
)

// ============================================================================
// Mocks
// ============================================================================

// MockAccountRepository implements repository.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(account *entity.Account) error {
	args := m.Called(account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(id uint) (*entity.Account, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByEmail(email string) (*entity.Account, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(account *entity.Account) error {
	args := m.Called(account)
	return args.Error(0)
}

func (m *MockAccountRepository) MarkEmailConfirmed(accountID uint) error {
	args := m.Called(accountID)
	return args.Error(0)
}

// MockProviderLinkRepository implements repository.ProviderLinkRepository
type MockProviderLinkRepository struct {
	mock.Mock
}

func (m *MockProviderLinkRepository) Create(link *entity.ProviderLink) error {
	args := m.Called(link)
	return args.Error(0)
}

func (m *MockProviderLinkRepository) CreateWithAccount(account *entity.Account, link *entity.ProviderLink) error {
	args := m.Called(account, link)
	return args.Error(0)
}

func (m *MockProviderLinkRepository) GetByProviderUserID(providerUserID string) (*entity.ProviderLink, error) {
	args := m.Called(providerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProviderLink), args.Error(1)
}

func (m *MockProviderLinkRepository) GetByAccountID(accountID uint) (*entity.ProviderLink, error) {
	args := m.Called(accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.ProviderLink), args.Error(1)
}

func (m *MockProviderLinkRepository) UpdateBundle(linkID uint, bundle entity.TokenBundle) error {
	args := m.Called(linkID, bundle)
	return args.Error(0)
}

// MockSessionRepository implements repository.SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, accountID uint, ttl time.Duration) (string, error) {
	args := m.Called(ctx, accountID, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockSessionRepository) GetAccountID(ctx context.Context, sessionID string) (uint, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockSessionRepository) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// MockProviderClient implements provider.Client
type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) AuthCodeURL(redirectURL string) string {
	args := m.Called(redirectURL)
	return args.String(0)
}

func (m *MockProviderClient) ExchangeCode(ctx context.Context, code, redirectURL string) (entity.TokenBundle, string, error) {
	args := m.Called(ctx, code, redirectURL)
	return args.Get(0).(entity.TokenBundle), args.String(1), args.Error(2)
}

func (m *MockProviderClient) Refresh(ctx context.Context, refreshToken string) (entity.TokenBundle, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(entity.TokenBundle), args.Error(1)
}

func (m *MockProviderClient) FetchProfile(ctx context.Context, bundle entity.TokenBundle) (*provider.Profile, error) {
	args := m.Called(ctx, bundle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Profile), args.Error(1)
}

// ============================================================================
// Helpers
// ============================================================================

type linkServiceMocks struct {
	accounts *MockAccountRepository
	links    *MockProviderLinkRepository
	sessions *MockSessionRepository
	client   *MockProviderClient
}

func newLinkService(t *testing.T) (*LinkService, *linkServiceMocks) {
	t.Helper()
	m := &linkServiceMocks{
		accounts: new(MockAccountRepository),
		links:    new(MockProviderLinkRepository),
		sessions: new(MockSessionRepository),
		client:   new(MockProviderClient),
	}
	svc, err := NewLinkService(m.accounts, m.links, m.sessions, m.client, time.Hour)
	require.NoError(t, err)
	return svc, m
}

func testBundle(access string) entity.TokenBundle {
	return entity.TokenBundle{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		TokenType:    "Bearer",
		Scope:        "activity profile location",
		ExpiresIn:    28800,
		IssuedAt:     time.Now(),
	}
}

// ============================================================================
// Authorize
// ============================================================================

func TestAuthorize(t *testing.T) {
	svc, m := newLinkService(t)
	m.client.On("AuthCodeURL", "https://app.example.com/cb").
		Return("https://www.fitbit.com/oauth2/authorize?client_id=abc")

	url, err := svc.Authorize("https://app.example.com/cb")
	require.NoError(t, err)
	assert.Contains(t, url, "fitbit.com/oauth2/authorize")
	m.client.AssertExpectations(t)
}

func TestAuthorizeInvalidRedirect(t *testing.T) {
	svc, m := newLinkService(t)

	for _, redirect := range []string{"", "   ", "not-a-url", "/relative/path", "://missing-scheme"} {
		_, err := svc.Authorize(redirect)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "redirect %q", redirect)
	}
	m.client.AssertNotCalled(t, "AuthCodeURL", mock.Anything)
}

// ============================================================================
// Callback
// ============================================================================

func TestCallbackUpdatesExistingLink(t *testing.T) {
	svc, m := newLinkService(t)
	bundle := testBundle("second-exchange")
	existing := &entity.ProviderLink{
		ID:             3,
		AccountID:      9,
		ProviderUserID: "fb-123",
		Bundle:         testBundle("first-exchange"),
		AllSynced:      true,
	}

	m.client.On("ExchangeCode", mock.Anything, "validcode", "https://app/cb").
		Return(bundle, "fb-123", nil)
	m.links.On("GetByProviderUserID", "fb-123").Return(existing, nil)
	m.links.On("UpdateBundle", uint(3), bundle).Return(nil)

	result, err := svc.Callback(context.Background(), "validcode", "https://app/cb", nil)
	require.NoError(t, err)
	assert.Equal(t, CallbackUpdated, result.Outcome)
	assert.Equal(t, "second-exchange", result.Link.Bundle.AccessToken)
	// Sync markers survive a token update untouched.
	assert.True(t, result.Link.AllSynced)

	m.links.AssertNotCalled(t, "Create", mock.Anything)
	m.links.AssertNotCalled(t, "CreateWithAccount", mock.Anything, mock.Anything)
	m.links.AssertExpectations(t)
}

func TestCallbackReplayIsIdempotent(t *testing.T) {
	svc, m := newLinkService(t)
	bundle := testBundle("replayed")
	existing := &entity.ProviderLink{ID: 3, AccountID: 9, ProviderUserID: "fb-123"}

	m.client.On("ExchangeCode", mock.Anything, "validcode", "https://app/cb").
		Return(bundle, "fb-123", nil).Twice()
	m.links.On("GetByProviderUserID", "fb-123").Return(existing, nil).Twice()
	m.links.On("UpdateBundle", uint(3), bundle).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		result, err := svc.Callback(context.Background(), "validcode", "https://app/cb", nil)
		require.NoError(t, err)
		assert.Equal(t, CallbackUpdated, result.Outcome)
	}

	m.links.AssertNotCalled(t, "Create", mock.Anything)
	m.links.AssertExpectations(t)
}

func TestCallbackLinksToSignedInAccount(t *testing.T) {
	svc, m := newLinkService(t)
	bundle := testBundle("fresh")
	current := &entity.Account{ID: 42, Email: "rider@example.com"}

	m.client.On("ExchangeCode", mock.Anything, "validcode", "https://app/cb").
		Return(bundle, "fb-777", nil)
	m.links.On("GetByProviderUserID", "fb-777").Return(nil, apperrors.ErrNotFound)
	m.links.On("Create", mock.MatchedBy(func(link *entity.ProviderLink) bool {
		return link.AccountID == 42 && link.ProviderUserID == "fb-777" && link.Bundle.AccessToken == "fresh"
	})).Return(nil)

	result, err := svc.Callback(context.Background(), "validcode", "https://app/cb", current)
	require.NoError(t, err)
	assert.Equal(t, CallbackLinked, result.Outcome)
	assert.Equal(t, current, result.Account)
	assert.Empty(t, result.SessionID)

	m.client.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
	m.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	m.links.AssertExpectations(t)
}

func TestCallbackProvisionsAnonymousAccount(t *testing.T) {
	svc, m := newLinkService(t)
	bundle := testBundle("fresh")

	m.client.On("ExchangeCode", mock.Anything, "validcode", "https://app/cb").
		Return(bundle, "fb-123", nil)
	m.links.On("GetByProviderUserID", "fb-123").Return(nil, apperrors.ErrNotFound)
	m.client.On("FetchProfile", mock.Anything, bundle).
		Return(&provider.Profile{UserID: "fb-123", DisplayName: "Rider"}, nil)
	m.links.On("CreateWithAccount",
		mock.MatchedBy(func(account *entity.Account) bool {
			return account.Email == "" && account.DisplayName == "Rider"
		}),
		mock.MatchedBy(func(link *entity.ProviderLink) bool {
			return link.ProviderUserID == "fb-123"
		}),
	).Run(func(args mock.Arguments) {
		account := args.Get(0).(*entity.Account)
		account.ID = 55
		args.Get(1).(*entity.ProviderLink).AccountID = 55
	}).Return(nil)
	m.sessions.On("Create", mock.Anything, uint(55), time.Hour).Return("session-abc", nil)

	result, err := svc.Callback(context.Background(), "validcode", "https://app/cb", nil)
	require.NoError(t, err)
	assert.Equal(t, CallbackCreated, result.Outcome)
	assert.Equal(t, uint(55), result.Account.ID)
	assert.Equal(t, "session-abc", result.SessionID)

	m.links.AssertExpectations(t)
	m.sessions.AssertExpectations(t)
}

func TestCallbackExchangeFailure(t *testing.T) {
	svc, m := newLinkService(t)

	m.client.On("ExchangeCode", mock.Anything, "badcode", "https://app/cb").
		Return(entity.TokenBundle{}, "", assert.AnError)

	_, err := svc.Callback(context.Background(), "badcode", "https://app/cb", nil)
	assert.ErrorIs(t, err, ErrExchangeFailed)

	m.links.AssertNotCalled(t, "GetByProviderUserID", mock.Anything)
}

func TestCallbackValidation(t *testing.T) {
	svc, m := newLinkService(t)

	_, err := svc.Callback(context.Background(), "", "https://app/cb", nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Callback(context.Background(), "code", "not-a-url", nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	m.client.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything, mock.Anything)
}

// A concurrent callback won the create race: the loser re-reads the
// winner's row and lands on the update path instead of failing.
func TestCallbackLostCreateRaceBecomesUpdate(t *testing.T) {
	svc, m := newLinkService(t)
	bundle := testBundle("loser")
	winner := &entity.ProviderLink{ID: 8, AccountID: 70, ProviderUserID: "fb-123"}

	m.client.On("ExchangeCode", mock.Anything, "validcode", "https://app/cb").
		Return(bundle, "fb-123", nil)
	m.links.On("GetByProviderUserID", "fb-123").Return(nil, apperrors.ErrNotFound).Once()
	m.client.On("FetchProfile", mock.Anything, bundle).
		Return(&provider.Profile{UserID: "fb-123", DisplayName: "Rider"}, nil)
	m.links.On("CreateWithAccount", mock.Anything, mock.Anything).Return(apperrors.ErrDuplicate)
	m.links.On("GetByProviderUserID", "fb-123").Return(winner, nil).Once()
	m.links.On("UpdateBundle", uint(8), bundle).Return(nil)

	result, err := svc.Callback(context.Background(), "validcode", "https://app/cb", nil)
	require.NoError(t, err)
	assert.Equal(t, CallbackUpdated, result.Outcome)
	assert.Empty(t, result.SessionID)

	m.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	m.links.AssertExpectations(t)
}

func TestCallbackLostLinkRaceBecomesUpdate(t *testing.T) {
	svc, m := newLinkService(t)
	bundle := testBundle("loser")
	current := &entity.Account{ID: 42}
	winner := &entity.ProviderLink{ID: 8, AccountID: 70, ProviderUserID: "fb-123"}

	m.client.On("ExchangeCode", mock.Anything, "validcode", "https://app/cb").
		Return(bundle, "fb-123", nil)
	m.links.On("GetByProviderUserID", "fb-123").Return(nil, apperrors.ErrNotFound).Once()
	m.links.On("Create", mock.Anything).Return(apperrors.ErrDuplicate)
	m.links.On("GetByProviderUserID", "fb-123").Return(winner, nil).Once()
	m.links.On("UpdateBundle", uint(8), bundle).Return(nil)

	result, err := svc.Callback(context.Background(), "validcode", "https://app/cb", current)
	require.NoError(t, err)
	assert.Equal(t, CallbackUpdated, result.Outcome)
	m.links.AssertExpectations(t)
}

// ============================================================================
// FreshBundle
// ============================================================================

func TestFreshBundleStillFresh(t *testing.T) {
	svc, m := newLinkService(t)
	link := &entity.ProviderLink{ID: 1, Bundle: testBundle("fresh")}

	bundle, err := svc.FreshBundle(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, "fresh", bundle.AccessToken)

	m.client.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestFreshBundleRefreshesStale(t *testing.T) {
	svc, m := newLinkService(t)
	stale := testBundle("stale")
	stale.IssuedAt = time.Now().Add(-24 * time.Hour)
	link := &entity.ProviderLink{ID: 1, Bundle: stale}
	replacement := testBundle("replacement")

	m.client.On("Refresh", mock.Anything, stale.RefreshToken).Return(replacement, nil)
	m.links.On("UpdateBundle", uint(1), replacement).Return(nil)

	bundle, err := svc.FreshBundle(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, "replacement", bundle.AccessToken)
	assert.Equal(t, replacement, link.Bundle)
	m.links.AssertExpectations(t)
}

func TestFreshBundleForAccount(t *testing.T) {
	svc, m := newLinkService(t)
	link := &entity.ProviderLink{ID: 1, AccountID: 42, Bundle: testBundle("fresh")}

	m.links.On("GetByAccountID", uint(42)).Return(link, nil)

	bundle, err := svc.FreshBundleForAccount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "fresh", bundle.AccessToken)

	m.links.On("GetByAccountID", uint(99)).Return(nil, apperrors.ErrNotFound)
	_, err = svc.FreshBundleForAccount(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFreshBundleNoRefreshToken(t *testing.T) {
	svc, _ := newLinkService(t)
	stale := testBundle("stale")
	stale.IssuedAt = time.Now().Add(-24 * time.Hour)
	stale.RefreshToken = ""
	link := &entity.ProviderLink{ID: 1, Bundle: stale}

	_, err := svc.FreshBundle(context.Background(), link)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
