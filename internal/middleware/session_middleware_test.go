package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
	"github.com/bikedataproject/identity-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

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

func doProbe(router *gin.Engine, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoadResolvesAccount(t *testing.T) {
	accounts := new(MockAccountRepository)
	sessions := new(MockSessionRepository)
	account := &entity.Account{ID: 7, Email: "new@user.com"}

	sessions.On("GetAccountID", mock.Anything, "session-abc").Return(uint(7), nil)
	accounts.On("GetByID", uint(7)).Return(account, nil)

	issuer, err := service.NewConfirmationIssuer("test-signing-key", time.Hour)
	require.NoError(t, err)
	svc, err := service.NewAccountService(accounts, sessions, &service.NoopEmailService{}, issuer, time.Hour)
	require.NoError(t, err)

	var seen *entity.Account
	router := gin.New()
	router.Use(NewSessionMiddleware(svc, "bdp_session").Load())
	router.GET("/probe", func(c *gin.Context) {
		seen = AccountFromContext(c)
		c.Status(http.StatusOK)
	})

	w := doProbe(router, &http.Cookie{Name: "bdp_session", Value: "session-abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, account, seen)
}

func TestLoadPassesAnonymous(t *testing.T) {
	accounts := new(MockAccountRepository)
	sessions := new(MockSessionRepository)

	issuer, err := service.NewConfirmationIssuer("test-signing-key", time.Hour)
	require.NoError(t, err)
	svc, err := service.NewAccountService(accounts, sessions, &service.NoopEmailService{}, issuer, time.Hour)
	require.NoError(t, err)

	var seen *entity.Account
	router := gin.New()
	router.Use(NewSessionMiddleware(svc, "bdp_session").Load())
	router.GET("/probe", func(c *gin.Context) {
		seen = AccountFromContext(c)
		c.Status(http.StatusOK)
	})

	// No cookie at all.
	w := doProbe(router, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, seen)

	// Expired session resolves to nobody but still passes through.
	sessions.On("GetAccountID", mock.Anything, "expired").Return(uint(0), apperrors.ErrNotFound)
	w = doProbe(router, &http.Cookie{Name: "bdp_session", Value: "expired"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, seen)
}

func TestLoadFailsOnInconsistentSession(t *testing.T) {
	accounts := new(MockAccountRepository)
	sessions := new(MockSessionRepository)

	sessions.On("GetAccountID", mock.Anything, "session-abc").Return(uint(7), nil)
	accounts.On("GetByID", uint(7)).Return(nil, apperrors.ErrNotFound)

	issuer, err := service.NewConfirmationIssuer("test-signing-key", time.Hour)
	require.NoError(t, err)
	svc, err := service.NewAccountService(accounts, sessions, &service.NoopEmailService{}, issuer, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(NewSessionMiddleware(svc, "bdp_session").Load())
	handlerReached := false
	router.GET("/probe", func(c *gin.Context) {
		handlerReached = true
		c.Status(http.StatusOK)
	})

	w := doProbe(router, &http.Cookie{Name: "bdp_session", Value: "session-abc"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, handlerReached)
}
