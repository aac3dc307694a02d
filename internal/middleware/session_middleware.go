package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bikedataproject/identity-api/internal/domain/entity"
	"github.com/bikedataproject/identity-api/internal/service"
)

// AccountContextKey is where the resolved account lives in the gin context.
const AccountContextKey = "currentAccount"

// SessionMiddleware resolves the session cookie to an account and exposes it
// to handlers. Requests without a valid session pass through anonymous;
// handlers that require a signed-in caller check for themselves.
type SessionMiddleware struct {
	accounts   *service.AccountService
	cookieName string
}

func NewSessionMiddleware(accounts *service.AccountService, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{
		accounts:   accounts,
		cookieName: cookieName,
	}
}

// Load resolves the session, if any. A session pointing at a missing
// account indicates store corruption and fails the request.
func (m *SessionMiddleware) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(m.cookieName)
		if err != nil || sessionID == "" {
			c.Next()
			return
		}

		account, err := m.accounts.CurrentAccount(c.Request.Context(), sessionID)
		if err != nil {
			log.Printf("[SessionMiddleware] failed to resolve session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "session_resolution_failed"})
			c.Abort()
			return
		}
		if account != nil {
			c.Set(AccountContextKey, account)
		}
		c.Next()
	}
}

// AccountFromContext returns the signed-in account, or nil.
func AccountFromContext(c *gin.Context) *entity.Account {
	value, exists := c.Get(AccountContextKey)
	if !exists {
		return nil
	}
	account, ok := value.(*entity.Account)
	if !ok {
		return nil
	}
	return account
}
