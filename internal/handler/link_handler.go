package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bikedataproject/identity-api/internal/config"
	"github.com/bikedataproject/identity-api/internal/middleware"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
	"github.com/bikedataproject/identity-api/internal/service"
)

// LinkHandler exposes the provider authorization flow over HTTP.
type LinkHandler struct {
	linkService *service.LinkService
	sessionCfg  config.SessionConfig
}

func NewLinkHandler(linkService *service.LinkService, sessionCfg config.SessionConfig) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
		sessionCfg:  sessionCfg,
	}
}

// AuthorizeRequest asks for the provider authorization URL.
type AuthorizeRequest struct {
	RedirectURL string `json:"redirect_url" binding:"required"`
}

// AuthorizeResponse carries the URL the frontend should redirect to.
type AuthorizeResponse struct {
	URL string `json:"url"`
}

// Authorize handles POST /provider/authorize.
func (h *LinkHandler) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation"})
		return
	}

	authorizeURL, err := h.linkService.Authorize(req.RedirectURL)
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid redirect url", "error_type": "validation"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, AuthorizeResponse{URL: authorizeURL})
}

// Callback handles GET /provider/callback?code=&redirect_url=.
func (h *LinkHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	redirectURL := c.Query("redirect_url")
	current := middleware.AccountFromContext(c)

	result, err := h.linkService.Callback(c.Request.Context(), code, redirectURL, current)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation"})
		case errors.Is(err, service.ErrExchangeFailed):
			c.JSON(http.StatusNotFound, gin.H{"error": "Code exchange failed", "error_type": "exchange_failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "internal_error"})
		}
		return
	}

	if result.SessionID != "" {
		setSessionCookie(c, h.sessionCfg, result.SessionID)
	}

	c.JSON(http.StatusOK, gin.H{"result": string(result.Outcome)})
}

// Token handles GET /provider/token. Returns a fresh provider access token
// for the signed-in account, refreshing the stored bundle when needed.
func (h *LinkHandler) Token(c *gin.Context) {
	current := middleware.AccountFromContext(c)
	if current == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "error_type": "unauthorized"})
		return
	}

	bundle, err := h.linkService.FreshBundleForAccount(c.Request.Context(), current.ID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "No provider link", "error_type": "not_found"})
		case errors.Is(err, service.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Provider authorization expired", "error_type": "token_expired"})
		case errors.Is(err, service.ErrExchangeFailed):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Provider refresh failed", "error_type": "exchange_failed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "internal_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": bundle.AccessToken,
		"token_type":   bundle.TokenType,
		"scope":        bundle.Scope,
		"expires_in":   bundle.ExpiresIn,
	})
}

func setSessionCookie(c *gin.Context, cfg config.SessionConfig, sessionID string) {
	maxAge := int(cfg.TTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, sessionID, maxAge, "/", "", cfg.Secure, true)
}

func clearSessionCookie(c *gin.Context, cfg config.SessionConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.Secure, true)
}
