package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bikedataproject/identity-api/internal/config"
	apperrors "github.com/bikedataproject/identity-api/internal/pkg/errors"
	"github.com/bikedataproject/identity-api/internal/service"
)

// AccountHandler exposes registration, email confirmation and password
// sign-in over HTTP.
type AccountHandler struct {
	accountService *service.AccountService
	sessionCfg     config.SessionConfig
}

func NewAccountHandler(accountService *service.AccountService, sessionCfg config.SessionConfig) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		sessionCfg:     sessionCfg,
	}
}

// RegisterRequest starts a registration. DisplayName and Password are
// optional; accounts without a password sign in through the provider.
type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	ConfirmEmailURL string `json:"confirm_email_url" binding:"required,url"`
	DisplayName     string `json:"display_name" binding:"omitempty,max=100"`
	Password        string `json:"password" binding:"omitempty,min=6,max=50"`
}

// LoginRequest signs in with the local credential.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /provider/register and POST /account/register.
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation"})
		return
	}

	err := h.accountService.Register(c.Request.Context(), service.RegisterInput{
		Email:           req.Email,
		ConfirmEmailURL: req.ConfirmEmailURL,
		DisplayName:     req.DisplayName,
		Password:        req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation"})
		case errors.Is(err, apperrors.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "error_type": "conflict"})
		default:
			log.Printf("[AccountHandler] register failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "internal_error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"email_sent": true})
}

// ConfirmEmail handles GET /account/confirmemail?token=&email=.
// Bad tokens and unknown accounts get the same response on purpose.
func (h *AccountHandler) ConfirmEmail(c *gin.Context) {
	token := c.Query("token")
	email := c.Query("email")
	if token == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to confirm email", "error_type": "confirmation_failed"})
		return
	}

	account, sessionID, err := h.accountService.ConfirmEmail(c.Request.Context(), token, email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedToken),
			errors.Is(err, service.ErrUnknownAccount),
			errors.Is(err, service.ErrInvalidOrExpiredToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to confirm email", "error_type": "confirmation_failed"})
		default:
			log.Printf("[AccountHandler] confirm email failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "internal_error"})
		}
		return
	}

	setSessionCookie(c, h.sessionCfg, sessionID)
	c.JSON(http.StatusOK, gin.H{"confirmed": true, "account_id": account.ID})
}

// Login handles POST /account/login.
func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation"})
		return
	}

	account, sessionID, err := h.accountService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid login attempt", "error_type": "unauthorized"})
			return
		}
		log.Printf("[AccountHandler] login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "internal_error"})
		return
	}

	setSessionCookie(c, h.sessionCfg, sessionID)
	c.JSON(http.StatusOK, gin.H{"account_id": account.ID})
}

// Logout handles POST /account/logout.
func (h *AccountHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(h.sessionCfg.CookieName)
	if err == nil && sessionID != "" {
		if err := h.accountService.Logout(c.Request.Context(), sessionID); err != nil {
			log.Printf("[AccountHandler] logout failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "error_type": "internal_error"})
			return
		}
	}

	clearSessionCookie(c, h.sessionCfg)
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
