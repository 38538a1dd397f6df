package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de autenticación.
type AuthHandler struct {
	logger    *zap.Logger
	userServ  *service.UserService
	jwtServ   *service.JWTService
	twoFactor *service.TwoFactorService
	activity  *service.ActivityRecorder
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(
	logger *zap.Logger,
	userServ *service.UserService,
	jwtServ *service.JWTService,
	twoFactor *service.TwoFactorService,
	activity *service.ActivityRecorder,
) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		userServ:  userServ,
		jwtServ:   jwtServ,
		twoFactor: twoFactor,
		activity:  activity,
	}
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email or username required"})
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), identifier, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	if user.TwoFactorEnabled {
		sessionID, err := h.twoFactor.Begin(c.Request.Context(), user)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrRateLimited):
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			case errors.Is(err, service.ErrEmailSendFailure):
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "code delivery unavailable"})
			default:
				h.logger.Error("begin 2fa failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start verification"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"requires_two_factor": true,
			"session_id":          sessionID,
		})
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	h.record(c, user, domain.ActionLogin, "login")
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// VerifyTwoFactor maneja POST /auth/verify-2fa.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
		Code      string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid 2fa request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	userID, err := h.twoFactor.Verify(c.Request.Context(), req.SessionID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeNotFound), errors.Is(err, service.ErrChallengeExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		case errors.Is(err, service.ErrCodeInvalid):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid verification code"})
		case errors.Is(err, service.ErrTooManyAttempts):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "too many attempts"})
		default:
			h.logger.Error("verify 2fa failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify code"})
		}
		return
	}

	user, err := h.userServ.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("load user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify code"})
		return
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	h.record(c, user, domain.ActionLogin, "login with 2fa")
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// RefreshToken maneja POST /auth/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	tokens, err := h.jwtServ.RefreshPair(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
		return
	}
	_ = h.jwtServ.RevokeRefresh(req.RefreshToken)
	if user, ok := AuthUser(c); ok {
		h.record(c, user, domain.ActionLogout, "logout")
	}
	c.Status(http.StatusNoContent)
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("load user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// CreateUser maneja POST /admin/users.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req struct {
		Email            string `json:"email" binding:"required,email"`
		Username         string `json:"username"`
		DisplayName      string `json:"display_name"`
		Password         string `json:"password" binding:"required"`
		Role             string `json:"role"`
		TwoFactorEnabled bool   `json:"two_factor_enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create user request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.userServ.CreateUser(c.Request.Context(), service.CreateUserInput{
		Email:            req.Email,
		Username:         req.Username,
		DisplayName:      req.DisplayName,
		Password:         req.Password,
		Role:             req.Role,
		TwoFactorEnabled: req.TwoFactorEnabled,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("create user failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// ListUsers maneja GET /admin/users.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.userServ.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *AuthHandler) issueTokens(user domain.User) (service.TokenPair, error) {
	if h.jwtServ == nil {
		return service.TokenPair{}, errors.New("jwt not configured")
	}
	return h.jwtServ.GeneratePair(user)
}

func (h *AuthHandler) record(c *gin.Context, user domain.User, action domain.ActivityAction, details string) {
	if h.activity == nil {
		return
	}
	h.activity.Record(domain.ActivityEntry{
		UserID:    user.ID,
		UserName:  user.DisplayName,
		UserEmail: user.Email,
		Action:    action,
		Details:   details,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
