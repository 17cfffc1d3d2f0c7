package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/autovoyage/service-rental/internal/platform/middleware"
	"github.com/autovoyage/service-rental/internal/platform/response"
)

// LoginRequest carries the identity provider token to exchange for a session cookie.
type LoginRequest struct {
	IDToken string `json:"idToken"`
}

// AuthHandler exchanges identity tokens for session cookies.
type AuthHandler struct {
	verifier auth.TokenVerifier
	cookie   middleware.CookieSettings
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(verifier auth.TokenVerifier, cookie middleware.CookieSettings, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{verifier: verifier, cookie: cookie, logger: logger}
}

// RegisterRoutes registers the auth routes. loginLimit is applied to login only.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, authMW, loginLimit gin.HandlerFunc) {
	a := r.Group("/auth")
	{
		a.POST("/login", loginLimit, h.Login)
		a.POST("/logout", h.Logout)
		a.GET("/me", authMW, h.Me)
	}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" {
		response.BadRequest(c, "ID token is required")
		return
	}

	id, err := h.verifier.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		h.logger.Info("login rejected", zap.Error(err))
		response.Unauthorized(c, "Invalid or expired token")
		return
	}

	h.cookie.SetSessionCookie(c, req.IDToken)
	h.logger.Info("user logged in", zap.String("email", id.Email))
	response.Message(c, "Login successful", gin.H{"user": id})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookie.ClearSessionCookie(c)
	response.Message(c, "Logged out successfully", nil)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := middleware.GetIdentity(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	response.Success(c, gin.H{"success": true, "user": caller})
}
