package middleware

import (
	"net/http"
	"strings"

	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/autovoyage/service-rental/internal/platform/response"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// CookieSettings describes the session cookie carrying the identity token.
type CookieSettings struct {
	Name   string
	MaxAge int // seconds
	Secure bool
}

// SetSessionCookie writes the HttpOnly, SameSite=Strict session cookie.
func (s CookieSettings) SetSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(s.Name, token, s.MaxAge, "/", "", s.Secure, true)
}

// ClearSessionCookie expires the session cookie.
func (s CookieSettings) ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(s.Name, "", -1, "/", "", s.Secure, true)
}

// AuthMiddleware resolves the caller identity from the session cookie, then from
// "Authorization: Bearer <token>". Requests without a verifiable token get 401.
func AuthMiddleware(verifier auth.TokenVerifier, cookie CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, cookie.Name)
		if token == "" {
			response.Error(c, apperror.NewUnauthorizedError("No valid authorization token provided"))
			return
		}

		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			cookie.ClearSessionCookie(c)
			response.Error(c, apperror.NewUnauthorizedError("Invalid or expired token"))
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// GetIdentity returns the identity resolved by AuthMiddleware.
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok && !id.IsZero()
}

func extractToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v
		}
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
