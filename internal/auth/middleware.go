package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CookieName = "alertbot_session"

	ctxUser = "auth.user"
	ctxRole = "auth.role"
)

// RequireSession пропускает запрос с действующим токеном из cookie
// или заголовка Authorization: Bearer.
func RequireSession(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(CookieName)
		if err != nil || raw == "" {
			raw = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Требуется вход"})
			return
		}
		claims, err := issuer.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": ErrInvalidToken.Error()})
			return
		}
		c.Set(ctxUser, claims.Subject)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin ставится после RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "error", "message": "Нужны права администратора"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) string {
	return c.GetString(ctxUser)
}
