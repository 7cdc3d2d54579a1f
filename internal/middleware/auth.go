package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dak-1306/pyctalk-sub001/internal/service"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

// ContextUserKey - ключ, под которым аутентифицированное имя пользователя
// лежит в контексте gin
const ContextUserKey = "username"

type AuthMiddleware struct {
	verifier service.TokenVerifier
	log      logger.Logger
}

func NewAuthMiddleware(verifier service.TokenVerifier, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		log:      log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		username, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, username)
		c.Next()
	}
}

// BearerToken достает токен из заголовка Authorization или, для websocket
// рукопожатий, из query-параметра token
func BearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
