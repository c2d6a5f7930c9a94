package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumate/internal/auth"
)

// PasswordGateMiddleware 用共享口令保护业务接口。
// 未配置口令哈希时直接放行，适用于内网部署。
func PasswordGateMiddleware(passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if passwordHash == "" {
			c.Next()
			return
		}

		password := c.GetHeader("X-API-Password")
		if password == "" || !auth.CheckPasswordHash(password, passwordHash) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Next()
	}
}
