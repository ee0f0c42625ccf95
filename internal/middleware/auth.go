// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// ClaimsKey 是 claims 在 gin 上下文中的键。
const ClaimsKey = "claims"

// OptionalAuth 解析可选的 JWT。没有令牌时直接放行，由下游按请求体中的身份处理；
// 令牌存在但无效时返回 401。浏览器的 WebSocket 无法设置请求头，因此也接受 token 查询参数。
func OptionalAuth(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, present := extractToken(c)
		if !present {
			c.Next()
			return
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid authorization header", "data": nil})
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("[Auth] token 校验失败: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid or expired token", "data": nil})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// extractToken 返回令牌以及请求是否声明了令牌。
func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			return "", true
		}
		return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix)), true
	}
	if t := c.Query("token"); t != "" {
		return t, true
	}
	return "", false
}
