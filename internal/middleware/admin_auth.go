package middleware

import (
	"net/http"

	"crm-agent-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminAuth 检查调用方是否具有管理员角色。
// 此中间件必须在 OptionalAuth 之后使用。
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(ClaimsKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "authorization required", "data": nil})
			return
		}

		claims, ok := v.(*token.CustomClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "invalid claims", "data": nil})
			return
		}

		if claims.Role != token.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "admin role required", "data": nil})
			return
		}

		c.Next()
	}
}
