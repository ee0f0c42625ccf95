// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"crm-agent-go/pkg/errx"
	"crm-agent-go/pkg/log"
	"crm-agent-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

// respondError 把错误映射为状态码和安全的提示信息，内部错误只写日志。
func respondError(c *gin.Context, err error) {
	status, message := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("[Handler] %s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		log.Warnf("[Handler] %s %s 请求被拒绝: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	respond(c, status, message, nil)
}

// rawIdentity 优先使用令牌中的身份，没有令牌时退回到请求体里声明的 userId。
func rawIdentity(c *gin.Context, declared string) string {
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(*token.CustomClaims); ok && claims.Identity != "" {
			return claims.Identity
		}
	}
	return declared
}
