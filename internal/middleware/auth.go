// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"net/http"
	"strings"

	"devtone-chat-go/internal/service"
	"devtone-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AgentAuthMiddleware 创建一个 Gin 中间件，用于坐席路由的 JWT 认证。
// 它从请求头中提取 token，验证其有效性，并将坐席对象存入 Gin 的上下文中。
func AgentAuthMiddleware(jwtManager *token.JWTManager, agentService service.AgentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		// 根据 token 中的用户名确认坐席仍然存在
		agent, err := agentService.GetProfile(c.Request.Context(), claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "坐席不存在"})
			return
		}

		c.Set("agent", agent)
		c.Set("claims", claims)
		c.Next()
	}
}
