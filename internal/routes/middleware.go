package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-task-flow/backend/internal/services"
)

// AuthMiddleware はセッションクッキーを検証し、ユーザー情報をコンテキストに設定するミドルウェアです。
// クッキーがない場合は Authorization ヘッダーのBearerトークンも受け付けます。
// クッキーの欠落と検証失敗は同じレスポンスになります（理由は区別させません）。
func AuthMiddleware(sessionService *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie("session")
		if err != nil || tokenString == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				tokenString = auth[len("Bearer "):]
			}
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		claims, err := sessionService.VerifySession(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}
