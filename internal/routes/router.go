// Package routesはroutingを行います。
package routes

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go-task-flow/backend/internal/cache"
	"go-task-flow/backend/internal/handlers"
	"go-task-flow/backend/internal/models"
	"go-task-flow/backend/internal/realtime"
	"go-task-flow/backend/internal/repositories"
	"go-task-flow/backend/internal/services"
	"go-task-flow/backend/internal/suggest"
)

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
// rdbがnilの場合、タスクリストのキャッシュは無効になります。
func SetupRouter(db *sql.DB, rdb *redis.Client, suggestClient *suggest.Client) *gin.Engine {
	r := gin.Default()

	// CORS対策
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = true
	r.Use(cors.New(config))

	// リポジトリ
	taskRepo := repositories.NewTaskRepository(db)
	userRepo := repositories.NewUserRepository(db)

	// キャッシュ (Redisが無効な場合はnilのまま)
	var listCache services.ListCache
	if rdb != nil {
		listCache = cache.New(rdb, "taskflow:", cache.DefaultTTL)
	}

	// リアルタイム購読はストアの最新スナップショットを配信する
	broker := realtime.NewBroker(func(ctx context.Context, userID int) ([]*models.Task, error) {
		return taskRepo.FindByUserID(userID)
	})

	// サービス
	taskService := services.NewTaskService(taskRepo, listCache, broker)
	userService := services.NewUserService(userRepo)
	sessionService := services.NewSessionService()

	// ハンドラー
	userHandler := handlers.NewUserHandler(userService, sessionService)
	taskHandler := handlers.NewTaskHandler(taskService)
	functionHandler := handlers.NewFunctionHandler(taskService)
	streamHandler := handlers.NewStreamHandler(broker)
	suggestHandler := handlers.NewSuggestHandler(suggestClient)

	// ルーティング
	r.GET("/api/dbcheck", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Database connection failed", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Database connection is healthy"})
	})
	r.POST("/api/register", userHandler.RegisterHandler)
	r.POST("/api/login", userHandler.LoginHandler)

	authorized := r.Group("/")
	authorized.Use(AuthMiddleware(sessionService))
	{
		authorized.POST("/api/tasks", taskHandler.AddTaskHandler)
		authorized.PUT("/api/tasks/:id", taskHandler.UpdateTaskHandler)
		authorized.DELETE("/api/tasks/:id", taskHandler.DeleteTaskHandler)
		authorized.PATCH("/api/tasks/:id/completion", taskHandler.ToggleTaskHandler)
		authorized.GET("/api/tasks/stream", streamHandler.StreamTasksHandler)
		authorized.POST("/api/functions/getTasks", functionHandler.GetTasksHandler)
		authorized.POST("/api/suggest-date", suggestHandler.SuggestDateHandler)
		authorized.POST("/api/logout", userHandler.LogoutHandler)
		authorized.GET("/api/session", userHandler.SessionHandler)
	}

	return r
}
