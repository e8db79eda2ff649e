package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-task-flow/backend/internal/models"
	"go-task-flow/backend/internal/services"
)

// FunctionHandler は呼び出し可能エンドポイントを管理します。
// メインのリスト表示（リアルタイム購読）とは独立した読み取り専用の経路です。
type FunctionHandler struct {
	taskService *services.TaskService
}

// NewFunctionHandler は新しいFunctionHandlerを作成します。
func NewFunctionHandler(taskService *services.TaskService) *FunctionHandler {
	return &FunctionHandler{taskService: taskService}
}

// GetTasksHandler は呼び出し元のタスク一覧を作成日時の降順で返します。
// 内部エラーの詳細はクライアントに出しません。
func (h *FunctionHandler) GetTasksHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.GetTasks(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred while fetching tasks."})
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    tasks,
		"count":   len(tasks),
	})
}
