package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-task-flow/backend/internal/models"
	"go-task-flow/backend/internal/repositories"
	"go-task-flow/backend/internal/services"
)

// TaskHandler はタスク関連のハンドラーを管理します。
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler は新しいTaskHandlerを作成します。
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// currentUserID は認証ミドルウェアが設定したユーザーIDを取り出します。
func currentUserID(c *gin.Context) (int, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return 0, false
	}
	userID, ok := userIDVal.(int)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID type in context"})
		return 0, false
	}
	return userID, true
}

// taskInputFromForm はフォーム入力をサービス層の入力へ変換します。
// 空の期日はnull（未設定）として扱います。
func taskInputFromForm(form models.TaskForm) services.TaskInput {
	in := services.TaskInput{
		Title:       form.Title,
		Description: form.Description,
	}
	if form.DueDate != "" {
		in.DueDate = &form.DueDate
	}
	return in
}

// writeTaskError はアクションのエラーをレスポンスに変換します。
// 所有者違いはNotFoundと同じレスポンスになります。
func writeTaskError(c *gin.Context, err error, genericMessage string) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
		return
	}
	if errors.Is(err, repositories.ErrTaskNotFound) || errors.Is(err, repositories.ErrTaskForbidden) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found."})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": genericMessage})
}

// AddTaskHandler は新しいタスクを作成します。
func (h *TaskHandler) AddTaskHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var form models.TaskForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if _, err := h.taskService.AddTask(c.Request.Context(), userID, taskInputFromForm(form)); err != nil {
		writeTaskError(c, err, "Failed to create task.")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// UpdateTaskHandler はタスクの編集可能フィールドを更新します。
func (h *TaskHandler) UpdateTaskHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var form models.TaskForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.taskService.UpdateTask(c.Request.Context(), id, userID, taskInputFromForm(form)); err != nil {
		writeTaskError(c, err, "Failed to update task.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteTaskHandler はタスクを削除します。
func (h *TaskHandler) DeleteTaskHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	if err := h.taskService.DeleteTask(c.Request.Context(), id, userID); err != nil {
		writeTaskError(c, err, "Failed to delete task.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ToggleTaskHandler はタスクの完了状態を更新します。
// 他の変更操作と同じ構造化された結果を返します。
func (h *TaskHandler) ToggleTaskHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var form models.ToggleForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.taskService.ToggleTaskCompletion(c.Request.Context(), id, userID, form.Completed); err != nil {
		writeTaskError(c, err, "Failed to toggle task completion.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
