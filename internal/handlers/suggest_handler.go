package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-task-flow/backend/internal/suggest"
)

// SuggestHandler はAIによる期日提案のハンドラーを管理します。
type SuggestHandler struct {
	client *suggest.Client
}

// NewSuggestHandler は新しいSuggestHandlerを作成します。
func NewSuggestHandler(client *suggest.Client) *SuggestHandler {
	return &SuggestHandler{client: client}
}

// SuggestDateForm は期日提案リクエストの入力です。
type SuggestDateForm struct {
	Description string `form:"description"`
}

// SuggestDateHandler はタスクの説明文から期日の提案を返します。
// 失敗の詳細はログに残し、クライアントには汎用メッセージだけを返します。
func (h *SuggestHandler) SuggestDateHandler(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	var form SuggestDateForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if form.Description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task description is needed to suggest a date."})
		return
	}

	suggestion, err := h.client.SuggestDate(c.Request.Context(), form.Description)
	if err != nil {
		if errors.Is(err, suggest.ErrEmptyDescription) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Task description is needed to suggest a date."})
			return
		}
		log.Printf("AI date suggestion failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get suggestion from AI."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"suggestedDate": suggestion.SuggestedDate,
		"reasoning":     suggestion.Reasoning,
	})
}
