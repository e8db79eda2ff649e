package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"go-task-flow/backend/internal/realtime"
)

// StreamHandler はタスクリストのSSEストリーム配信を管理します。
type StreamHandler struct {
	broker *realtime.Broker
}

// NewStreamHandler は新しいStreamHandlerを作成します。
func NewStreamHandler(broker *realtime.Broker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

// StreamTasksHandler は呼び出し元のタスクリスト購読をSSEで配信します。
// 接続直後に最初のスナップショットが届き、以降は変更のたびに
// 新しいスナップショットが届きます。切断で購読は解除されます。
func (h *StreamHandler) StreamTasksHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ch, unsubscribe, err := h.broker.Subscribe(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe to task updates."})
		return
	}
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case tasks, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("snapshot", tasks)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
