// Package modelsはTaskを定義します。
package models

import (
	"time"
)

type Task struct {
	ID          string    `json:"id"`                       // 主キー (UUID、ストアが採番)
	UserID      int       `json:"user_id"`                  // 所有者のユーザーID (作成時に固定)
	Title       string    `json:"title"`                    // タスクのタイトル（必須）
	Description string    `json:"description"`              // 説明（任意）
	Completed   bool      `json:"completed"`                // 完了状態
	CreatedAt   time.Time `json:"created_at"`               // 作成日時（サーバー採番、ソートキー）
	DueDate     *string   `json:"due_date"`                 // 期日 "YYYY-MM-DD" または null
}

// TaskForm はタスク作成・更新フォームの入力です。
// バリデーションはサービス層（信頼境界）で行います。
type TaskForm struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	DueDate     string `form:"due_date"`
}

// ToggleForm は完了状態トグルフォームの入力です。
type ToggleForm struct {
	Completed bool `form:"completed"`
}
