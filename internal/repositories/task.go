package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-task-flow/backend/internal/models"
)

var (
	// ErrTaskNotFound はタスクが見つからない場合のエラーです。
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskForbidden は呼び出し元が所有者でない場合のエラーです。
	// クライアントには ErrTaskNotFound と同じメッセージで返します（存在を確認させないため）。
	ErrTaskForbidden = errors.New("task forbidden")
)

// TaskRepository はタスクのデータベース操作を行うための構造体です。
type TaskRepository struct {
	DB *sql.DB
}

// NewTaskRepository は新しいTaskRepositoryインスタンスを作成します。
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{DB: db}
}

var (
	createdAtMu   sync.Mutex
	lastCreatedAt time.Time
)

// nextCreatedAt はタスクの作成日時を採番します。マイクロ秒精度の現在時刻を
// 基準に、同一マイクロ秒の衝突時は1マイクロ秒進めて、プロセス内で
// 狭義単調増加にします。作成順は created_at だけで定まります。
func nextCreatedAt() time.Time {
	createdAtMu.Lock()
	defer createdAtMu.Unlock()

	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(lastCreatedAt) {
		now = lastCreatedAt.Add(time.Microsecond)
	}
	lastCreatedAt = now
	return now
}

// Create は新しいタスクをデータベースに挿入します。
// IDと作成日時はここで採番されます（クライアントからは渡せません）。
func (r *TaskRepository) Create(t *models.Task) (*models.Task, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = nextCreatedAt()

	query := "INSERT INTO tasks (id, user_id, title, description, completed, created_at, due_date) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := r.DB.Exec(query, t.ID, t.UserID, t.Title, t.Description, t.Completed, t.CreatedAt, t.DueDate)
	if err != nil {
		log.Printf("Failed to insert task: %v", err)
		return nil, fmt.Errorf("could not insert task: %w", err)
	}

	return t, nil
}

// FindByID は指定されたIDのタスクをデータベースから取得します。
func (r *TaskRepository) FindByID(id string) (*models.Task, error) {
	query := "SELECT id, user_id, title, description, completed, created_at, due_date FROM tasks WHERE id = ?"

	var t models.Task
	var due sql.NullString
	err := r.DB.QueryRow(query, id).Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &due)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		log.Printf("Failed to query task by ID: %v", err)
		return nil, fmt.Errorf("could not query task: %w", err)
	}
	if due.Valid {
		t.DueDate = &due.String
	}

	return &t, nil
}

// FindByUserID はユーザーのタスクを作成日時の降順で取得します。
// created_at が同一の場合は id で順序を安定させます。
func (r *TaskRepository) FindByUserID(userID int) ([]*models.Task, error) {
	query := "SELECT id, user_id, title, description, completed, created_at, due_date FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id DESC"

	rows, err := r.DB.Query(query, userID)
	if err != nil {
		log.Printf("Failed to query tasks: %v", err)
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		var due sql.NullString
		err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.CreatedAt, &due)
		if err != nil {
			log.Printf("Failed to scan task: %v", err)
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		if due.Valid {
			t.DueDate = &due.String
		}
		tasks = append(tasks, &t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateFields は指定されたIDのタスクの編集可能フィールドだけを上書きします。
// id / user_id / completed / created_at には触れません。
func (r *TaskRepository) UpdateFields(id, title, description string, dueDate *string) error {
	query := "UPDATE tasks SET title = ?, description = ?, due_date = ? WHERE id = ?"

	result, err := r.DB.Exec(query, title, description, dueDate, id)
	if err != nil {
		log.Printf("Failed to update task: %v", err)
		return fmt.Errorf("could not update task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// 変更なしの上書きでも affected 0 になりうるため存在を確認する
		if _, err := r.FindByID(id); err != nil {
			return err
		}
	}

	return nil
}

// UpdateCompleted は指定されたIDのタスクの完了状態だけを更新します。
func (r *TaskRepository) UpdateCompleted(id string, completed bool) error {
	query := "UPDATE tasks SET completed = ? WHERE id = ?"

	result, err := r.DB.Exec(query, completed, id)
	if err != nil {
		log.Printf("Failed to update task completion: %v", err)
		return fmt.Errorf("could not update task completion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.FindByID(id); err != nil {
			return err
		}
	}

	return nil
}

// Delete は指定されたIDのタスクを完全に削除します（ソフトデリートなし）。
func (r *TaskRepository) Delete(id string) error {
	query := "DELETE FROM tasks WHERE id = ?"

	result, err := r.DB.Exec(query, id)
	if err != nil {
		log.Printf("Failed to delete task: %v", err)
		return fmt.Errorf("could not delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}
