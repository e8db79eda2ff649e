package services

import (
	"context"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"

	"go-task-flow/backend/internal/models"
	"go-task-flow/backend/internal/repositories"
)

// TaskStore はタスクストアアダプターの操作を表すインターフェースです。
// 本番では repositories.TaskRepository が実装します。
type TaskStore interface {
	Create(t *models.Task) (*models.Task, error)
	FindByID(id string) (*models.Task, error)
	FindByUserID(userID int) ([]*models.Task, error)
	UpdateFields(id, title, description string, dueDate *string) error
	UpdateCompleted(id string, completed bool) error
	Delete(id string) error
}

// ListCache はユーザーごとのタスクリストキャッシュを表すインターフェースです。
type ListCache interface {
	GetList(ctx context.Context, userID int, dest *[]*models.Task) (bool, error)
	SetList(ctx context.Context, userID int, tasks []*models.Task) error
	Invalidate(ctx context.Context, userID int) error
}

// ChangeNotifier は変更をリアルタイム購読者へ通知するインターフェースです。
type ChangeNotifier interface {
	Notify(userID int)
}

// TaskService はタスク関連のビジネスロジックを扱います。
// すべての変更操作は所有者チェックを通り、成功時にキャッシュ無効化と
// リアルタイム通知を行います。
type TaskService struct {
	store    TaskStore
	cache    ListCache
	notifier ChangeNotifier
}

// NewTaskService は新しいTaskServiceを作成します。cacheとnotifierはnil可です。
func NewTaskService(store TaskStore, cache ListCache, notifier ChangeNotifier) *TaskService {
	return &TaskService{store: store, cache: cache, notifier: notifier}
}

// TaskInput はタスク作成・更新の検証済み前入力です。
type TaskInput struct {
	Title       string  `validate:"required"`
	Description string
	DueDate     *string `validate:"omitempty,datetime=2006-01-02"`
}

// ValidationError はフィールドごとの検証エラーを保持します。
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

var validate = validator.New()

// ValidateTaskInput は入力を検証し、失敗した場合はフィールドごとの
// エラーメッセージを返します。成功した場合はnilを返します。
func ValidateTaskInput(in TaskInput) map[string][]string {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	fieldErrors := make(map[string][]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "Title":
				fieldErrors["title"] = append(fieldErrors["title"], "Title is required")
			case "DueDate":
				fieldErrors["due_date"] = append(fieldErrors["due_date"], "Due date must be in YYYY-MM-DD format")
			}
		}
		return fieldErrors
	}

	fieldErrors["form"] = append(fieldErrors["form"], "Invalid input")
	return fieldErrors
}

// AddTask は新しいタスクを作成します。completedは常にfalseで始まり、
// IDと作成日時はストアが採番します。
func (s *TaskService) AddTask(ctx context.Context, userID int, in TaskInput) (*models.Task, error) {
	if fieldErrors := ValidateTaskInput(in); fieldErrors != nil {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	task := &models.Task{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   false,
		DueDate:     in.DueDate,
	}
	created, err := s.store.Create(task)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, userID)
	return created, nil
}

// UpdateTask はタスクの編集可能フィールドを上書きします。
// id / user_id / completed / created_at は変更されません。
func (s *TaskService) UpdateTask(ctx context.Context, id string, userID int, in TaskInput) error {
	if fieldErrors := ValidateTaskInput(in); fieldErrors != nil {
		return &ValidationError{Fields: fieldErrors}
	}

	if _, err := s.authorizeOwner(id, userID); err != nil {
		return err
	}

	if err := s.store.UpdateFields(id, in.Title, in.Description, in.DueDate); err != nil {
		return err
	}

	s.afterMutation(ctx, userID)
	return nil
}

// DeleteTask はタスクを完全に削除します。
func (s *TaskService) DeleteTask(ctx context.Context, id string, userID int) error {
	if _, err := s.authorizeOwner(id, userID); err != nil {
		return err
	}

	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.afterMutation(ctx, userID)
	return nil
}

// ToggleTaskCompletion は完了状態だけを呼び出し元の指定値に更新します。
// 他の変更操作と同じ構造化された結果を返します。
func (s *TaskService) ToggleTaskCompletion(ctx context.Context, id string, userID int, completed bool) error {
	if _, err := s.authorizeOwner(id, userID); err != nil {
		return err
	}

	if err := s.store.UpdateCompleted(id, completed); err != nil {
		return err
	}

	s.afterMutation(ctx, userID)
	return nil
}

// GetTasks はユーザーのタスクを作成日時の降順で取得します。
// キャッシュがある場合はキャッシュ優先（cache-aside）で読み取ります。
func (s *TaskService) GetTasks(ctx context.Context, userID int) ([]*models.Task, error) {
	if s.cache != nil {
		var cached []*models.Task
		hit, err := s.cache.GetList(ctx, userID, &cached)
		if err != nil {
			log.Printf("Failed to read task list cache: %v", err)
		} else if hit {
			return cached, nil
		}
	}

	tasks, err := s.store.FindByUserID(userID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetList(ctx, userID, tasks); err != nil {
			log.Printf("Failed to fill task list cache: %v", err)
		}
	}
	return tasks, nil
}

// authorizeOwner はタスクを取得し、呼び出し元が所有者であることを確認します。
// 所有者でない場合は ErrTaskForbidden を返します（クライアントには
// NotFound と区別できない形で返されます）。
func (s *TaskService) authorizeOwner(id string, userID int) (*models.Task, error) {
	task, err := s.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		log.Printf("User %d denied access to task %s owned by user %d", userID, id, task.UserID)
		return nil, repositories.ErrTaskForbidden
	}
	return task, nil
}

// afterMutation は変更成功後の副作用をまとめて実行します。
// キャッシュ無効化の失敗は記録するだけで操作自体は成功扱いです。
func (s *TaskService) afterMutation(ctx context.Context, userID int) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			log.Printf("Failed to invalidate task list cache for user %d: %v", userID, err)
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(userID)
	}
}
