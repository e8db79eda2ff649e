package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-task-flow/backend/internal/models"
	"go-task-flow/backend/internal/repositories"
	"go-task-flow/backend/internal/routes"
	"go-task-flow/backend/internal/suggest"

	"github.com/joho/godotenv"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
)

// SetupTestDB はテスト用のデータベース接続を確立し、テーブルを作成し、テストデータを投入します。
// TEST_DB_* が設定されていない環境ではテストをスキップします。
func SetupTestDB(t *testing.T) (*sql.DB, *gin.Engine, *repositories.TaskRepository, *repositories.UserRepository) {
	_ = godotenv.Load("../../.env")
	_ = godotenv.Load("../../../.env")

	if os.Getenv("SESSION_SECRET") == "" {
		t.Setenv("SESSION_SECRET", "test-session-secret")
	}

	dbUser := os.Getenv("TEST_DB_USER")
	dbPass := os.Getenv("TEST_DB_PASS")
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbName := os.Getenv("TEST_DB_NAME")

	if dbHost == "" {
		t.Skip("TEST_DB_* environment variables not set, skipping database test")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", dbUser, dbPass, dbHost, dbPort, dbName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Test database not reachable: %v", err)
	}

	// 既存のテーブルを削除 (テストのたびにクリーンな状態にするため)
	// Foreign Key Constraint があるため、tasks -> users の順で削除
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS=0;"); err != nil {
		log.Printf("Failed to disable foreign key checks: %v", err)
	}
	if _, err := db.Exec("TRUNCATE TABLE tasks"); err != nil {
		log.Printf("Failed to truncate tasks table (it might not exist yet): %v", err)
	}
	if _, err := db.Exec("TRUNCATE TABLE users"); err != nil {
		log.Printf("Failed to truncate users table (it might not exist yet): %v", err)
	}
	if _, err := db.Exec("SET FOREIGN_KEY_CHECKS=1;"); err != nil {
		log.Printf("Failed to enable foreign key checks: %v", err)
	}

	// ユーザーテーブルの作成
	createUserTableSQL := `
    	CREATE TABLE IF NOT EXISTS users (
    		id INT AUTO_INCREMENT PRIMARY KEY,
    		username VARCHAR(255) NOT NULL UNIQUE,
    		email VARCHAR(255) NOT NULL UNIQUE,
    		password_hash VARCHAR(255) NOT NULL,
    		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
    	);`
	if _, err := db.Exec(createUserTableSQL); err != nil {
		t.Fatalf("Failed to create users table: %v", err)
	}

	// タスクテーブルの作成 (ユーザーごとのスコープ、作成日時はマイクロ秒精度)
	createTaskTableSQL := `
    	CREATE TABLE IF NOT EXISTS tasks (
    		id CHAR(36) PRIMARY KEY,
    		user_id INT NOT NULL,
    		title VARCHAR(255) NOT NULL,
    		description TEXT NOT NULL,
    		completed BOOLEAN NOT NULL DEFAULT FALSE,
    		created_at DATETIME(6) NOT NULL,
    		due_date CHAR(10) NULL,
    		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    	);`
	if _, err := db.Exec(createTaskTableSQL); err != nil {
		t.Fatalf("Failed to create tasks table: %v", err)
	}

	// テストユーザーの挿入
	userRepo := repositories.NewUserRepository(db)
	hashedPasswordAlice, _ := repositories.HashPassword("password123")
	alice := models.User{
		Username:     "alice_tester",
		Email:        "alice@example.com",
		PasswordHash: hashedPasswordAlice,
	}
	if _, err := userRepo.Create(&alice); err != nil {
		log.Printf("Failed to create alice_tester (might exist, or duplicate entry): %v", err)
	}

	hashedPasswordBob, _ := repositories.HashPassword("password456")
	bob := models.User{
		Username:     "bob_tester_",
		Email:        "bob@example.com",
		PasswordHash: hashedPasswordBob,
	}
	if _, err := userRepo.Create(&bob); err != nil {
		log.Printf("Failed to create bob_tester_ (might exist, or duplicate entry): %v", err)
	}

	log.Println("Successfully set up test database!")

	router := SetupTestRouter(t, db)
	taskRepo := repositories.NewTaskRepository(db)

	return db, router, taskRepo, userRepo
}

// SetupTestRouter はテスト用のGinルーターをセットアップします。
// Redisなし (キャッシュ無効) で本番と同じ配線を使います。
func SetupTestRouter(t *testing.T, db *sql.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return routes.SetupRouter(db, nil, suggest.NewClient("test-key", ""))
}

// CreateTestUser はテスト用のユーザーを作成し、データベースに保存します。
func CreateTestUser(t *testing.T, userRepo *repositories.UserRepository, username, email, password string) *models.User {
	hashedPassword, err := repositories.HashPassword(password)
	require.NoError(t, err)

	newUser := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	createdUser, err := userRepo.Create(&newUser)
	require.NoError(t, err)
	require.NotNil(t, createdUser)
	require.NotEqual(t, 0, createdUser.ID)
	return createdUser
}

// CreateTestTask はテスト用のタスクをアクションエンドポイント経由で作成します。
func CreateTestTask(t *testing.T, router *gin.Engine, token, title, description string) {
	form := url.Values{}
	form.Set("title", title)
	form.Set("description", description)

	req, _ := http.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(form.Encode()))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, "タスク作成に失敗しました: %s", resp.Body.String())
}

// LoginAndGetToken はログインしてセッショントークンを取得します。
func LoginAndGetToken(t *testing.T, router *gin.Engine, email, password string) (string, error) {
	loginPayload := map[string]string{
		"email":    email,
		"password": password,
	}
	body, _ := json.Marshal(loginPayload)

	req, _ := http.NewRequest(http.MethodPost, "/api/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", resp.Code, resp.Body.String())
	}

	var loginRes map[string]interface{}
	err := json.Unmarshal(resp.Body.Bytes(), &loginRes)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal login response: %w", err)
	}

	token, ok := loginRes["token"].(string)
	if !ok {
		return "", errors.New("token not found or not a string in login response")
	}
	return token, nil
}
