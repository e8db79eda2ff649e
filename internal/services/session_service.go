package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"go-task-flow/backend/internal/models"
)

// ErrInvalidSession はセッション検証に失敗した場合のエラーです。
// 期限切れ・改ざん・形式不正など、失敗の理由は呼び出し元に区別させません。
var ErrInvalidSession = errors.New("invalid session")

// SessionService はセッショントークンの発行と検証を扱います。
type SessionService struct {
	secret []byte
}

// NewSessionService は新しいSessionServiceを作成します。
func NewSessionService() *SessionService {
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Fatal("SESSION_SECRET environment variable not set")
	}
	return &SessionService{secret: []byte(secret)}
}

// GenerateSessionToken はログイン成功時のセッショントークンを生成します。
func (s *SessionService) GenerateSessionToken(userID int, email string) (string, error) {
	claims := &jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return tokenString, nil
}

// VerifySession はセッショントークンを検証し、ユーザーIDを返します。
// どのような失敗でも一律に ErrInvalidSession を返します。
func (s *SessionService) VerifySession(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, ErrInvalidSession
	}
	email, ok := claims["email"].(string)
	if !ok {
		return nil, ErrInvalidSession
	}

	return &models.SessionClaims{
		UserID: int(userIDFloat),
		Email:  email,
	}, nil
}
