// Package auth はセッション管理、認可ポリシー、ログイン処理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/irportal/internal/model"
)

// ログイン試行結果のラベル
const (
	LoginResultSuccess  = "success"
	LoginResultRejected = "rejected"
	LoginResultError    = "error"
)

const loginFailedNotListed = "Email not whitelisted"

// UserDirectory はログイン処理に必要なユーザーディレクトリの操作。
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// Auditor は監査ログの記録を行う。記録の失敗は呼び出し側に返さない。
type Auditor interface {
	Record(ctx context.Context, entry model.AuditLogEntry)
}

// LoginObserver はログイン試行の結果を受け取る。
type LoginObserver interface {
	ObserveLogin(result string)
}

// Service はログインとログアウトのビジネスロジックを提供する。
type Service struct {
	directory UserDirectory
	sessions  *SessionManager
	auditor   Auditor
	observer  LoginObserver
	now       func() time.Time
}

// NewService はServiceを生成する。observerはnilでもよい。
func NewService(directory UserDirectory, sessions *SessionManager, auditor Auditor, observer LoginObserver) *Service {
	return &Service{
		directory: directory,
		sessions:  sessions,
		auditor:   auditor,
		observer:  observer,
		now:       time.Now,
	}
}

// Login はホワイトリストに登録されたemailでログインし、新しいセッションを返す。
// 未登録のemailの場合はLOGIN_FAILEDを監査ログに記録し、NotWhitelistedエラーを返す。
// 成功時はlast_loginを更新し、LOGIN_SUCCESSを記録する。
func (s *Service) Login(ctx context.Context, email, ipAddress string) (*model.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, model.NewValidationError("Email is required")
	}

	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		s.observe(LoginResultError)
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user == nil {
		s.observe(LoginResultRejected)
		s.auditor.Record(ctx, model.AuditLogEntry{
			Action:     model.AuditLoginFailed,
			EntityType: model.EntityUser,
			Details: map[string]any{
				"email":  email,
				"reason": loginFailedNotListed,
			},
			IPAddress: ipAddress,
		})
		slog.Info("login rejected", slog.String("email", email))
		return nil, model.NewNotWhitelistedError()
	}

	now := s.now()
	if err := s.directory.TouchLastLogin(ctx, user.ID, now); err != nil {
		// last_loginの更新失敗ではログインを止めない
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLogin = &now
	}

	session := s.sessions.New(*user)

	userID := user.ID
	s.auditor.Record(ctx, model.AuditLogEntry{
		UserID:     &userID,
		Action:     model.AuditLoginSuccess,
		EntityType: model.EntityUser,
		EntityID:   user.ID,
		IPAddress:  ipAddress,
	})
	s.observe(LoginResultSuccess)

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return session, nil
}

// Logout はセッションが存在すればLOGOUTを監査ログに記録する。
// Cookieの削除は呼び出し側が行う。
func (s *Service) Logout(ctx context.Context, session *model.Session, ipAddress string) {
	if session == nil {
		return
	}
	userID := session.User.ID
	s.auditor.Record(ctx, model.AuditLogEntry{
		UserID:     &userID,
		Action:     model.AuditLogout,
		EntityType: model.EntityUser,
		EntityID:   userID,
		IPAddress:  ipAddress,
	})
	slog.Info("user logged out", slog.String("user_id", userID))
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer.ObserveLogin(result)
	}
}
