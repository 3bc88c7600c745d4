// Package directory はホワイトリスト登録ユーザーの管理を提供する。
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/irportal/internal/model"
	"github.com/hitoshi/irportal/internal/repository"
)

// Auditor は監査ログの記録を行う。
type Auditor interface {
	Record(ctx context.Context, entry model.AuditLogEntry)
}

// AddUserInput はユーザー追加の入力値。
type AddUserInput struct {
	Name  string
	Email string
	Role  model.Role
}

// Service はユーザーディレクトリのサービス層。
// emailは常に小文字に正規化してから保存・検索する。
type Service struct {
	userRepo repository.UserRepository
	auditor  Auditor
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, auditor Auditor) *Service {
	return &Service{
		userRepo: userRepo,
		auditor:  auditor,
		now:      time.Now,
	}
}

// NormalizeEmail は前後の空白を除去し小文字にする。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindByEmail は大文字小文字を区別せずにemailでユーザーを検索する。
// 見つからない場合はnilを返す。
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// TouchLastLogin はユーザーの最終ログイン日時を更新する。
func (s *Service) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := s.userRepo.TouchLastLogin(ctx, id, at); err != nil {
		return fmt.Errorf("failed to touch last login: %w", err)
	}
	return nil
}

// List は全ユーザーを追加日時の新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Add はユーザーをホワイトリストに追加し、CREATE_USERを監査ログに記録する。
// super_adminの追加はactorがsuper_adminの場合のみ許可する。
func (s *Service) Add(ctx context.Context, actor *model.User, ipAddress string, in AddUserInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Role == "" {
		return nil, model.NewValidationError("Name, email, and role are required")
	}
	if !in.Role.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("Invalid role: %s", in.Role))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, model.NewValidationError("Invalid email address")
	}
	if in.Role == model.RoleSuperAdmin && (actor == nil || actor.Role != model.RoleSuperAdmin) {
		return nil, model.NewProtectedUserError()
	}

	user := &model.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      in.Role,
		AddedDate: s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewDuplicateEmailError(email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.record(ctx, actor, ipAddress, model.AuditCreateUser, user.ID, map[string]any{
		"name":  user.Name,
		"email": user.Email,
		"role":  string(user.Role),
	})
	slog.Info("user added",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Remove はユーザーをホワイトリストから削除し、DELETE_USERを監査ログに記録する。
// 存在しないIDの場合はUserNotFoundエラー、super_adminの場合はProtectedUserエラーを返す。
func (s *Service) Remove(ctx context.Context, actor *model.User, ipAddress, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.NewValidationError("User ID is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return model.NewUserNotFoundError()
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if user.Role == model.RoleSuperAdmin {
		return model.NewProtectedUserError()
	}

	deleted, err := s.userRepo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return s.notDeletedError(ctx, id)
	}

	s.record(ctx, actor, ipAddress, model.AuditDeleteUser, id, map[string]any{
		"email": user.Email,
		"role":  string(user.Role),
	})
	slog.Info("user removed", slog.String("user_id", id))
	return nil
}

// notDeletedError は削除できなかったユーザーの現在の状態に応じたエラーを返す。
// 確認後にsuper_adminへ変更されていた場合はProtectedUserエラーとなる。
func (s *Service) notDeletedError(ctx context.Context, id string) error {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user != nil && user.Role == model.RoleSuperAdmin {
		return model.NewProtectedUserError()
	}
	return model.NewUserNotFoundError()
}

// EnsureSuperAdmin はemailのユーザーが存在しなければsuper_adminとして作成する。
// 初回セットアップ用で、作成した場合はcreated=trueを返す。既存ユーザーのロールは変更しない。
func (s *Service) EnsureSuperAdmin(ctx context.Context, name, email string) (user *model.User, created bool, err error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" || email == "" {
		return nil, false, model.NewValidationError("Name and email are required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, false, model.NewValidationError("Invalid email address")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	user = &model.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      model.RoleSuperAdmin,
		AddedDate: s.now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to create super admin: %w", err)
	}

	s.record(ctx, nil, "", model.AuditCreateUser, user.ID, map[string]any{
		"name":   user.Name,
		"email":  user.Email,
		"role":   string(user.Role),
		"source": "bootstrap",
	})
	return user, true, nil
}

func (s *Service) record(ctx context.Context, actor *model.User, ipAddress string, action model.AuditAction, entityID string, details map[string]any) {
	entry := model.AuditLogEntry{
		Action:     action,
		EntityType: model.EntityUser,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  ipAddress,
	}
	if actor != nil {
		actorID := actor.ID
		entry.UserID = &actorID
	}
	s.auditor.Record(ctx, entry)
}
