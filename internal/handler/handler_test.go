package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/irportal/internal/directory"
	"github.com/hitoshi/irportal/internal/middleware"
	"github.com/hitoshi/irportal/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn  func(ctx context.Context, email, ipAddress string) (*model.Session, error)
	logoutFn func(ctx context.Context, session *model.Session, ipAddress string)
}

func (m *mockAuthService) Login(ctx context.Context, email, ipAddress string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, ipAddress)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, session *model.Session, ipAddress string) {
	if m.logoutFn != nil {
		m.logoutFn(ctx, session, ipAddress)
	}
}

type mockSessionWriter struct {
	written *model.Session
	cleared bool
	writeFn func(w http.ResponseWriter, session *model.Session) error
}

func (m *mockSessionWriter) Write(w http.ResponseWriter, session *model.Session) error {
	m.written = session
	if m.writeFn != nil {
		return m.writeFn(w, session)
	}
	return nil
}

func (m *mockSessionWriter) Clear(_ http.ResponseWriter) {
	m.cleared = true
}

type mockQuarterService struct {
	getFn           func(ctx context.Context, actor *model.User, ipAddress, label string) (*model.QuarterlyData, error)
	listPublishedFn func(ctx context.Context) ([]string, error)
	saveFn          func(ctx context.Context, actor *model.User, ipAddress string, in *model.QuarterlyData) (*model.QuarterlyData, error)
	deleteFn        func(ctx context.Context, actor *model.User, ipAddress, label string) error
}

func (m *mockQuarterService) Get(ctx context.Context, actor *model.User, ipAddress, label string) (*model.QuarterlyData, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor, ipAddress, label)
	}
	return nil, model.NewQuarterNotFoundError(label)
}

func (m *mockQuarterService) ListPublished(ctx context.Context) ([]string, error) {
	if m.listPublishedFn != nil {
		return m.listPublishedFn(ctx)
	}
	return nil, nil
}

func (m *mockQuarterService) Save(ctx context.Context, actor *model.User, ipAddress string, in *model.QuarterlyData) (*model.QuarterlyData, error) {
	if m.saveFn != nil {
		return m.saveFn(ctx, actor, ipAddress, in)
	}
	return in, nil
}

func (m *mockQuarterService) Delete(ctx context.Context, actor *model.User, ipAddress, label string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, ipAddress, label)
	}
	return nil
}

type mockUserService struct {
	listFn   func(ctx context.Context) ([]*model.User, error)
	addFn    func(ctx context.Context, actor *model.User, ipAddress string, in directory.AddUserInput) (*model.User, error)
	removeFn func(ctx context.Context, actor *model.User, ipAddress, id string) error
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockUserService) Add(ctx context.Context, actor *model.User, ipAddress string, in directory.AddUserInput) (*model.User, error) {
	if m.addFn != nil {
		return m.addFn(ctx, actor, ipAddress, in)
	}
	return nil, nil
}

func (m *mockUserService) Remove(ctx context.Context, actor *model.User, ipAddress, id string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, actor, ipAddress, id)
	}
	return nil
}

// --- ヘルパー ---

func testSession(role model.Role) *model.Session {
	return &model.Session{
		User: model.User{
			ID:    "user-" + string(role),
			Name:  "Test " + string(role),
			Email: string(role) + "@example.com",
			Role:  role,
		},
		Expires: time.Now().Add(time.Hour),
	}
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, role model.Role) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), testSession(role)))
}
