package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/irportal/internal/auth"
	"github.com/hitoshi/irportal/internal/directory"
	"github.com/hitoshi/irportal/internal/model"
	"github.com/hitoshi/irportal/internal/repository"
)

const routerTestSecret = "router-test-secret-at-least-32-bytes"

// memUserRepo はルーター統合テスト用のUserRepository実装。追加順を保持する。
type memUserRepo struct {
	mu    sync.Mutex
	users []*model.User
}

func (m *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	c := *user
	m.users = append(m.users, &c)
	return nil
}

func (m *memUserRepo) DeleteByID(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.ID == id {
			if u.Role == model.RoleSuperAdmin {
				return false, nil
			}
			m.users = append(m.users[:i], m.users[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memUserRepo) List(_ context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.users))
	for i := len(m.users) - 1; i >= 0; i-- {
		c := *m.users[i]
		out = append(out, &c)
	}
	return out, nil
}

func (m *memUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.LastLogin = &at
		}
	}
	return nil
}

// captureAuditor は記録された監査ログを保持する。
type captureAuditor struct {
	mu      sync.Mutex
	entries []model.AuditLogEntry
}

func (a *captureAuditor) Record(_ context.Context, entry model.AuditLogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *captureAuditor) find(action model.AuditAction) []model.AuditLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.AuditLogEntry
	for _, e := range a.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	router   http.Handler
	users    *memUserRepo
	auditor  *captureAuditor
	quarters *mockQuarterService
}

// newTestEnv はセッション・認証・ユーザー管理を実装で、四半期データをモックで構成したルーターを返す。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := &memUserRepo{}
	for _, u := range []*model.User{
		{ID: uuid.NewString(), Name: "Root", Email: "root@x.com", Role: model.RoleSuperAdmin},
		{ID: uuid.NewString(), Name: "Admin", Email: "admin@x.com", Role: model.RoleAdmin},
		{ID: uuid.NewString(), Name: "Ivy", Email: "ivy@x.com", Role: model.RoleInvestor},
	} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	auditor := &captureAuditor{}
	sessions := auth.NewSessionManager(auth.SessionConfig{Secret: routerTestSecret})
	dir := directory.NewService(users, auditor)
	quarters := &mockQuarterService{}

	router := NewRouter(&RouterDeps{
		SessionReader:     sessions,
		CORSAllowedOrigin: "http://localhost:3000",
		TrustedProxies:    []*net.IPNet{{IP: net.IPv4(10, 0, 0, 0).To4(), Mask: net.CIDRMask(8, 32)}},
		HealthChecker:     &mockHealthChecker{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
		AuthService:    auth.NewService(dir, sessions, auditor, nil),
		SessionWriter:  sessions,
		QuarterService: quarters,
		UserService:    dir,
	})

	return &testEnv{router: router, users: users, auditor: auditor, quarters: quarters}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "198.51.100.20:5000"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s status = %d: %s", email, w.Code, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatalf("login %s did not set a session cookie", email)
	return nil
}

func TestRouter_LoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	cookie := env.login(t, "ADMIN@x.com")
	if !cookie.HttpOnly || cookie.MaxAge != 86400 || cookie.Path != "/" {
		t.Errorf("cookie = %+v", cookie)
	}

	w := env.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d", w.Code)
	}
	var body meResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.User.Email != "admin@x.com" || body.User.Role != model.RoleAdmin {
		t.Errorf("user = %+v", body.User)
	}

	if got := env.auditor.find(model.AuditLoginSuccess); len(got) != 1 {
		t.Errorf("LOGIN_SUCCESS entries = %d, want 1", len(got))
	}
}

func TestRouter_LoginNotWhitelisted(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "stranger@x.com"}, nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	failed := env.auditor.find(model.AuditLoginFailed)
	if len(failed) != 1 {
		t.Fatalf("LOGIN_FAILED entries = %d, want 1", len(failed))
	}
	if failed[0].UserID != nil {
		t.Errorf("user_id = %v, want nil", *failed[0].UserID)
	}
	if failed[0].IPAddress != "198.51.100.20" {
		t.Errorf("ip = %q", failed[0].IPAddress)
	}
}

func TestRouter_LoginFailed_ForwardedForOnlyFromTrustedProxy(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"direct client cannot forge origin", "203.0.113.9:5555", "203.0.113.9"},
		{"trusted proxy forwards client", "10.1.2.3:443", "192.0.2.44"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"stranger@x.com"}`))
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set("X-Forwarded-For", "192.0.2.44")
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			failed := env.auditor.find(model.AuditLoginFailed)
			if len(failed) != 1 {
				t.Fatalf("LOGIN_FAILED entries = %d, want 1", len(failed))
			}
			if failed[0].IPAddress != tt.want {
				t.Errorf("ip = %q, want %q", failed[0].IPAddress, tt.want)
			}
		})
	}
}

func TestRouter_AnonymousAccess(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/quarterly-data"},
		{http.MethodPost, "/api/quarterly-data"},
		{http.MethodGet, "/api/users"},
		{http.MethodDelete, "/api/users?id=x"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, nil, nil)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRouter_TamperedCookieIsAnonymous(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "admin@x.com")
	cookie.Value += "x"

	w := env.do(t, http.MethodGet, "/api/auth/me", nil, cookie)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_InvestorCannotSaveQuarterlyData(t *testing.T) {
	env := newTestEnv(t)
	saveCalled := false
	env.quarters.saveFn = func(ctx context.Context, actor *model.User, ipAddress string, in *model.QuarterlyData) (*model.QuarterlyData, error) {
		saveCalled = true
		return in, nil
	}
	cookie := env.login(t, "ivy@x.com")

	w := env.do(t, http.MethodPost, "/api/quarterly-data", map[string]any{"quarter": "Q4 2024"}, cookie)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if saveCalled {
		t.Error("Save must not be reached for an investor")
	}

	w = env.do(t, http.MethodDelete, "/api/quarterly-data?quarter=Q4%202024", nil, cookie)
	if w.Code != http.StatusForbidden {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = env.do(t, http.MethodGet, "/api/users", nil, cookie)
	if w.Code != http.StatusForbidden {
		t.Errorf("users status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_InvestorCanReadQuarterlyData(t *testing.T) {
	env := newTestEnv(t)
	env.quarters.getFn = func(ctx context.Context, actor *model.User, ipAddress, label string) (*model.QuarterlyData, error) {
		return &model.QuarterlyData{Quarter: label, IsPublished: true}, nil
	}
	cookie := env.login(t, "ivy@x.com")

	w := env.do(t, http.MethodGet, "/api/quarterly-data?quarter=Q4%202024", nil, cookie)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_AdminSavesQuarterlyData(t *testing.T) {
	env := newTestEnv(t)
	var gotActor *model.User
	env.quarters.saveFn = func(ctx context.Context, actor *model.User, ipAddress string, in *model.QuarterlyData) (*model.QuarterlyData, error) {
		gotActor = actor
		return in, nil
	}
	cookie := env.login(t, "admin@x.com")

	w := env.do(t, http.MethodPost, "/api/quarterly-data", map[string]any{"quarter": "Q4 2024"}, cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotActor == nil || gotActor.Email != "admin@x.com" {
		t.Errorf("actor = %+v", gotActor)
	}
}

// TestRouter_AddListRemoveUser は投資家の追加・一覧・削除の一連の流れを検証する。
func TestRouter_AddListRemoveUser(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "admin@x.com")

	w := env.do(t, http.MethodPost, "/api/users", map[string]string{"name": "Ana", "email": "ana@x.com", "role": "investor"}, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	var ana model.User
	if err := json.NewDecoder(w.Body).Decode(&ana); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	listUsers := func() []*model.User {
		w := env.do(t, http.MethodGet, "/api/users", nil, cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("list status = %d", w.Code)
		}
		var body userListResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		return body.Users
	}

	users := listUsers()
	if len(users) == 0 || users[0].Email != "ana@x.com" || users[0].Role != model.RoleInvestor {
		t.Fatalf("newest user = %+v, want Ana as investor", users)
	}

	w = env.do(t, http.MethodDelete, "/api/users?id="+ana.ID, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}

	for _, u := range listUsers() {
		if u.ID == ana.ID {
			t.Error("Ana should no longer be listed")
		}
	}

	deleted := env.auditor.find(model.AuditDeleteUser)
	if len(deleted) != 1 || deleted[0].EntityID != ana.ID {
		t.Errorf("DELETE_USER entries = %+v", deleted)
	}

	w = env.do(t, http.MethodDelete, "/api/users?id="+ana.ID, nil, cookie)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRouter_SuperAdminIsProtected(t *testing.T) {
	env := newTestEnv(t)
	root, _ := env.users.FindByEmail(context.Background(), "root@x.com")
	cookie := env.login(t, "root@x.com")

	w := env.do(t, http.MethodDelete, "/api/users?id="+root.ID, nil, cookie)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if u, _ := env.users.FindByID(context.Background(), root.ID); u == nil {
		t.Error("super_admin must not be deleted")
	}
}

func TestRouter_LogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t, "admin@x.com")

	w := env.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be cleared")
	}
	if got := env.auditor.find(model.AuditLogout); len(got) != 1 {
		t.Errorf("LOGOUT entries = %d, want 1", len(got))
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/metrics", nil, nil); w.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", w.Code)
	}
}

func TestRouter_SetsSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, nil)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
