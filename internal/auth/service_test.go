package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/irportal/internal/model"
)

// --- モック定義 ---

type mockDirectory struct {
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	touchLastLoginFn func(ctx context.Context, id string, at time.Time) error
}

func (m *mockDirectory) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockDirectory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.touchLastLoginFn != nil {
		return m.touchLastLoginFn(ctx, id, at)
	}
	return nil
}

type mockAuditor struct {
	entries []model.AuditLogEntry
}

func (m *mockAuditor) Record(_ context.Context, entry model.AuditLogEntry) {
	m.entries = append(m.entries, entry)
}

type mockObserver struct {
	results []string
}

func (m *mockObserver) ObserveLogin(result string) {
	m.results = append(m.results, result)
}

func newTestService(dir *mockDirectory, now time.Time) (*Service, *mockAuditor, *mockObserver) {
	auditor := &mockAuditor{}
	observer := &mockObserver{}
	svc := NewService(dir, newTestSessionManager(now), auditor, observer)
	svc.now = func() time.Time { return now }
	return svc, auditor, observer
}

// --- テスト ---

func TestLogin_WhitelistedEmail_IssuesSession(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	var touchedID string
	var touchedAt time.Time
	dir := &mockDirectory{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			if email != "ana@x.com" {
				t.Errorf("email = %q, want normalized ana@x.com", email)
			}
			u := testUser()
			return &u, nil
		},
		touchLastLoginFn: func(_ context.Context, id string, at time.Time) error {
			touchedID, touchedAt = id, at
			return nil
		},
	}
	svc, auditor, observer := newTestService(dir, now)

	session, err := svc.Login(context.Background(), "  Ana@X.com ", "203.0.113.7")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if !session.Expires.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("Expires = %v, want %v", session.Expires, now.Add(24*time.Hour))
	}
	if touchedID != testUser().ID || !touchedAt.Equal(now) {
		t.Errorf("TouchLastLogin(%q, %v), want (%q, %v)", touchedID, touchedAt, testUser().ID, now)
	}
	if session.User.LastLogin == nil || !session.User.LastLogin.Equal(now) {
		t.Errorf("session LastLogin = %v, want %v", session.User.LastLogin, now)
	}

	if len(auditor.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(auditor.entries))
	}
	e := auditor.entries[0]
	if e.Action != model.AuditLoginSuccess {
		t.Errorf("Action = %q, want LOGIN_SUCCESS", e.Action)
	}
	if e.UserID == nil || *e.UserID != testUser().ID {
		t.Errorf("UserID = %v, want %q", e.UserID, testUser().ID)
	}
	if e.IPAddress != "203.0.113.7" {
		t.Errorf("IPAddress = %q", e.IPAddress)
	}
	if len(observer.results) != 1 || observer.results[0] != LoginResultSuccess {
		t.Errorf("observer results = %v", observer.results)
	}
}

func TestLogin_UnknownEmail_RecordsFailureWithNilUser(t *testing.T) {
	svc, auditor, observer := newTestService(&mockDirectory{}, time.Now())

	session, err := svc.Login(context.Background(), "nobody@x.com", "198.51.100.1")
	if session != nil {
		t.Errorf("session = %+v, want nil", session)
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotWhitelisted {
		t.Fatalf("error = %v, want NOT_WHITELISTED", err)
	}

	if len(auditor.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(auditor.entries))
	}
	e := auditor.entries[0]
	if e.Action != model.AuditLoginFailed {
		t.Errorf("Action = %q, want LOGIN_FAILED", e.Action)
	}
	if e.UserID != nil {
		t.Errorf("UserID = %q, want nil", *e.UserID)
	}
	if e.Details["email"] != "nobody@x.com" || e.Details["reason"] != "Email not whitelisted" {
		t.Errorf("Details = %v", e.Details)
	}
	if len(observer.results) != 1 || observer.results[0] != LoginResultRejected {
		t.Errorf("observer results = %v", observer.results)
	}
}

func TestLogin_EmptyEmail_ReturnsValidationError(t *testing.T) {
	called := false
	dir := &mockDirectory{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			called = true
			return nil, nil
		},
	}
	svc, auditor, _ := newTestService(dir, time.Now())

	_, err := svc.Login(context.Background(), "   ", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("error = %v, want VALIDATION_FAILED", err)
	}
	if called {
		t.Error("directory should not be queried for an empty email")
	}
	if len(auditor.entries) != 0 {
		t.Errorf("unexpected audit entries: %+v", auditor.entries)
	}
}

func TestLogin_DirectoryError_ReturnsWrappedError(t *testing.T) {
	dbErr := errors.New("connection refused")
	dir := &mockDirectory{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			return nil, dbErr
		},
	}
	svc, _, observer := newTestService(dir, time.Now())

	_, err := svc.Login(context.Background(), "ana@x.com", "")
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("store failure should not be an APIError: %v", apiErr)
	}
	if len(observer.results) != 1 || observer.results[0] != LoginResultError {
		t.Errorf("observer results = %v", observer.results)
	}
}

func TestLogin_TouchLastLoginError_StillSucceeds(t *testing.T) {
	dir := &mockDirectory{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) {
			u := testUser()
			return &u, nil
		},
		touchLastLoginFn: func(_ context.Context, _ string, _ time.Time) error {
			return errors.New("timeout")
		},
	}
	svc, _, _ := newTestService(dir, time.Now())

	session, err := svc.Login(context.Background(), "ana@x.com", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.User.LastLogin != nil {
		t.Errorf("LastLogin = %v, want nil when the update failed", session.User.LastLogin)
	}
}

func TestLogout_RecordsAuditEntry(t *testing.T) {
	svc, auditor, _ := newTestService(&mockDirectory{}, time.Now())
	session := &model.Session{User: testUser(), Expires: time.Now().Add(time.Hour)}

	svc.Logout(context.Background(), session, "192.0.2.1")

	if len(auditor.entries) != 1 || auditor.entries[0].Action != model.AuditLogout {
		t.Fatalf("audit entries = %+v", auditor.entries)
	}
	if *auditor.entries[0].UserID != testUser().ID {
		t.Errorf("UserID = %q", *auditor.entries[0].UserID)
	}
}

func TestLogout_NoSession_NoAudit(t *testing.T) {
	svc, auditor, _ := newTestService(&mockDirectory{}, time.Now())

	svc.Logout(context.Background(), nil, "")

	if len(auditor.entries) != 0 {
		t.Errorf("unexpected audit entries: %+v", auditor.entries)
	}
}
