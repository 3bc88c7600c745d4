package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/irportal/internal/model"
)

// SessionCookieName はセッショントークンを運ぶCookie名。
const SessionCookieName = "session"

// SessionTTL はセッションの有効期間。
const SessionTTL = 24 * time.Hour

// ErrInvalidSession はトークンの署名・形式・有効期限のいずれかが不正であることを表す。
var ErrInvalidSession = errors.New("invalid session token")

// SessionConfig はセッションマネージャーの設定。
type SessionConfig struct {
	Secret       string
	CookieSecure bool
	CookieDomain string
}

// sessionClaims はセッショントークンのクレーム。
// ログイン時点のユーザーを値としてそのまま保持する。
type sessionClaims struct {
	jwt.RegisteredClaims
	User model.User `json:"user"`
}

// SessionManager はサーバー側ストアを持たない署名付きセッションを発行・検証する。
type SessionManager struct {
	secret []byte
	secure bool
	domain string
	now    func() time.Time
}

// NewSessionManager はSessionManagerを生成する。
func NewSessionManager(cfg SessionConfig) *SessionManager {
	return &SessionManager{
		secret: []byte(cfg.Secret),
		secure: cfg.CookieSecure,
		domain: cfg.CookieDomain,
		now:    time.Now,
	}
}

// New はuserのスナップショットを保持し、現在時刻からSessionTTL後に期限切れとなるセッションを生成する。
func (m *SessionManager) New(user model.User) *model.Session {
	return &model.Session{
		User:    user,
		Expires: m.now().Add(SessionTTL),
	}
}

// Encode はセッションをHS256署名付きトークンに変換する。
func (m *SessionManager) Encode(session *model.Session) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.User.ID,
			IssuedAt:  jwt.NewNumericDate(m.now()),
			ExpiresAt: jwt.NewNumericDate(session.Expires),
		},
		User: session.User,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Decode はトークンを検証してセッションを復元する。
// 署名不一致・形式不正・期限切れの場合はErrInvalidSessionを返す。
func (m *SessionManager) Decode(tokenString string) (*model.Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	session := &model.Session{
		User:    claims.User,
		Expires: claims.ExpiresAt.Time,
	}
	if session.User.ID == "" || session.Expired(m.now()) {
		return nil, ErrInvalidSession
	}
	return session, nil
}

// Write はセッションをCookieとしてレスポンスに設定する。
func (m *SessionManager) Write(w http.ResponseWriter, session *model.Session) error {
	token, err := m.Encode(session)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   int(SessionTTL.Seconds()),
		Expires:  session.Expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read はリクエストのCookieからセッションを取得する。
// Cookieが無い場合や不正な場合はnilを返す。エラーにはしない。
func (m *SessionManager) Read(r *http.Request) *model.Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	session, err := m.Decode(cookie.Value)
	if err != nil {
		return nil
	}
	return session
}

// Clear はセッションCookieを削除する。何度呼んでも結果は同じ。
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
