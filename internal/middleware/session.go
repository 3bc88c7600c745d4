// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/irportal/internal/auth"
	"github.com/hitoshi/irportal/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionReader はリクエストからセッションを復元する。
// セッションが無い・不正・期限切れの場合はnilを返す。
type SessionReader interface {
	Read(r *http.Request) *model.Session
}

// NewSessionMiddleware はCookieからセッションを復元し、リクエストコンテキストに注入するミドルウェアを返す。
// セッションが無くてもリクエストは拒否しない。拒否はRequireSessionとRequireRoleが行う。
func NewSessionMiddleware(reader SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session := reader.Read(r); session != nil {
				r = r.WithContext(ContextWithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession は有効なセッションが無いリクエストに401を返すミドルウェア。
func RequireSession(next http.Handler) http.Handler {
	return RequireRole("")(next)
}

// RequireRole はセッションのユーザーがroleの権限を持たないリクエストを拒否するミドルウェアを返す。
// セッションが無い場合は401、権限不足の場合は403を返す。
func RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}
			if !auth.IsAuthorized(&session.User, role) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// 未ログインの場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// UserFromContext はリクエストコンテキストからログイン中のユーザーを取得する。
// 未ログインの場合はnilを返す。
func UserFromContext(ctx context.Context) *model.User {
	session := SessionFromContext(ctx)
	if session == nil {
		return nil
	}
	return &session.User
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したログイン済みリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	session := SessionFromContext(ctx)
	if session == nil || session.User.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return session.User.ID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
