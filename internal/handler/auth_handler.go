// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/irportal/internal/middleware"
	"github.com/hitoshi/irportal/internal/model"
)

const loginSuccessMessage = "Login successful"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, ipAddress string) (*model.Session, error)
	Logout(ctx context.Context, session *model.Session, ipAddress string)
}

// SessionWriter はセッションCookieの発行と破棄を行う。
type SessionWriter interface {
	Write(w http.ResponseWriter, session *model.Session) error
	Clear(w http.ResponseWriter)
}

// AuthHandler はログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionWriter
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionWriter) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
	}
}

type loginRequest struct {
	Email string `json:"email"`
}

type loginResponse struct {
	User    model.User `json:"user"`
	Success bool       `json:"success"`
	Message string     `json:"message"`
}

type meResponse struct {
	User model.User `json:"user"`
}

// Login はホワイトリストに登録されたメールアドレスでログインし、セッションCookieを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, middleware.ClientIP(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.sessions.Write(w, session); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		User:    session.User,
		Success: true,
		Message: loginSuccessMessage,
	})
}

// Logout はセッションCookieを破棄する。セッションが無い場合も成功を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), middleware.SessionFromContext(r.Context()), middleware.ClientIP(r))
	h.sessions.Clear(w)

	slog.DebugContext(r.Context(), "session cleared")
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Me は現在のセッションに保持されたユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: *user})
}
