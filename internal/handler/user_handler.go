package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/irportal/internal/directory"
	"github.com/hitoshi/irportal/internal/middleware"
	"github.com/hitoshi/irportal/internal/model"
)

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	List(ctx context.Context) ([]*model.User, error)
	Add(ctx context.Context, actor *model.User, ipAddress string, in directory.AddUserInput) (*model.User, error)
	Remove(ctx context.Context, actor *model.User, ipAddress, id string) error
}

// UserHandler はホワイトリスト管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type addUserRequest struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type userListResponse struct {
	Users []*model.User `json:"users"`
}

// List は登録済みユーザーを追加日の新しい順に返す。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []*model.User{}
	}

	writeJSON(w, http.StatusOK, userListResponse{Users: users})
}

// Add はユーザーをホワイトリストに追加する。
// POST /api/users
func (h *UserHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	user, err := h.service.Add(r.Context(), middleware.UserFromContext(r.Context()), middleware.ClientIP(r), directory.AddUserInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Remove はユーザーをホワイトリストから削除する。
// DELETE /api/users?id=...
func (h *UserHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("User ID is required"))
		return
	}

	if err := h.service.Remove(r.Context(), middleware.UserFromContext(r.Context()), middleware.ClientIP(r), id); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
