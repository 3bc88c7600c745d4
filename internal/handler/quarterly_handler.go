package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/irportal/internal/middleware"
	"github.com/hitoshi/irportal/internal/model"
)

// QuarterServiceInterface は四半期データハンドラーが必要とするサービスインターフェース。
type QuarterServiceInterface interface {
	Get(ctx context.Context, actor *model.User, ipAddress, label string) (*model.QuarterlyData, error)
	ListPublished(ctx context.Context) ([]string, error)
	Save(ctx context.Context, actor *model.User, ipAddress string, in *model.QuarterlyData) (*model.QuarterlyData, error)
	Delete(ctx context.Context, actor *model.User, ipAddress, label string) error
}

// QuarterlyHandler は四半期データのHTTPハンドラー。
type QuarterlyHandler struct {
	service QuarterServiceInterface
}

// NewQuarterlyHandler はQuarterlyHandlerを生成する。
func NewQuarterlyHandler(service QuarterServiceInterface) *QuarterlyHandler {
	return &QuarterlyHandler{service: service}
}

type quarterListResponse struct {
	Quarters []string `json:"quarters"`
}

// Get はquarterパラメータがあれば該当四半期のデータを、無ければ公開済み四半期ラベルの一覧を返す。
// GET /api/quarterly-data?quarter=Q4%202024
func (h *QuarterlyHandler) Get(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("quarter")
	if label == "" {
		labels, err := h.service.ListPublished(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if labels == nil {
			labels = []string{}
		}
		writeJSON(w, http.StatusOK, quarterListResponse{Quarters: labels})
		return
	}

	data, err := h.service.Get(r.Context(), middleware.UserFromContext(r.Context()), middleware.ClientIP(r), label)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// Save は四半期データを丸ごと保存し、保存後のレコードを返す。
// POST /api/quarterly-data
func (h *QuarterlyHandler) Save(w http.ResponseWriter, r *http.Request) {
	var in model.QuarterlyData
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	saved, err := h.service.Save(r.Context(), middleware.UserFromContext(r.Context()), middleware.ClientIP(r), &in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// Delete は四半期データを削除する。
// DELETE /api/quarterly-data?quarter=Q4%202024
func (h *QuarterlyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("quarter")
	if label == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Quarter is required"))
		return
	}

	if err := h.service.Delete(r.Context(), middleware.UserFromContext(r.Context()), middleware.ClientIP(r), label); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
