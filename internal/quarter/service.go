// Package quarter は四半期データの取得・保存・削除のドメインロジックを提供する。
package quarter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/irportal/internal/auth"
	"github.com/hitoshi/irportal/internal/model"
	"github.com/hitoshi/irportal/internal/repository"
	"github.com/hitoshi/irportal/internal/security"
)

// 保存結果のラベル
const (
	saveResultSuccess = "success"
	saveResultFailure = "failure"
)

// Auditor は監査ログの記録を行う。
type Auditor interface {
	Record(ctx context.Context, entry model.AuditLogEntry)
}

// SaveObserver は四半期データ保存の結果を受け取る。
type SaveObserver interface {
	RecordQuarterlySave(result string)
}

// Service は四半期データのサービス層。
type Service struct {
	repo     repository.QuarterRepository
	links    security.LinkPolicy
	auditor  Auditor
	observer SaveObserver
}

// NewService はServiceの新しいインスタンスを生成する。observerはnilでもよい。
func NewService(
	repo repository.QuarterRepository,
	links security.LinkPolicy,
	auditor Auditor,
	observer SaveObserver,
) *Service {
	return &Service{
		repo:     repo,
		links:    links,
		auditor:  auditor,
		observer: observer,
	}
}

// Get は四半期データを取得し、VIEW_QUARTERLY_DATAを監査ログに記録する。
// 未公開の四半期は管理者以外には存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, actor *model.User, ipAddress, label string) (*model.QuarterlyData, error) {
	label = NormalizeLabel(label)
	if _, _, err := ParseLabel(label); err != nil {
		return nil, model.NewInvalidQuarterError(label)
	}

	data, err := s.repo.FindByLabel(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("failed to get quarterly data: %w", err)
	}
	if data == nil || (!data.IsPublished && !auth.IsAuthorized(actor, model.RoleAdmin)) {
		return nil, model.NewQuarterNotFoundError(label)
	}

	s.checkLinks(data)
	s.record(ctx, actor, ipAddress, model.AuditViewQuarterlyData, data.ID, label)
	return data, nil
}

// ListPublished は公開済み四半期のラベルを開始日の新しい順に返す。
func (s *Service) ListPublished(ctx context.Context) ([]string, error) {
	labels, err := s.repo.ListPublishedLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarters: %w", err)
	}
	return labels, nil
}

// Save は四半期データを丸ごと置き換えて保存し、保存後のデータを返す。
// 四半期が未作成の場合はラベルから期間を決めて作成する。自由記述テキストは入力のまま保存する。
// 保存は全て成功するか全て失敗するかのいずれかで、成功時のみUPDATE_QUARTERLY_DATAを記録する。
func (s *Service) Save(ctx context.Context, actor *model.User, ipAddress string, in *model.QuarterlyData) (*model.QuarterlyData, error) {
	if in == nil {
		return nil, model.NewInvalidRequestError()
	}
	data := *in
	data.Quarter = NormalizeLabel(data.Quarter)
	if data.Quarter == "" {
		return nil, model.NewValidationError("Quarter is required")
	}
	start, end, err := ParseLabel(data.Quarter)
	if err != nil {
		return nil, model.NewInvalidQuarterError(data.Quarter)
	}
	if err := validateNumbers(&data); err != nil {
		return nil, err
	}
	fillLists(&data)

	if err := s.repo.Save(ctx, &data, start, end); err != nil {
		s.observe(saveResultFailure)
		return nil, fmt.Errorf("failed to save quarterly data: %w", err)
	}

	saved, err := s.repo.FindByLabel(ctx, data.Quarter)
	if err != nil {
		s.observe(saveResultFailure)
		return nil, fmt.Errorf("failed to reload quarterly data: %w", err)
	}
	if saved == nil {
		s.observe(saveResultFailure)
		return nil, fmt.Errorf("quarterly data %q missing after save", data.Quarter)
	}

	s.checkLinks(saved)
	s.observe(saveResultSuccess)
	s.record(ctx, actor, ipAddress, model.AuditUpdateQuarterlyData, saved.ID, saved.Quarter)
	slog.Info("quarterly data saved",
		slog.String("quarter", saved.Quarter),
		slog.Bool("published", saved.IsPublished),
	)
	return saved, nil
}

// Delete は四半期データを削除し、DELETE_QUARTERLY_DATAを監査ログに記録する。
func (s *Service) Delete(ctx context.Context, actor *model.User, ipAddress, label string) error {
	label = NormalizeLabel(label)
	if label == "" {
		return model.NewValidationError("Quarter is required")
	}
	if _, _, err := ParseLabel(label); err != nil {
		return model.NewInvalidQuarterError(label)
	}

	deleted, err := s.repo.DeleteByLabel(ctx, label)
	if err != nil {
		return fmt.Errorf("failed to delete quarterly data: %w", err)
	}
	if !deleted {
		return model.NewQuarterNotFoundError(label)
	}

	s.record(ctx, actor, ipAddress, model.AuditDeleteQuarterlyData, "", label)
	slog.Info("quarterly data deleted", slog.String("quarter", label))
	return nil
}

func validateNumbers(data *model.QuarterlyData) error {
	switch {
	case data.Metrics.WeeklyTransactingAccounts < 0:
		return model.NewValidationError("weeklyTransactingAccounts must not be negative")
	case data.Financial.RunwayMonths < 0:
		return model.NewValidationError("runwayMonths must not be negative")
	case data.Financial.Headcount < 0:
		return model.NewValidationError("headcount must not be negative")
	}
	return nil
}

// fillLists はnilのリストを空にする。
func fillLists(data *model.QuarterlyData) {
	for _, list := range []*[]string{
		&data.Highlights.Achievements,
		&data.Highlights.Challenges,
		&data.Highlights.NextQuarterMilestones,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
}

// checkLinks はリンクとして描画できない資料URLを空にする。
func (s *Service) checkLinks(data *model.QuarterlyData) {
	for i := range data.Documents {
		doc := &data.Documents[i]
		safe := s.links.SafeURL(doc.URL)
		if safe == "" && strings.TrimSpace(doc.URL) != "" {
			slog.Warn("document url rejected",
				slog.String("quarter", data.Quarter),
				slog.String("document_id", doc.ID),
			)
		}
		doc.URL = safe
	}
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer.RecordQuarterlySave(result)
	}
}

func (s *Service) record(ctx context.Context, actor *model.User, ipAddress string, action model.AuditAction, entityID, label string) {
	entry := model.AuditLogEntry{
		Action:     action,
		EntityType: model.EntityQuarterlyData,
		EntityID:   entityID,
		Details:    map[string]any{"quarter": label},
		IPAddress:  ipAddress,
	}
	if actor != nil {
		actorID := actor.ID
		entry.UserID = &actorID
	}
	s.auditor.Record(ctx, entry)
}
