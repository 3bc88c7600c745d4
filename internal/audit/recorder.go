// Package audit は特権操作の監査ログ記録を提供する。
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/irportal/internal/model"
	"github.com/hitoshi/irportal/internal/repository"
)

// DefaultWriteTimeout は監査ログ書き込みのデフォルトのタイムアウト。
const DefaultWriteTimeout = 5 * time.Second

// FailureObserver は監査ログの書き込み失敗を受け取る。
type FailureObserver interface {
	RecordAuditWriteFailure(action string)
}

// Recorder は監査ログを追記する。
// 書き込みに失敗しても呼び出し元の処理は失敗させず、ログとメトリクスにのみ残す。
type Recorder struct {
	repo     repository.AuditLogRepository
	failures FailureObserver
	timeout  time.Duration
	now      func() time.Time
}

// NewRecorder はRecorderを生成する。
// timeoutが0以下の場合はDefaultWriteTimeoutを使用する。failuresはnilでもよい。
func NewRecorder(repo repository.AuditLogRepository, failures FailureObserver, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Recorder{
		repo:     repo,
		failures: failures,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Record は監査ログを1件記録する。
// リクエストのキャンセルに巻き込まれないよう、ctxから切り離したタイムアウト付きコンテキストで書き込む。
func (r *Recorder) Record(ctx context.Context, entry model.AuditLogEntry) {
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.repo.Insert(writeCtx, &entry); err != nil {
		attrs := []any{
			slog.String("action", string(entry.Action)),
			slog.String("entity_type", entry.EntityType),
			slog.String("error", err.Error()),
		}
		if entry.UserID != nil {
			attrs = append(attrs, slog.String("user_id", *entry.UserID))
		}
		slog.Error("failed to write audit log", attrs...)
		if r.failures != nil {
			r.failures.RecordAuditWriteFailure(string(entry.Action))
		}
	}
}
