// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/irportal/internal/model"
)

// UserRepository はホワイトリスト登録ユーザーの永続化インターフェース。
// emailは呼び出し側で小文字に正規化済みであることを前提とする。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// emailが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。super_adminは削除しない。
	// 削除対象が存在しなかった場合、またはsuper_adminだった場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)

	// List は全ユーザーを登録日時の新しい順に返す。
	List(ctx context.Context) ([]*model.User, error)

	// TouchLastLogin はlast_loginをatで更新する。
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// QuarterRepository は四半期データの永続化インターフェース。
type QuarterRepository interface {
	// FindByLabel は四半期ラベルで四半期データを取得する。見つからない場合はnilを返す。
	FindByLabel(ctx context.Context, label string) (*model.QuarterlyData, error)

	// ListPublishedLabels は公開済み四半期のラベルを開始日の新しい順に返す。
	ListPublishedLabels(ctx context.Context) ([]string, error)

	// Save は四半期データを1トランザクションで丸ごと置き換える。
	// 四半期が存在しない場合はstart/endを期間として新規作成する。
	// リスト項目は削除後に入力順のdisplay_orderで再挿入する。
	Save(ctx context.Context, data *model.QuarterlyData, start, end time.Time) error

	// DeleteByLabel は四半期データを削除する。子テーブルはCASCADE削除される。
	// 削除対象が存在しなかった場合はfalseを返す。
	DeleteByLabel(ctx context.Context, label string) (bool, error)
}

// AuditLogRepository は監査ログの永続化インターフェース。追記のみを提供する。
type AuditLogRepository interface {
	// Insert は監査ログを1件追加する。
	Insert(ctx context.Context, entry *model.AuditLogEntry) error
}
