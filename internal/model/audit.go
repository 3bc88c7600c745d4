package model

import "time"

// AuditAction は監査ログに記録する操作種別。
type AuditAction string

const (
	AuditLoginSuccess        AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailed         AuditAction = "LOGIN_FAILED"
	AuditLogout              AuditAction = "LOGOUT"
	AuditViewQuarterlyData   AuditAction = "VIEW_QUARTERLY_DATA"
	AuditUpdateQuarterlyData AuditAction = "UPDATE_QUARTERLY_DATA"
	AuditDeleteQuarterlyData AuditAction = "DELETE_QUARTERLY_DATA"
	AuditCreateUser          AuditAction = "CREATE_USER"
	AuditDeleteUser          AuditAction = "DELETE_USER"
)

// 監査対象のエンティティ種別
const (
	EntityUser          = "user"
	EntityQuarterlyData = "quarterly_data"
)

// AuditLogEntry は特権操作の監査記録を表す。追記のみで更新・削除はしない。
// UserIDは未認証のログイン失敗時にnilとなる。
type AuditLogEntry struct {
	ID         string
	UserID     *string
	Action     AuditAction
	EntityType string
	EntityID   string
	Details    map[string]any
	IPAddress  string
	CreatedAt  time.Time
}
