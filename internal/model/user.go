// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleInvestor は閲覧専用の投資家ロール。
	RoleInvestor Role = "investor"
	// RoleAdmin は四半期データとユーザーを編集できる管理者ロール。
	RoleAdmin Role = "admin"
	// RoleSuperAdmin は最上位の管理者ロール。UIおよびサーバー側で削除から保護される。
	RoleSuperAdmin Role = "super_admin"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleInvestor, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// User はホワイトリストに登録されたポータル利用者を表す。
// Emailは常に小文字で保持する。
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	AddedDate time.Time  `json:"added_date"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Session はログイン時点のユーザーのスナップショットと有効期限を保持する。
// Userは参照ではなく値のコピーであり、ロール変更は再ログインまで反映されない。
type Session struct {
	User    User      `json:"user"`
	Expires time.Time `json:"expires"`
}

// Expired はnow時点でセッションが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return s.Expires.Before(now)
}
