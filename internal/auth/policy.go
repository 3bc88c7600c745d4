package auth

import "github.com/hitoshi/irportal/internal/model"

// IsAuthorized はuserがrequiredロールの操作を行えるかを判定する。
// requiredが空の場合は認証済みであれば許可する。
// adminはadminとsuper_adminに、super_adminはsuper_adminのみに許可する。
func IsAuthorized(user *model.User, required model.Role) bool {
	if user == nil {
		return false
	}
	switch required {
	case "":
		return true
	case model.RoleInvestor:
		return user.Role.Valid()
	case model.RoleAdmin:
		return user.Role == model.RoleAdmin || user.Role == model.RoleSuperAdmin
	case model.RoleSuperAdmin:
		return user.Role == model.RoleSuperAdmin
	default:
		return false
	}
}
