package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, quarter, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeNotWhitelisted  = "NOT_WHITELISTED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeInvalidQuarter  = "INVALID_QUARTER"
	ErrCodeQuarterNotFound = "QUARTER_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeDuplicateEmail  = "DUPLICATE_EMAIL"
	ErrCodeProtectedUser   = "PROTECTED_USER"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewUnauthenticatedError はセッションが無い・期限切れ・不正な場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Not authenticated",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewNotWhitelistedError はホワイトリストに無いメールアドレスでのログイン失敗エラーを生成する。
func NewNotWhitelistedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotWhitelisted,
		Message:  "Access denied. Email not whitelisted.",
		Category: "auth",
		Action:   "Contact the investor relations team to request access.",
	}
}

// NewForbiddenError は有効なセッションだが権限が不足している場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "This operation requires an administrator account.",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Invalid request body",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewValidationError は必須項目の欠落や値の不正を表すエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Check the submitted fields and try again.",
	}
}

// NewInvalidQuarterError は "Qn YYYY" 形式ではない四半期ラベルのエラーを生成する。
func NewInvalidQuarterError(label string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuarter,
		Message:  fmt.Sprintf("Invalid quarter label: %q", label),
		Category: "validation",
		Action:   `Use the format "Q1 2024" (Q1-Q4 followed by a four-digit year).`,
	}
}

// NewQuarterNotFoundError は四半期データが見つからない場合のエラーを生成する。
func NewQuarterNotFoundError(label string) *APIError {
	return &APIError{
		Code:     ErrCodeQuarterNotFound,
		Message:  "Quarter not found",
		Category: "quarter",
		Action:   fmt.Sprintf("No data has been saved for %q yet.", label),
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found or could not be deleted",
		Category: "user",
		Action:   "Reload the user list and try again.",
	}
}

// NewDuplicateEmailError は既にホワイトリストに登録済みのメールアドレスを追加しようとした場合のエラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("A user with email %s already exists", email),
		Category: "user",
		Action:   "Use a different email address or edit the existing user.",
	}
}

// NewProtectedUserError はsuper_adminの削除や付与が拒否された場合のエラーを生成する。
func NewProtectedUserError() *APIError {
	return &APIError{
		Code:     ErrCodeProtectedUser,
		Message:  "Super admin accounts can only be managed by a super admin and cannot be deleted",
		Category: "user",
		Action:   "Ask a super admin to perform this change.",
	}
}
