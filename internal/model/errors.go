// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, access, account, import, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeSelfDeletion       = "SELF_DELETION"
	ErrCodeNotFoundOrDenied   = "NOT_FOUND_OR_DENIED"
	ErrCodePartialFailure     = "PARTIAL_FAILURE"
	ErrCodeStore              = "STORE_ERROR"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeFeedNotDetected    = "FEED_NOT_DETECTED"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeFetchFailed        = "FETCH_FAILED"
	ErrCodeParseFailed        = "PARSE_FAILED"
	ErrCodeCSRF               = "CSRF_INVALID"
	ErrCodeRateLimited        = "RATE_LIMITED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Forbidden - Admin only",
		Category: "access",
		Action:   "管理者に操作を依頼してください。",
	}
}

// NewValidationError は入力値エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewMissingFieldsError は必須項目の欠落エラーを生成する。
func NewMissingFieldsError(fields ...string) *APIError {
	action := "必須項目をすべて入力してください。"
	if len(fields) > 0 {
		action = fmt.Sprintf("次の項目を入力してください: %s", strings.Join(fields, ", "))
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "Missing required fields",
		Category: "validation",
		Action:   action,
	}
}

// NewSelfDeletionError は自分自身を削除しようとした場合のエラーを生成する。
func NewSelfDeletionError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfDeletion,
		Message:  "Cannot delete yourself",
		Category: "account",
		Action:   "別の管理者アカウントから削除してください。",
	}
}

// NewNotFoundOrDeniedError は対象が存在しないか参照権限がない場合のエラーを生成する。
// 両者は呼び出し元から区別できない。
func NewNotFoundOrDeniedError(kind, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFoundOrDenied,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", kind, id),
		Category: "access",
		Action:   "一覧を再読み込みしてから操作してください。",
	}
}

// NewPartialFailureError は複数ステップの操作が途中で失敗し、
// 手動での復旧が必要な状態になった場合のエラーを生成する。
func NewPartialFailureError(message, remediation string) *APIError {
	return &APIError{
		Code:     ErrCodePartialFailure,
		Message:  message,
		Category: "account",
		Action:   remediation,
	}
}

// NewStoreError はデータストアの失敗を表すエラーを生成する。
// 内部の詳細はログにのみ出力し、messageには利用者向けの文言を渡す。
func NewStoreError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeStore,
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// メールアドレスの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "account",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLから求人フィードを検出できませんでした: %s", url),
		Category: "import",
		Action:   "RSS/AtomフィードのURLを直接入力するか、フィードが公開されているページのURLを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "import",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "import",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
