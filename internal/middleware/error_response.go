package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/hireflow/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// statusByCode はエラーコードに対応するHTTPステータス。
var statusByCode = map[string]int{
	model.ErrCodeUnauthorized:       http.StatusUnauthorized,
	model.ErrCodeInvalidCredentials: http.StatusUnauthorized,
	model.ErrCodeForbidden:          http.StatusForbidden,
	model.ErrCodeCSRF:               http.StatusForbidden,
	model.ErrCodeSSRFBlocked:        http.StatusForbidden,
	model.ErrCodeValidation:         http.StatusBadRequest,
	model.ErrCodeSelfDeletion:       http.StatusBadRequest,
	model.ErrCodeInvalidURL:         http.StatusBadRequest,
	model.ErrCodeNotFoundOrDenied:   http.StatusNotFound,
	model.ErrCodeEmailTaken:         http.StatusConflict,
	model.ErrCodeFeedNotDetected:    http.StatusUnprocessableEntity,
	model.ErrCodeParseFailed:        http.StatusUnprocessableEntity,
	model.ErrCodeRateLimited:        http.StatusTooManyRequests,
	model.ErrCodeFetchFailed:        http.StatusBadGateway,
	model.ErrCodePartialFailure:     http.StatusInternalServerError,
	model.ErrCodeStore:              http.StatusInternalServerError,
}

// StatusForError はAPIErrorのコードに対応するHTTPステータスを返す。
// 未定義のコードは500とする。
func StatusForError(apiErr *model.APIError) int {
	if status, ok := statusByCode[apiErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AsAPIError はエラーをAPIErrorに変換する。
// APIErrorでないエラーはデータストアの失敗とみなし、詳細をログに出力して汎用メッセージに置き換える。
func AsAPIError(r *http.Request, err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	slog.Error("リクエストの処理に失敗しました",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	return model.NewStoreError("データの読み書きに失敗しました。")
}

// WriteError はエラーを統一フォーマットのJSONで書き込む。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := AsAPIError(r, err)
	WriteErrorResponse(w, StatusForError(apiErr), apiErr)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteJSON は値をJSONで書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("JSONレスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewStoreError("内部エラーが発生しました。"))
}
