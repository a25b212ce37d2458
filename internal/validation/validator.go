// Package validation は入力値の検証をgo-playground/validatorで行い、
// 結果をAPIErrorに変換する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/hireflow/internal/model"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// engine はJSONタグ名でエラーを報告するバリデータを返す。
func engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterAlias("pwd", "min=6,max=72")
		v.RegisterAlias("role", "oneof=admin customer")
		v.RegisterAlias("status", "oneof=applied interview hired")
		instance = v
	})
	return instance
}

// Struct は構造体のvalidateタグを検証する。
// 必須項目の欠落がある場合は "Missing required fields"、
// それ以外の違反はフィールドごとのメッセージをまとめたValidationErrorを返す。
func Struct(s any) error {
	err := engine().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError("invalid payload")
	}

	var missing []string
	var problems []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		problems = append(problems, fe.Field()+" "+formatFieldError(fe))
	}
	if len(missing) > 0 {
		return model.NewMissingFieldsError(missing...)
	}
	return model.NewValidationError(strings.Join(problems, "; "))
}

// Var は単一の値をタグで検証する。fieldはエラーメッセージ用の名前。
func Var(field string, value any, tag string) error {
	err := engine().Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].Tag() == "required" {
			return model.NewMissingFieldsError(field)
		}
		return model.NewValidationError(field + " " + formatFieldError(verrs[0]))
	}
	return model.NewValidationError("invalid " + field)
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "email":
		return "must be a valid email address"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid (" + fe.ActualTag() + ")"
	}
}
