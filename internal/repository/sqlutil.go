package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/hireflow/internal/model"
	"github.com/lib/pq"
)

// PostgreSQLのエラーコード
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

// wrapPQError はドライバのエラーをリポジトリのセンチネルエラーに変換する。
// 一意制約違反はErrDuplicate、外部キー違反と不正なUUID表現はErrNotFoundとして扱う。
func wrapPQError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case pqForeignKeyViolation, pqInvalidText:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireAffected は更新系クエリが1行以上に作用したことを確認する。
func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// likePattern はILIKE用に部分一致パターンを生成する。
// ワイルドカード文字はエスケープする。
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// nullString は空文字列をNULLとして扱う。
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr はNULL許容文字列をポインタに変換する。
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ownerClause は管理者以外の場合に所有者条件を付与する。
// 付与した場合は追加の引数を返す。
func ownerClause(scope model.Scope, column string, args []any) (string, []any) {
	if scope.Admin {
		return "", args
	}
	args = append(args, scope.UserID)
	return fmt.Sprintf(" AND %s = $%d", column, len(args)), args
}
