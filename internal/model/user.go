// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアプリケーション上の権限ロールを表す。
type Role string

const (
	// RoleAdmin は全テナントのデータとアカウントを管理できるロール。
	RoleAdmin Role = "admin"
	// RoleCustomer は自分の求人と候補者のみ操作できるロール。
	RoleCustomer Role = "customer"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// Identity は認証プロバイダが管理するログイン主体を表す。
// プロフィール（UserProfile）とは同じIDで1対1に対応する。
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	ConfirmedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はリフレッシュトークンに対応するログインセッションを表す。
// IDが不透明なリフレッシュトークンそのものとなる。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair はクライアントのCookieに保存するトークンの組を表す。
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// UserProfile はアプリケーションが管理するユーザー情報（usersテーブル）を表す。
type UserProfile struct {
	UserID    string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Scope は1リクエスト内でのデータ参照範囲を表す。
// サーバー側で解決したロールからのみ生成し、クライアント入力は用いない。
type Scope struct {
	UserID string
	Admin  bool
}
