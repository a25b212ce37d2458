package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash はメールアドレスが存在しない場合にも比較処理を行い、
// 応答時間から登録有無を推測されないようにするためのハッシュ。
var (
	dummyOnce sync.Once
	dummyHash []byte
)

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword は平文パスワードと保存済みハッシュを比較する。
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func burnCompare(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("hireflow-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
