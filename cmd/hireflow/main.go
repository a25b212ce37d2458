// Command hireflow は採用管理アプリケーションのエントリーポイント。
//
//	hireflow [serve]                        HTTPサーバーを起動する
//	hireflow migrate                        マイグレーションを適用する
//	hireflow create-admin <email> <password> 最初の管理者を作成する
//	hireflow healthcheck                    /health を確認する（コンテナ用）
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/hireflow/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
