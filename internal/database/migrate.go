// Package database はデータベース接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLogger はgolang-migrateのログをslogへ流すアダプタ。
type migrationLogger struct {
	logger *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrationLogger) Verbose() bool {
	return false
}

// NewMigrator はマイグレーション実行用のmigrateインスタンスを生成する。
// databaseURLはPostgreSQLの接続URLを指定する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrationLogger{logger: slog.Default()}

	return m, nil
}

// RunMigrations はすべてのマイグレーションを適用し、適用前後のバージョンをログに出力する。
// すでに最新の場合はエラーなしで返る。前回の失敗でdirty状態のときは適用せずエラーを返す。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	from, dirty, err := currentVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("database is dirty at migration version %d: fix the schema manually and force the version", from)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("マイグレーションは最新です", slog.Uint64("version", uint64(from)))
			return nil
		}
		return fmt.Errorf("failed to run migrations from version %d: %w", from, err)
	}

	to, _, err := currentVersion(m)
	if err != nil {
		return err
	}
	attrs := []any{
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(to)),
	}
	if latest, err := LatestVersion(); err == nil {
		attrs = append(attrs, slog.Uint64("latest_version", uint64(latest)))
	}
	slog.Info("マイグレーションを適用しました", attrs...)
	return nil
}

// currentVersion は適用済みのバージョンを返す。未適用の場合は0を返す。
func currentVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return v, dirty, nil
}

// LatestVersion は埋め込まれたマイグレーションの最新バージョンを返す。
func LatestVersion() (uint, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to create migration source: %w", err)
	}
	defer source.Close()

	v, err := source.First()
	if err != nil {
		return 0, fmt.Errorf("failed to read first migration: %w", err)
	}
	for {
		next, err := source.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read migration after version %d: %w", v, err)
		}
		v = next
	}
}
