// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/hireflow/internal/access"
	"github.com/hitoshi/hireflow/internal/auth"
	"github.com/hitoshi/hireflow/internal/candidate"
	"github.com/hitoshi/hireflow/internal/config"
	"github.com/hitoshi/hireflow/internal/database"
	"github.com/hitoshi/hireflow/internal/handler"
	"github.com/hitoshi/hireflow/internal/job"
	"github.com/hitoshi/hireflow/internal/jobfeed"
	"github.com/hitoshi/hireflow/internal/logger"
	"github.com/hitoshi/hireflow/internal/metrics"
	"github.com/hitoshi/hireflow/internal/middleware"
	"github.com/hitoshi/hireflow/internal/model"
	"github.com/hitoshi/hireflow/internal/repository"
	"github.com/hitoshi/hireflow/internal/security"
	"github.com/hitoshi/hireflow/internal/user"
)

// healthCheckTimeout は/healthでのデータベース疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.FormatJSON, "info")

	// 2. .envがあれば環境変数として読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定に従ってログを再設定する
	logger.SetupDefault(w, cfg.LogFormat, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateAdmin:
		return runCreateAdmin(context.Background(), cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続（通常権限と管理者権限）
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	adminDB := db
	if cfg.AdminDatabaseURL != cfg.DatabaseURL {
		adminDB, err = openDatabase(cfg.AdminDatabaseURL)
		if err != nil {
			return err
		}
		defer adminDB.Close()
	}

	slog.Info("database connection established")

	// 2. ワイヤリング
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	router, cleanup := newHandler(cfg, db, adminDB, reg)
	defer cleanup()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newHandler はDB接続から全依存関係をワイヤリングし、HTTPハンドラーを構築する。
// adminDBはアカウント管理（identityとプロフィールの作成・削除）にのみ使用する。
// 返されたcleanupでレート制限のバックグラウンド処理を停止する。
func newHandler(cfg *config.Config, db, adminDB *sql.DB, reg *prometheus.Registry) (http.Handler, func()) {
	// 1. リポジトリの初期化
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)
	candidateRepo := repository.NewPostgresCandidateRepo(db)

	adminIdentRepo := repository.NewPostgresIdentityRepo(adminDB)
	adminSessionRepo := repository.NewPostgresSessionRepo(adminDB)
	adminUserRepo := repository.NewPostgresUserRepo(adminDB)

	// 2. セキュリティ・メトリクスの初期化
	urlGuard := security.NewURLGuard()
	sanitizer := security.NewTextSanitizer()
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	authConfig := authServiceConfig(cfg)
	authService := auth.NewService(identRepo, sessionRepo, authConfig)
	identityAdmin := auth.NewService(adminIdentRepo, adminSessionRepo, authConfig)

	resolver := access.NewResolver(userRepo)

	importer := jobfeed.NewImporter(urlGuard, sanitizer, jobfeed.Config{
		Timeout:  cfg.ImportTimeout,
		MaxSize:  cfg.ImportMaxSize,
		MaxItems: cfg.ImportMaxItems,
	})
	jobService := job.NewService(jobRepo, sanitizer, importer, collector)
	candidateService := candidate.NewService(candidateRepo, sanitizer, urlGuard)
	accountService := user.NewService(identityAdmin, adminUserRepo, resolver, collector)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Authenticator:     authService,
		Cookie:            middleware.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthCheck: func(ctx context.Context) error {
			return database.Ping(ctx, db, healthCheckTimeout)
		},

		AuthService:      authService,
		Roles:            resolver,
		JobService:       jobService,
		CandidateService: candidateService,
		AccountService:   accountService,
	})

	return router, rateLimiter.Stop
}

// runMigrate はデータベースマイグレーションを実行する。
// テーブル所有者の権限が必要なため管理者用の接続URLを使用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.AdminDatabaseURL)),
	)

	if err := database.RunMigrations(cfg.AdminDatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCreateAdmin は最初の管理者アカウントを作成する。
// 管理画面からのアカウント作成には既存の管理者が必要なため、初期構築時に使用する。
func runCreateAdmin(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: hireflow create-admin <email> <password>")
	}

	db, err := openDatabase(cfg.AdminDatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	identities := auth.NewService(
		repository.NewPostgresIdentityRepo(db),
		repository.NewPostgresSessionRepo(db),
		authServiceConfig(cfg),
	)
	profile, err := bootstrapAdmin(ctx, identities, repository.NewPostgresUserRepo(db), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin account created",
		slog.String("user_id", profile.UserID),
		slog.String("email", profile.Email),
	)
	return nil
}

// profileCreator はプロフィール作成のインターフェース。
type profileCreator interface {
	Create(ctx context.Context, profile *model.UserProfile) error
}

// bootstrapAdmin はidentityとadminロールのプロフィールを作成する。
// プロフィールの作成に失敗した場合はidentityを削除して元に戻す。
func bootstrapAdmin(
	ctx context.Context,
	identities user.IdentityAdmin,
	profiles profileCreator,
	email, password string,
) (*model.UserProfile, error) {
	identity, err := identities.CreateIdentity(ctx, email, password)
	if err != nil {
		return nil, err
	}

	profile := &model.UserProfile{
		UserID:    identity.ID,
		Email:     identity.Email,
		Role:      model.RoleAdmin,
		CreatedAt: time.Now(),
	}
	if err := profiles.Create(ctx, profile); err != nil {
		if delErr := identities.DeleteIdentity(ctx, identity.ID); delErr != nil {
			return nil, fmt.Errorf("failed to create profile (%v); identity %s remains: %w", err, identity.ID, delErr)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", maskDatabaseURL(databaseURL), err)
	}
	return db, nil
}

func authServiceConfig(cfg *config.Config) auth.ServiceConfig {
	return auth.ServiceConfig{
		Secret:         cfg.SessionSecret,
		Issuer:         cfg.BaseURL,
		AccessTokenTTL: cfg.AccessTokenTTL,
		SessionMaxAge:  cfg.SessionMaxAge,
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
