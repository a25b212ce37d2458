package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/hireflow/internal/metrics"
	"github.com/hitoshi/hireflow/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Authenticator     middleware.Authenticator
	Cookie            middleware.CookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler

	// ヘルスチェック（データベース疎通）
	HealthCheck func(ctx context.Context) error

	// サービス
	AuthService      AuthServiceInterface
	Roles            RoleResolver
	JobService       JobServiceInterface
	CandidateService CandidateServiceInterface
	AccountService   AccountServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → SessionGuard
//
// /api 配下は RequireSession → CSRF → RateLimit(General) を通る。
// セッションのないAPI呼び出しはCSRF検証より先に401で拒否される。
// 認証エンドポイントとページは CSRF を通り、ログイン・サインアップは
// さらにクライアントIP単位のレート制限を通る。
func NewRouter(deps *RouterDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	r := chi.NewRouter()

	csrfConfig := middleware.CSRFConfig{CookieSecure: deps.Cookie.Secure, CookieDomain: deps.Cookie.Domain}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionGuard(deps.Authenticator, middleware.DefaultGuardConfig(deps.Cookie)))
	csrf := middleware.NewCSRFMiddleware(csrfConfig)

	authHandler := NewAuthHandler(deps.AuthService, AuthHandlerConfig{Cookie: deps.Cookie})
	jobHandler := NewJobHandler(deps.JobService, deps.Roles)
	candidateHandler := NewCandidateHandler(deps.CandidateService, deps.Roles)
	userHandler := NewUserHandler(deps.AccountService, deps.Roles)
	pageHandler := NewPageHandler(deps.JobService, deps.CandidateService, deps.AccountService, deps.Roles)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(csrf)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.SignUp)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

		// --- API（セッション必須） ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireSessionMiddleware())
			r.Use(csrf)
			r.Use(deps.RateLimiter.GeneralMiddleware())
			registerAPIRoutes(r, userHandler, jobHandler, candidateHandler)
		})
	})

	// --- ページ（保護パスはSessionGuardがログインページへ誘導する） ---
	r.Group(func(r chi.Router) {
		r.Use(csrf)
		registerPageRoutes(r, pageHandler)
	})

	return r
}

// registerAPIRoutes は /api 配下のJSONエンドポイントを登録する。
func registerAPIRoutes(r chi.Router, userHandler *UserHandler, jobHandler *JobHandler, candidateHandler *CandidateHandler) {
	r.Get("/me", userHandler.Me)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", jobHandler.ListJobs)
		r.Post("/", jobHandler.CreateJob)
		r.Post("/import", jobHandler.ImportJobs)
		r.Patch("/{id}", jobHandler.UpdateJob)
		r.Delete("/{id}", jobHandler.DeleteJob)
	})

	r.Route("/candidates", func(r chi.Router) {
		r.Get("/", candidateHandler.ListCandidates)
		r.Post("/", candidateHandler.CreateCandidate)
		r.Get("/board", candidateHandler.Board)
		r.Get("/{id}", candidateHandler.GetCandidate)
		r.Put("/{id}/status", candidateHandler.UpdateStatus)
		r.Delete("/{id}", candidateHandler.DeleteCandidate)
	})

	r.Get("/users", userHandler.ListUsers)
	r.Put("/users/{id}/role", userHandler.ChangeRole)

	// 管理者専用（ロールはサービス層で毎回確認する）
	r.Post("/admin/create-user", userHandler.CreateUser)
	r.Delete("/admin/delete-user", userHandler.DeleteUser)
}

// registerPageRoutes はHTMLページとフォーム送信先を登録する。
func registerPageRoutes(r chi.Router, pageHandler *PageHandler) {
	r.Get("/", pageHandler.Index)
	r.Get("/login", pageHandler.Login)
	r.Get("/dashboard", pageHandler.Dashboard)

	r.Get("/jobs", pageHandler.Jobs)
	r.Post("/jobs", pageHandler.CreateJob)
	r.Post("/jobs/import", pageHandler.ImportJobs)
	r.Post("/jobs/{id}/delete", pageHandler.DeleteJob)

	r.Get("/candidates", pageHandler.Candidates)
	r.Post("/candidates", pageHandler.CreateCandidate)
	r.Post("/candidates/{id}/status", pageHandler.UpdateCandidateStatus)
	r.Post("/candidates/{id}/delete", pageHandler.DeleteCandidate)

	r.Get("/admin", pageHandler.Admin)
	r.Post("/admin/users", pageHandler.CreateUser)
	r.Post("/admin/users/{id}/delete", pageHandler.DeleteUser)
	r.Post("/admin/users/{id}/role", pageHandler.ChangeRole)
}

// healthHandler はデータベースの疎通を確認するヘルスチェックハンドラーを返す。
func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
