package handler

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/irportal/internal/middleware"
	"github.com/hitoshi/irportal/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionReader     middleware.SessionReader
	CORSAllowedOrigin string
	TrustedProxies    []*net.IPNet
	HTTPObserver      middleware.HTTPObserver
	Logger            *slog.Logger

	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService   AuthServiceInterface
	SessionWriter SessionWriter

	// 四半期データ
	QuarterService QuarterServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → ClientIP → SecurityHeaders → CORS → Session → Logging → Metrics
//
// Sessionはセッションの解決のみを行い、拒否はルートごとのRequireRoleが行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewClientIPMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionReader))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.HTTPObserver != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPObserver))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionWriter)
	quarterlyHandler := NewQuarterlyHandler(deps.QuarterService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.RequireSession).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	r.Route("/api/quarterly-data", func(r chi.Router) {
		r.With(middleware.RequireSession).Get("/", quarterlyHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Post("/", quarterlyHandler.Save)
			r.Delete("/", quarterlyHandler.Delete)
		})
	})

	// ユーザー管理は管理者のみ
	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.RequireRole(model.RoleAdmin))
		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Add)
		r.Delete("/", userHandler.Remove)
	})

	return r
}
