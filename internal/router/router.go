package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/handler"
	"github.com/certexam/certexam-backend/internal/middleware"
	"github.com/certexam/certexam-backend/internal/response"
	"github.com/certexam/certexam-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Exam    *handler.ExamHandler
	Session *handler.SessionHandler
	Admin   *handler.AdminHandler
	Media   *handler.MediaHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// Services are the services middlewares authenticate against.
type Services struct {
	Auth     *service.AuthService
	Sessions *service.ExamSessionService
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	services Services,
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After", "X-RateLimit-Remaining"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Media uploads are incompressible already.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return strings.HasSuffix(c.Request.URL.Path, "/media")
		},
	}))

	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)

	// ─── 1. Public Exam Group (Rate Limited) ───────────────────────────
	exams := router.Group("/api/v1/exams/:exam_id")
	exams.Use(limiter.Middleware())
	{
		exams.GET("/config", middleware.CacheControl(60), handlers.Exam.GetConfig)
		exams.POST("/gate/verify", handlers.Exam.VerifyGate)
		exams.POST("/redeem", handlers.Exam.RedeemCode)
		exams.POST("/sessions", handlers.Exam.StartSession)
	}

	// ─── 2. Session Group (Session Token) ──────────────────────────────
	sessions := router.Group("/api/v1/sessions/:session_id")
	sessions.Use(middleware.RequireSessionToken(services.Sessions, log), middleware.NoStore())
	{
		sessions.GET("", handlers.Session.GetSession)
		sessions.GET("/questions", handlers.Session.GetQuestions)
		sessions.POST("/answers", handlers.Session.SubmitAnswer)
		sessions.POST("/finish", handlers.Session.FinishSession)
		sessions.POST("/consume-permission", handlers.Session.ConsumePermission)
		sessions.POST("/media", handlers.Media.UploadMedia)
	}

	// ─── 3. WebSocket Group (Session Token via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:session_id/stream", middleware.RequireStreamToken(services.Sessions, log), handlers.WS.SessionStream)
	}

	// ─── 4. Auth Group (Rate Limited) ──────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/admin/login", limiter.Middleware(), handlers.Auth.AdminLogin)

		authed := auth.Group("/admin")
		authed.Use(
			middleware.RequireAdminJWT(services.Auth),
			middleware.CheckAdminSession(services.Auth),
		)
		authed.POST("/logout", handlers.Auth.AdminLogout)
		authed.GET("/me", handlers.Auth.GetAdminProfile)
	}

	// ─── 5. Admin Group (JWT + Session + Role) ─────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireAdminJWT(services.Auth),
		middleware.CheckAdminSession(services.Auth),
		middleware.RequireAdminRole(),
		middleware.NoStore(),
	)
	{
		adminAPI.GET("/results", handlers.Admin.ListResults)
		adminAPI.GET("/results/:session_id", handlers.Admin.GetResult)

		adminAPI.GET("/exams/:exam_id/settings", handlers.Admin.GetSettings)
		adminAPI.PUT("/exams/:exam_id/settings", handlers.Admin.UpdateSettings)
		adminAPI.POST("/exams/:exam_id/codes", handlers.Admin.IssueCodes)

		adminAPI.GET("/system/metrics", handlers.System.Metrics)
	}

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	return router
}
