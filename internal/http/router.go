package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"docguard/internal/metrics"
	"docguard/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	pool *pgxpool.Pool,
	jwtSvc *service.JWTService,
	collector *metrics.Collector,
	authH *AuthHandler,
	docH *DocumentHandler,
	reportH *ReportHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y metricas.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())
	if collector != nil {
		r.Use(collector.Middleware())
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		if pool != nil {
			if err := pool.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/auth")
	auth.POST("/login", authH.Login)
	auth.POST("/verify-2fa", authH.VerifyTwoFactor)
	auth.POST("/refresh", authH.RefreshToken)

	authed := r.Group("/", JWTAuthMiddleware(jwtSvc))
	authed.POST("/auth/logout", authH.Logout)
	authed.GET("/auth/me", authH.Me)

	docs := authed.Group("/documents")
	docs.POST("", docH.Upload)
	docs.GET("", docH.List)
	docs.GET("/:id", docH.Get)
	docs.GET("/:id/content", docH.Content)
	docs.GET("/:id/download", docH.Download)
	docs.GET("/:id/findings", docH.Findings)
	docs.GET("/:id/permissions", docH.Permissions)
	docs.PUT("/:id/permissions", docH.UpdatePermissions)
	docs.POST("/:id/share", docH.Share)
	docs.DELETE("/:id", docH.Delete)

	admin := authed.Group("/admin", RequireRole("admin"))
	admin.POST("/users", authH.CreateUser)
	admin.GET("/users", authH.ListUsers)

	reports := authed.Group("/reports", RequireRole("admin"))
	reports.GET("/stats", reportH.Stats)
	reports.GET("/activity", reportH.Activity)
	reports.GET("/export", reportH.Export)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
