package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docguard/internal/config"
	"docguard/internal/db"
	"docguard/internal/email"
	apihttp "docguard/internal/http"
	"docguard/internal/metrics"
	"docguard/internal/repository"
	"docguard/internal/scan"
	"docguard/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.MigrateOnStart {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	docRepo := repository.NewPgDocumentRepository(pool)
	permRepo := repository.NewPgPermissionRepository(pool)
	activityRepo := repository.NewPgActivityRepository(pool)
	reportRepo := repository.NewPgReportRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		twoFactorLimiter = service.NewMemoryRateLimiter(10*time.Minute, 3)
		challengeStore   = service.NewMemoryChallengeStore()
		tokenStore       service.RefreshTokenStore
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			twoFactorLimiter = service.NewRedisRateLimiter(redisClient, 10*time.Minute, 3)
			challengeStore = service.NewRedisChallengeStore(redisClient)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	collector := metrics.NewCollector()

	recorder := service.NewActivityRecorder(logger, activityRepo, 256)
	recorder.Start(ctx)
	defer recorder.Stop()

	scanner := scan.NewHTTPClient(cfg.ScannerBaseURL, cfg.ScannerAPIKey, logger)
	dispatcher := service.NewScanDispatcher(logger, scanner, docRepo, collector)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	userSvc := service.NewUserService(logger, userRepo)
	twoFactorSvc := service.NewTwoFactorService(logger, challengeStore, emailSender, twoFactorLimiter)
	docSvc := service.NewDocumentService(logger, docRepo, permRepo, userRepo, dispatcher, recorder, cfg.MaxUploadMB<<20)
	reportSvc := service.NewReportService(logger, reportRepo, activityRepo, userRepo)

	authHandler := apihttp.NewAuthHandler(logger, userSvc, jwtSvc, twoFactorSvc, recorder)
	docHandler := apihttp.NewDocumentHandler(logger, docSvc, collector, cfg.MaxUploadMB)
	reportHandler := apihttp.NewReportHandler(logger, reportSvc)
	router := apihttp.NewRouter(logger, pool, jwtSvc, collector, authHandler, docHandler, reportHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
