package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/stylebook/internal/auth"
	"github.com/BradenHooton/stylebook/internal/background"
	"github.com/BradenHooton/stylebook/internal/config"
	"github.com/BradenHooton/stylebook/internal/database"
	"github.com/BradenHooton/stylebook/internal/handlers"
	"github.com/BradenHooton/stylebook/internal/metrics"
	middlewareCustom "github.com/BradenHooton/stylebook/internal/middleware"
	"github.com/BradenHooton/stylebook/internal/models"
	"github.com/BradenHooton/stylebook/internal/ratelimit"
	"github.com/BradenHooton/stylebook/internal/repositories"
	"github.com/BradenHooton/stylebook/internal/routes"
	"github.com/BradenHooton/stylebook/internal/services"
	pkgauth "github.com/BradenHooton/stylebook/pkg/auth"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
	pkglogger "github.com/BradenHooton/stylebook/pkg/logger"
)

const (
	loginTimingBase   = 250 * time.Millisecond
	loginTimingJitter = 100 * time.Millisecond
)

func main() {
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logLevel.Set(parseLogLevel(cfg.Server.LogLevel))

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	if cfg.Database.AutoMigrate {
		migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(migrateCtx, &cfg.Database, logger)
		migrateCancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	adminUserRepo := repositories.NewAdminUserRepository(db)
	serviceRepo := repositories.NewServiceRepository(db)
	clientRepo := repositories.NewClientRepository(db)
	appointmentRepo := repositories.NewAppointmentRepository(db)

	resolver, err := pkghttp.NewClientIPResolver(cfg.Server.TrustedProxyCIDRs)
	if err != nil {
		logger.Error("invalid trusted proxy ranges", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Admission control
	bookingCfg := ratelimit.WindowConfig{
		Name:      "booking",
		PerMinute: cfg.RateLimit.BookingPerMinute,
		PerHour:   cfg.RateLimit.BookingPerHour,
		MaxKeys:   cfg.RateLimit.MaxKeys,
	}
	aiCfg := ratelimit.WindowConfig{
		Name:      "ai",
		PerMinute: cfg.RateLimit.AIPerMinute,
		PerHour:   cfg.RateLimit.AIPerHour,
		MaxKeys:   cfg.RateLimit.MaxKeys,
	}

	var bookingLimiter, aiLimiter ratelimit.Limiter
	if cfg.RateLimit.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}

		bookingLimiter = ratelimit.NewRedisWindowLimiter(rdb, bookingCfg)
		aiLimiter = ratelimit.NewRedisWindowLimiter(rdb, aiCfg)
		logger.Info("rate limits shared through redis")
	} else {
		bookingLimiter = ratelimit.NewWindowLimiter(bookingCfg)
		aiLimiter = ratelimit.NewWindowLimiter(aiCfg)
		logger.Info("rate limits are per instance")
	}

	loginLimiter := ratelimit.NewBackoffLimiter(ratelimit.BackoffConfig{
		Name:       "login",
		MaxBackoff: cfg.Auth.LoginMaxBackoff,
		MaxKeys:    cfg.RateLimit.MaxKeys,
	})
	aiGate := ratelimit.NewGate("ai", cfg.AI.MaxConcurrent)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	adminCache := auth.NewAdminCache(cfg.Auth.AdminCacheTTL)
	timingDelay := auth.NewTimingDelay(loginTimingBase, loginTimingJitter)

	// Optional integrations
	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.Notify.Enabled() {
		ses, err := services.NewSESNotifier(context.Background(), cfg.Notify.AWSRegion, cfg.Notify.FromAddress, cfg.Notify.ToAddresses, logger)
		if err != nil {
			logger.Error("failed to initialize SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = ses
		logger.Info("booking notifications enabled", slog.Int("recipients", len(cfg.Notify.ToAddresses)))
	}

	var captioner services.Captioner
	if cfg.AI.Enabled() {
		captioner = services.NewOpenAICaptioner(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model, cfg.AI.Timeout, logger)
		logger.Info("haircut suggestions enabled", slog.String("model", cfg.AI.Model), slog.Int("max_concurrent", aiGate.Permits()))
	}

	// Initialize services
	bookingService := services.NewBookingService(db, serviceRepo, clientRepo, appointmentRepo, notifier, logger, auditLogger)
	appointmentService := services.NewAppointmentService(db, serviceRepo, clientRepo, appointmentRepo, logger, auditLogger)
	clientService := services.NewClientService(db, clientRepo, appointmentRepo, logger, auditLogger)
	authService := services.NewAuthService(adminUserRepo, tokenManager, loginLimiter, timingDelay, logger, auditLogger)
	suggestionService := services.NewSuggestionService(captioner, cfg.AI.MaxImageBytes, logger)

	// Initialize handlers
	publicHandler := handlers.NewPublicHandler(handlers.PublicHandlerConfig{
		Booking:        bookingService,
		Suggestions:    suggestionService,
		BookingLimiter: bookingLimiter,
		AILimiter:      aiLimiter,
		AIGate:         aiGate,
		Resolver:       resolver,
		MaxImageBytes:  cfg.AI.MaxImageBytes,
		Logger:         logger,
		AuditLogger:    auditLogger,
	})
	authHandler := handlers.NewAuthHandler(authService, resolver, logger)
	adminHandler := handlers.NewAdminHandler(appointmentService, clientService, logger)

	// Bootstrap the admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, adminUserRepo, cfg, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecureLogger(logger, resolver))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(handlerTimeout(cfg.Server.WriteTimeout)))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(metrics.InstrumentHandler)

	routes.RegisterRoutes(router, routes.Dependencies{
		PublicHandler:       publicHandler,
		AuthHandler:         authHandler,
		AdminHandler:        adminHandler,
		TokenManager:        tokenManager,
		AdminCache:          adminCache,
		AdminUsers:          adminUserRepo,
		Resolver:            resolver,
		PublicReadPerMinute: cfg.RateLimit.PublicReadPerMinute,
		Health:              db,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the stale pending monitor
	monitor := background.NewStalePendingMonitor(appointmentService, logger, cfg.Jobs.StalePendingInterval, cfg.Jobs.StalePendingAfter)
	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()

	go monitor.Start(monitorCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	monitorCancel()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates or resets the admin account from ADMIN_EMAIL and ADMIN_PASSWORD.
func ensureAdminUser(ctx context.Context, repo *repositories.AdminUserRepository, cfg *config.Config, logger *slog.Logger) error {
	email, password := cfg.Auth.AdminEmail, cfg.Auth.AdminPassword
	if email == "" || password == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
		return nil
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		if cfg.Server.Env == "production" {
			return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
		}
		logger.Warn("ADMIN_PASSWORD is weak, use a stronger one in production")
	}

	hashed, err := pkgauth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	user, err := repo.Upsert(ctx, &models.AdminUser{
		Email:        email,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		return err
	}

	logger.Info("admin user ready", slog.String("email", pkglogger.SanitizedEmail(user.Email)))
	return nil
}

// handlerTimeout leaves the server a few seconds to write a timeout response.
func handlerTimeout(writeTimeout time.Duration) time.Duration {
	if writeTimeout > 10*time.Second {
		return writeTimeout - 5*time.Second
	}
	return writeTimeout
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
