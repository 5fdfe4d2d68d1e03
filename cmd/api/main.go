package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/pitwall/internal/auth"
	"github.com/BradenHooton/pitwall/internal/background"
	"github.com/BradenHooton/pitwall/internal/config"
	"github.com/BradenHooton/pitwall/internal/database"
	"github.com/BradenHooton/pitwall/internal/handlers"
	middlewareCustom "github.com/BradenHooton/pitwall/internal/middleware"
	"github.com/BradenHooton/pitwall/internal/models"
	"github.com/BradenHooton/pitwall/internal/repositories"
	"github.com/BradenHooton/pitwall/internal/repositories/memory"
	"github.com/BradenHooton/pitwall/internal/routes"
	"github.com/BradenHooton/pitwall/internal/services"
	pkghttp "github.com/BradenHooton/pitwall/pkg/http"
	pkglogger "github.com/BradenHooton/pitwall/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// stores is the set of row stores the services run on, backed either by
// Postgres or by the in-memory store.
type stores struct {
	users     services.UserRepository
	revoked   services.TokenRevocationRepository
	attempts  services.LoginAttemptRepository
	lockouts  services.LockoutRepository
	events    services.LockoutEventRepository
	questions services.SecurityQuestionRepository
	history   services.PasswordHistoryRepository
	rotator   services.PasswordRotator
	failures  services.FailureRepository
	health    handlers.HealthChecker
	cleaners  background.Cleaners
	close     func()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store_driver", cfg.Database.Driver))

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.close()

	// Initialize token manager with composite signing on the per-user TokenKey
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	tokenManager.SetUserRepo(st.users)

	auditLogger := pkglogger.NewAuditLogger(logger)
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Security.TrustedProxies}
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   time.Duration(cfg.Security.TimingDelayBaseMs) * time.Millisecond,
		RandomDelay: time.Duration(cfg.Security.TimingDelayRandMs) * time.Millisecond,
	})

	// Initialize services
	policy := models.LockoutPolicy{
		Threshold:    cfg.Lockout.Threshold,
		BaseDuration: cfg.Lockout.Duration,
		Multiplier:   cfg.Lockout.Multiplier,
		MaxDuration:  cfg.Lockout.MaxDuration,
	}
	lockoutService := services.NewLockoutService(st.attempts, st.lockouts, st.events, policy, logger, auditLogger)
	questionService := services.NewSecurityQuestionService(st.questions, logger, auditLogger)
	failureRecorder := services.NewFailureRecorder(st.failures, logger)
	authService := services.NewAuthService(
		st.users,
		st.revoked,
		lockoutService,
		questionService,
		tokenManager,
		services.AuthConfig{StoreTimeout: cfg.Auth.StoreTimeout},
		logger,
		auditLogger,
	)
	passwordService := services.NewPasswordService(
		st.users,
		st.history,
		st.rotator,
		questionService,
		authService,
		services.PasswordConfig{MinAge: cfg.Password.MinAge, HistoryDepth: cfg.Password.HistoryDepth},
		logger,
		auditLogger,
	)
	adminService := services.NewAdminService(st.users, lockoutService, logger)

	// Security notifications over SES, only when a sender is configured
	if cfg.Email.FromAddress != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		notifier, err := services.NewSESNotificationService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize notification service", slog.Any("error", err))
			os.Exit(1)
		}
		lockoutService.SetNotifier(notifier)
		passwordService.SetNotifier(notifier)
	} else {
		logger.Info("EMAIL_FROM_ADDRESS not set, security notifications disabled")
	}

	// Bootstrap first administrator if configured
	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authService.EnsureAdministrator(ctx, cfg.Admin.Email, cfg.Admin.Password, "Administrator"); err != nil {
			logger.Error("failed to ensure administrator", slog.Any("error", err))
		}
		cancel()
	}

	// Initialize handlers
	h := routes.Handlers{
		Auth:              handlers.NewAuthHandler(authService, timingDelay, failureRecorder, ipConfig),
		SecurityQuestions: handlers.NewSecurityQuestionHandler(questionService, failureRecorder, ipConfig),
		Password:          handlers.NewPasswordHandler(passwordService, timingDelay, failureRecorder, ipConfig),
		Audit:             handlers.NewAuditHandler(lockoutService, failureRecorder),
		Admin:             handlers.NewAdminHandler(adminService),
		Health:            handlers.NewHealthHandler(st.health),
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig, cfg.Server.Env))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, h, routes.Deps{
		TokenManager: tokenManager,
		Revocations:  st.revoked,
		Guard:        auth.NewCapabilityGuard(st.users, failureRecorder, ipConfig),
		IPConfig:     ipConfig,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(st.cleaners, logger, cfg.Security.CleanupInterval, cfg.Security.AuditRetention)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

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

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}
	lockoutService.WaitForNotifications()

	logger.Info("server stopped gracefully")
}

func openStores(cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		m := memory.NewStore()
		return &stores{
			users:     m,
			revoked:   m,
			attempts:  m,
			lockouts:  m,
			events:    m,
			questions: m,
			history:   m,
			rotator:   m,
			failures:  m,
			health:    m,
			cleaners:  background.Cleaners{Tokens: m, Attempts: m, Failures: m, Lockouts: m, Events: m},
			close:     func() {},
		}, nil
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := database.Migrate(ctx, db.Pool, logger); err != nil {
		db.Close()
		return nil, err
	}

	revokeRepo := repositories.NewTokenRevocationRepository(db)
	attemptRepo := repositories.NewLoginAttemptRepository(db)
	lockoutRepo := repositories.NewLockoutRepository(db)
	eventRepo := repositories.NewLockoutEventRepository(db)
	historyRepo := repositories.NewPasswordHistoryRepository(db)
	failureRepo := repositories.NewFailureRepository(db)

	return &stores{
		users:     repositories.NewUserRepository(db),
		revoked:   revokeRepo,
		attempts:  attemptRepo,
		lockouts:  lockoutRepo,
		events:    eventRepo,
		questions: repositories.NewSecurityQuestionRepository(db),
		history:   historyRepo,
		rotator:   historyRepo,
		failures:  failureRepo,
		health:    db,
		cleaners:  background.Cleaners{Tokens: revokeRepo, Attempts: attemptRepo, Failures: failureRepo, Lockouts: lockoutRepo, Events: eventRepo},
		close:     db.Close,
	}, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
