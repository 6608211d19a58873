package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/fleetops/internal/featureflags"
	"github.com/yourorg/fleetops/internal/handler"
	"github.com/yourorg/fleetops/internal/infrastructure/logger"
	"github.com/yourorg/fleetops/internal/infrastructure/redis"
	"github.com/yourorg/fleetops/internal/observability/metrics"
	"github.com/yourorg/fleetops/internal/observability/tracing"
	"github.com/yourorg/fleetops/internal/reliability/retry"
	"github.com/yourorg/fleetops/internal/repository"
	"github.com/yourorg/fleetops/internal/security"
	"github.com/yourorg/fleetops/internal/security/audit"
	"github.com/yourorg/fleetops/internal/security/auth"
	"github.com/yourorg/fleetops/internal/security/middleware"
	"github.com/yourorg/fleetops/internal/security/ratelimit"
	"github.com/yourorg/fleetops/internal/service"
	"github.com/yourorg/fleetops/internal/worker"
	"github.com/yourorg/fleetops/pkg/config"
	"github.com/yourorg/fleetops/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting fleetops server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "fleetops", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// 4. Connect PostgreSQL and apply schema
	pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "connect database",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, &database.Config{
				Host:     cfg.DBHost,
				Port:     cfg.DBPort,
				User:     cfg.DBUser,
				Password: cfg.DBPassword,
				Database: cfg.DBName,
				SSLMode:  cfg.DBSSLMode,
			}, log)
		})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		log.Error("failed to apply schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Connect Redis. The rate limiter fails open without it, so a missing
	// Redis degrades the deployment instead of blocking startup.
	var redisClient *redis.Client
	redisClient, err = retry.Do(ctx, retry.DefaultConfig(), log, "connect redis",
		func(ctx context.Context) (*redis.Client, error) {
			return redis.NewClient(cfg.RedisURL)
		})
	if err != nil {
		log.Warn("redis unavailable, rate limiting disabled", slog.String("error", err.Error()))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// 6. Repositories
	db := pool.GetDB()
	userRepo := repository.NewPostgresUserRepository(db, log)
	companyRepo := repository.NewPostgresCompanyRepository(db, log)
	truckRepo := repository.NewPostgresTruckRepository(db, log)
	employeeRepo := repository.NewPostgresEmployeeRepository(db, log)
	sessionRepo := repository.NewPostgresSessionRepository(db, log)

	// 7. Security components
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "fleetops", cfg.TokenTTL)
	auditLogger := audit.NewLogger(log)
	authz := security.NewAuthorizationService(log)
	var counter ratelimit.Counter
	if redisClient != nil {
		counter = redisClient
	}
	rateLimiter := ratelimit.NewLimiter(counter, cfg.RateLimitPerMinute, time.Minute, log)

	// 8. Services
	authService := service.NewAuthService(userRepo, companyRepo, tokenManager, auditLogger, log)
	fleetService := service.NewFleetService(truckRepo, employeeRepo, log)
	sessionService := service.NewSessionService(
		sessionRepo, truckRepo, employeeRepo,
		auditLogger, log,
		cfg.DefaultPageSize, cfg.MaxPageSize,
	)

	// 9. Handlers
	authHandler := handler.NewAuthHandler(authService, authz, log)
	sessionHandler := handler.NewSessionHandler(sessionService, log)
	fleetHandler := handler.NewFleetHandler(fleetService, log)
	var redisPinger handler.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}
	healthHandler := handler.NewHealthHandler(pool, redisPinger, log)

	// 10. Routes. protect() is the standard chain for tenant-scoped
	// endpoints: authenticate, pin the company scope, then rate limit.
	// requirePerm() gates each operation on the role permission table.
	authenticate := middleware.Authenticate(tokenManager, userRepo, log)
	tenantScope := middleware.TenantScope(authz, log)
	rateLimit := middleware.RateLimit(rateLimiter, log)
	protect := func(h http.Handler) http.Handler {
		return authenticate(tenantScope(rateLimit(h)))
	}
	requirePerm := func(p security.Permission, h http.HandlerFunc) http.Handler {
		return protect(middleware.RequirePermission(authz, auditLogger, p)(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/register", http.HandlerFunc(authHandler.Register))
	mux.Handle("POST /api/auth/login", http.HandlerFunc(authHandler.Login))
	mux.Handle("GET /api/auth/profile", protect(http.HandlerFunc(authHandler.Profile)))
	mux.Handle("PUT /api/auth/password", protect(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /api/company", protect(http.HandlerFunc(authHandler.Company)))

	mux.Handle("POST /api/truck-sessions/start", requirePerm(security.PermStartSession, sessionHandler.Start))
	mux.Handle("PUT /api/truck-sessions/{id}/end", requirePerm(security.PermEndSession, sessionHandler.End))
	mux.Handle("GET /api/truck-sessions/active", requirePerm(security.PermViewSessions, sessionHandler.Active))
	mux.Handle("GET /api/truck-sessions/history", requirePerm(security.PermViewSessions, sessionHandler.History))
	mux.Handle("GET /api/truck-sessions/analytics", requirePerm(security.PermViewAnalytics, sessionHandler.Analytics))

	mux.Handle("GET /api/trucks", requirePerm(security.PermViewFleet, fleetHandler.ListTrucks))
	mux.Handle("GET /api/trucks/{id}", requirePerm(security.PermViewFleet, fleetHandler.GetTruck))
	mux.Handle("GET /api/employees", requirePerm(security.PermViewFleet, fleetHandler.ListEmployees))
	mux.Handle("GET /api/employees/{id}", requirePerm(security.PermViewFleet, fleetHandler.GetEmployee))

	if featureflags.Enabled("live_sessions") {
		liveHandler := handler.NewLiveHandler(sessionService, tokenManager, userRepo, log, cfg.CORSAllowedOrigins)
		mux.Handle("GET /ws/sessions", liveHandler)
		log.Info("live session stream enabled")
	}

	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Input guards ahead of routing
	guarded := middleware.SanitizeInputs(log)(middleware.ValidateJSONContentType(log)(mux))

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		guarded.ServeHTTP(w, r)
	})

	// Chain: request ID -> tracing -> metrics -> CORS -> routes
	rootHandler := withRequestID(
		otelhttp.NewHandler(
			metrics.HTTPMetricsMiddleware(handlerWithCORS),
			"fleetops",
		),
		log,
	)

	// 11. Start session watchdog in background
	watchdog := worker.NewWatchdog(sessionRepo, log, cfg.WatchdogInterval, cfg.SessionMaxDuration)
	go watchdog.Start(ctx)

	// 12. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit_per_minute", cfg.RateLimitPerMinute),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop watchdog
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
