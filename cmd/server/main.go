package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storepilot/storepilot/internal/adapter/api"
	"github.com/storepilot/storepilot/internal/adapter/metrics"
	"github.com/storepilot/storepilot/internal/adapter/provisioner/cluster"
	pgrepo "github.com/storepilot/storepilot/internal/adapter/repository/postgres"
	redisrepo "github.com/storepilot/storepilot/internal/adapter/repository/redis"
	"github.com/storepilot/storepilot/internal/guardrail"
	"github.com/storepilot/storepilot/internal/health"
	"github.com/storepilot/storepilot/internal/pkg/config"
	"github.com/storepilot/storepilot/internal/pkg/logger"
	"github.com/storepilot/storepilot/internal/usecase"

	_ "github.com/lib/pq" // postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	startedAt := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres")

	// --- Repositories ---
	storeRepo := pgrepo.NewStoreRepository(db, log)
	userRepo := pgrepo.NewUserRepository(db)
	auditRepo := pgrepo.NewAuditRepository(db)

	// --- External provisioner ---
	prov := cluster.New(cfg.ProvisionerURL, cfg.ProvisionerTimeout, log)

	// --- Health monitor and circuit breakers ---
	monitor := health.NewMonitor(cfg.HealthInterval, log)
	m := metrics.New()
	trackBreaker := func(name string, state health.BreakerState) {
		m.BreakerState.WithLabelValues(name).Set(float64(state))
	}

	dbBreaker := health.NewBreaker("database", cfg.BreakerThreshold, cfg.BreakerCooldown)
	dbBreaker.OnTransition(trackBreaker)
	monitor.Register(dbBreaker, func(ctx context.Context) error {
		return db.PingContext(ctx)
	})

	provBreaker := health.NewBreaker("provisioner", cfg.BreakerThreshold, cfg.BreakerCooldown)
	provBreaker.OnTransition(trackBreaker)
	monitor.Register(provBreaker, prov.Ping)

	go monitor.Run(ctx)

	// --- Guardrails ---
	var cooldown guardrail.CooldownStore = guardrail.NewMemoryCooldown(cfg.CreationCooldown)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		cooldown = redisrepo.NewCooldownRepository(redisClient, cfg.CreationCooldown)
		log.Info("using redis-backed creation cooldown", "addr", cfg.RedisAddr)
	}
	guard := guardrail.NewPipeline(log,
		guardrail.NewQuotaCheck(storeRepo, cfg.MaxStoresPerOwner),
		guardrail.NewCooldownCheck(cooldown, cfg.CreationCooldown),
		guardrail.EngineCheck{},
	)

	// --- Orchestrator ---
	orch := usecase.NewOrchestrator(storeRepo, prov, auditRepo, provBreaker, m, log,
		cfg.OrchestratorWorkers, cfg.OrchestratorQueue)
	go orch.Run(ctx)

	// --- Services and router ---
	authService := usecase.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiry, log)
	storeService := usecase.NewStoreService(storeRepo, auditRepo, guard, orch, m, log)
	router := api.NewRouter(log, authService, storeService, monitor, startedAt)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		log.Info("starting control plane server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	log.Info("server shut down gracefully")
}
