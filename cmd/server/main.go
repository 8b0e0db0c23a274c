package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoPolymarket/fundgate/internal/config"
	"github.com/GoPolymarket/fundgate/internal/events"
	"github.com/GoPolymarket/fundgate/internal/handler"
	"github.com/GoPolymarket/fundgate/internal/middleware"
	"github.com/GoPolymarket/fundgate/internal/pkg/logger"
	"github.com/GoPolymarket/fundgate/internal/repository"
	"github.com/GoPolymarket/fundgate/internal/service"
	"github.com/GoPolymarket/fundgate/internal/signer"
)

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	// 2. Persistence: Redis for cache and idempotency, Postgres for records
	// and audit. Each falls back to memory.
	var cache service.FundCache
	var idempotency middleware.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := repository.NewRedisClient(cfg)
		if err == nil {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
			defer redisClient.Close()
			cache = repository.NewRedisFundCache(redisClient, seconds(cfg.Redis.CacheTTLSeconds))
			idempotency = repository.NewRedisIdempotencyStore(redisClient, seconds(cfg.Redis.IdempotencyTTLSeconds))
		} else {
			logger.Error("failed to connect to redis, falling back to memory", "error", err)
		}
	}
	if idempotency == nil {
		idempotency = middleware.NewInMemIdempotencyStore(seconds(cfg.Redis.IdempotencyTTLSeconds))
	}

	var store service.FundStore
	var auditRepo *repository.PostgresAuditRepo
	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err == nil {
			logger.Info("connected to postgres")
			defer db.Close()
			store = repository.NewPostgresFundRepo(db)
			auditRepo = repository.NewPostgresAuditRepo(db)
		} else {
			logger.Error("failed to connect to postgres, records are memory-only", "error", err)
		}
	}
	if store == nil {
		store = service.NewMemoryFundStore()
	}

	// 3. Chain access and signatures
	chain := service.NewChainClient(cfg.Chain.RPCURL, millis(cfg.Chain.TimeoutMs), cfg.Chain.Retries)
	var safe service.SafeVerifier
	if chain.Configured() {
		safe = service.NewEIP1271Verifier(chain, seconds(cfg.Chain.EIP1271CacheSeconds))
	}
	domain, err := signer.NewDomain(cfg.Chain.ChainID, cfg.Chain.RegistryAddress)
	if err != nil {
		log.Fatalf("Invalid signing domain: %v", err)
	}
	auth := service.NewAuthorizer(domain, safe, cfg.Auth.RequireFundSignature)

	// 4. Services
	var auditStore service.AuditRepo
	if auditRepo != nil {
		auditStore = auditRepo
	}
	auditSvc, err := service.NewAuditService(cfg.Audit.Dir, auditStore)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}
	hub := events.NewHub()
	funds := service.NewFundService(store, cache, auth, hub, cfg.Fees.Unit)

	router := handler.NewRouter(handler.Deps{
		Config:      cfg,
		Funds:       funds,
		Inspector:   service.NewChainInspector(chain),
		Operators:   service.NewOperatorRegistry(cfg),
		Audit:       auditSvc,
		Hub:         hub,
		Idempotency: idempotency,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if auditRepo != nil {
		go auditCleanup(ctx, auditRepo, cfg)
	}

	// 5. Serve with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("fundgate started", "port", cfg.Server.Port, "read_only", cfg.Server.ReadOnly, "signatures", auth.Required())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	auditSvc.Close()

	logger.Info("server exiting")
}

// auditCleanup prunes audit rows past the retention window.
func auditCleanup(ctx context.Context, repo *repository.PostgresAuditRepo, cfg *config.Config) {
	retention := time.Duration(cfg.Database.AuditRetentionDays) * 24 * time.Hour
	if retention <= 0 {
		return
	}
	interval := time.Duration(cfg.Database.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.Cleanup(ctx, retention); err != nil {
				logger.Error("audit cleanup failed", "error", err)
			}
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
