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

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/tipline/internal/app/migrate"
	"github.com/splax/tipline/internal/bot"
	"github.com/splax/tipline/internal/chain"
	httpx "github.com/splax/tipline/internal/http"
	"github.com/splax/tipline/internal/repository"
	"github.com/splax/tipline/internal/repository/memory"
	"github.com/splax/tipline/internal/repository/postgres"
	"github.com/splax/tipline/internal/service/transfer"
	"github.com/splax/tipline/internal/service/wallet"
	"github.com/splax/tipline/internal/ws"
	"github.com/splax/tipline/pkg/config"
	"github.com/splax/tipline/pkg/logger"
)

type store interface {
	repository.UserRepository
	repository.WalletRepository
	repository.LedgerRepository
}

func main() {
	cfg := config.LoadTiplineConfig()
	log := logger.New("tipline", slog.LevelInfo)

	if err := cfg.Validate(); err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo     store
		dbHealth func(context.Context) error
	)
	repo = memory.New()
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		runner, err := migrate.New(pool, dsn, cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		defer runner.Close()
		if err := runner.Ping(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		repo = postgres.New(pool)
		dbHealth = pool.Ping
	}

	gateway, err := chain.DialEthereum(cfg.ChainRPCURL, cfg.ChainID)
	if err != nil {
		log.Error("failed to initialise chain gateway", "error", err)
		os.Exit(1)
	}

	limiter := bot.NewMemoryRateLimiter(cfg.RateLimit, cfg.RateWindow)
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := bot.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, cfg.RateLimit, cfg.RateWindow, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}
	defer limiter.Close()

	access := bot.NewAccessController(repo, log)
	walletSvc := wallet.New(repo, repo, gateway, log, cfg.ChainCallTimeout)
	transferSvc := transfer.New(gateway, repo, repo, log, cfg.ChainCallTimeout, cfg.SessionTTL)
	go transferSvc.Run(ctx)

	dispatcher := bot.NewRouter(log, access, limiter, transferSvc, walletSvc, cfg.HistoryLimit)
	hub := ws.NewHub()
	router := httpx.NewRouter(log, dispatcher, access, hub, cfg.WebhookSecret, cfg.JWTSecret, dbHealth)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("tipline server starting", "addr", cfg.Addr, "chain_id", cfg.ChainID)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("tipline server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
