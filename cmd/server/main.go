package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/panoplay/geoguess/internal/config"
	"github.com/panoplay/geoguess/internal/database"
	"github.com/panoplay/geoguess/internal/game"
	"github.com/panoplay/geoguess/internal/geo"
	"github.com/panoplay/geoguess/internal/migrations"
	"github.com/panoplay/geoguess/internal/seed"
	"github.com/panoplay/geoguess/internal/server"
	"github.com/panoplay/geoguess/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := seed.Admin(ctx, logger, db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
	}

	// --- Redis ---
	rdb, err := openRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()
	logger.Info("connected to redis")

	// --- Engine ---
	tz, err := time.LoadLocation(cfg.Game.QuotaTZ)
	if err != nil {
		return fmt.Errorf("loading quota timezone: %w", err)
	}

	st := store.NewSQLiteStore(db)
	engine, err := game.NewEngine(st, geo.Scorer{
		BaseScore:      cfg.Game.BaseScore,
		MaxErrorMeters: cfg.Game.MaxErrorMeters,
		RoundDuration:  cfg.Game.RoundDuration,
		TimeGrace:      cfg.Game.TimeGrace,
		MinTimeFactor:  cfg.Game.MinTimeFactor,
	}, game.Params{
		DailyMoves:     cfg.Game.DailyMoves,
		RoundDuration:  cfg.Game.RoundDuration,
		EasyUntilGames: cfg.Game.EasyUntilGames,
		ResetTZ:        tz,
	}, logger)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	leaderboard := game.NewLeaderboard(st, rdb, cfg.Game.LeaderboardCacheTTL,
		cfg.Game.LeaderboardPageSize, cfg.Game.LeaderboardMinGames, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, server.Deps{
		Logger:      logger,
		Engine:      engine,
		Leaderboard: leaderboard,
		Store:       st,
		DB:          db,
		Redis:       rdb,
		AuthSecret:  cfg.AuthSecret,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	// Background jobs. All three are idempotent, so overlapping or missed
	// ticks are harmless.
	g.Go(func() error {
		return every(gctx, cfg.Sweep.ExpireInterval, func() {
			if _, err := engine.ExpireStaleRounds(gctx, time.Now()); err != nil {
				logger.Error("expiry sweep failed", "error", err)
			}
		})
	})

	g.Go(func() error {
		return every(gctx, cfg.Sweep.QuotaInterval, func() {
			if _, err := engine.ResetDueQuotas(gctx, time.Now()); err != nil {
				logger.Error("quota reset sweep failed", "error", err)
			}
		})
	})

	g.Go(func() error {
		return every(gctx, cfg.Sweep.RecomputeInterval, func() {
			if err := leaderboard.RecomputeAll(gctx); err != nil {
				logger.Error("aggregate recompute failed", "error", err)
			}
		})
	})

	return g.Wait()
}

// every runs fn on a fixed interval until ctx is cancelled.
func every(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
