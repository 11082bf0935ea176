package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Cypher/internal/adapters/http"
	"github.com/dkeye/Cypher/internal/adapters/store"
	"github.com/dkeye/Cypher/internal/app"
	"github.com/dkeye/Cypher/internal/app/battle"
	"github.com/dkeye/Cypher/internal/app/orch"
	"github.com/dkeye/Cypher/internal/config"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg.Log)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(c config.LogConfig) {
	if c.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Str("level", c.Level).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	policy, err := app.ParsePolicy(cfg.SlowConsumerPolicy)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	sink, results, worker, closeStores, err := setupStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	reg := app.NewRegistry(policy)
	rooms := app.NewRoomManager(reg, sink, roomSettings(cfg))
	defer rooms.Close()
	relay := app.NewSignalRelay(reg, app.NewRateLimiter(cfg.Signal.RateLimit))
	o := orch.New(reg, rooms, relay)

	r := router.SetupRouter(ctx, cfg, o, results)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Cypher server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	if cfg.IdleTimeout > 0 {
		g.Go(func() error {
			reg.RunReaper(ctx, cfg.IdleTimeout/4, cfg.IdleTimeout)
			return nil
		})
	}
	if worker != nil {
		g.Go(func() error { return worker.Run(ctx) })
	}

	return g.Wait()
}

func roomSettings(cfg *config.Config) app.RoomSettings {
	caps := make(map[domain.RoomKind]int, len(cfg.Rooms.Capacity))
	for k, v := range cfg.Rooms.Capacity {
		kind, err := domain.ParseRoomKind(k)
		if err != nil {
			log.Warn().Str("kind", k).Msg("ignoring capacity for unknown room kind")
			continue
		}
		caps[kind] = v
	}
	return app.RoomSettings{
		MaxCapacity: cfg.Rooms.MaxCapacity,
		Capacity:    caps,
		Battle: battle.Config{
			MaxRounds:     cfg.Battle.MaxRounds,
			RoundDuration: cfg.Battle.RoundDuration,
			VotingWindow:  cfg.Battle.VotingWindow,
		},
	}
}

// setupStores assembles the result sinks from whatever backends are
// configured. The log sink and in-memory store are always present.
func setupStores(ctx context.Context, cfg *config.Config) (core.ResultSink, core.ResultReader, *store.Worker, func(), error) {
	mem := store.NewMemory()
	sinks := store.Multi{store.NewLogSink(log.Logger), mem}
	readers := store.Readers{mem}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (core.ResultSink, core.ResultReader, *store.Worker, func(), error) {
		closeAll()
		return nil, nil, nil, func() {}, err
	}

	var pg *store.Postgres
	if cfg.Database.URL != "" {
		pool, err := store.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)
		pg = store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		log.Info().Str("module", "store").Msg("postgres result store ready")
	}

	if cfg.Redis.URL != "" {
		client, err := store.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = client.Close() })
		cache := store.NewRedisCache(client, cfg.Redis.ResultTTL)
		sinks = append(sinks, cache)
		readers = append(readers, cache)
		log.Info().Str("module", "store").Msg("redis result cache ready")
	}

	var worker *store.Worker
	switch {
	case pg != nil && cfg.Queue.Enabled && cfg.Redis.URL != "":
		opt, err := asynq.ParseRedisURI(cfg.Redis.URL)
		if err != nil {
			return fail(fmt.Errorf("asynq: parse redis url: %w", err))
		}
		client := asynq.NewClient(opt)
		closers = append(closers, func() { _ = client.Close() })
		sinks = append(sinks, store.NewQueueSink(client))
		worker = store.NewWorker(opt, cfg.Queue.Concurrency, pg)
		log.Info().Str("module", "store").Msg("results go to postgres through the queue")
	case pg != nil:
		if cfg.Queue.Enabled {
			log.Warn().Str("module", "store").Msg("queue enabled without redis, writing to postgres directly")
		}
		sinks = append(sinks, pg)
	}
	if pg != nil {
		readers = append(readers, pg)
	}

	return sinks, readers, worker, closeAll, nil
}
