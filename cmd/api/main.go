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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	v1 "go-directchat/cmd/api/router/v1"
	"go-directchat/internal/config"
	"go-directchat/internal/infrastructure/auth"
	cacheAdapter "go-directchat/internal/infrastructure/cache/adapter"
	cport "go-directchat/internal/infrastructure/cache/port"
	"go-directchat/internal/infrastructure/database"
	"go-directchat/internal/infrastructure/logger"
	queueAdapter "go-directchat/internal/infrastructure/queue/adapter"
	qport "go-directchat/internal/infrastructure/queue/port"
	"go-directchat/internal/infrastructure/realtime"
	"go-directchat/internal/pkg/chat/application/task"
	"go-directchat/internal/pkg/chat/application/usecase"
	repoAdapter "go-directchat/internal/pkg/chat/persistence/repository/adapter"
	repository "go-directchat/internal/pkg/chat/persistence/repository/port"
	"go-directchat/internal/pkg/chat/presentation/controller"
	httpHandler "go-directchat/internal/pkg/chat/presentation/http"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log = log.With().Str("service", cfg.ServiceName).Logger()
	if envErr != nil {
		log.Debug().Err(envErr).Msg(".env file not loaded")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]controller.Pinger{}

	repo, closeRepo, err := openRepository(ctx, cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeRepo()

	cache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cache.Close()
	checks["cache"] = cache

	scheduler, worker, err := openQueue(cfg, repo, log)
	if err != nil {
		return err
	}
	defer scheduler.Close()

	presence := realtime.NewPresenceRegistry(log)
	relay := realtime.NewRelay(presence, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(log.With().Str("component", "http").Logger()))
	v1.RegisterRoutes(r, auth.NewVerifier(cfg), checks, httpHandler.Deps{
		Repo:           repo,
		Cache:          cache,
		CacheTTL:       cfg.ConversationCacheTTL,
		Touch:          scheduler,
		Presence:       presence,
		Relay:          relay,
		RequestTimeout: cfg.RequestTimeout,
		SendBuffer:     cfg.WSSendBuffer,
		ReadTimeout:    cfg.WSReadTimeout,
		Log:            log,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	workerDone := make(chan struct{})
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		defer close(workerDone)
		// Not tied to ctx: requests still draining in Shutdown may enqueue.
		if err := worker.Run(context.Background()); err != nil {
			errCh <- fmt.Errorf("worker: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		_ = worker.Stop(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	presence.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Only after the drain, so touches scheduled by late appends finish
	// before the repository closes.
	if err := worker.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("worker did not stop before the shutdown timeout")
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("worker did not stop before the shutdown timeout")
	}
	return nil
}

// openRepository connects to Postgres when DB_URL is set and falls back to memory otherwise.
func openRepository(ctx context.Context, cfg *config.Config, log zerolog.Logger, checks map[string]controller.Pinger) (repository.ChatRepository, func(), error) {
	if cfg.DBURL == "" {
		log.Warn().Msg("DB_URL not set; using in-memory repository")
		return repoAdapter.NewMemoryChatRepository(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := database.Connect(connectCtx, cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	checks["postgres"] = pool
	return repoAdapter.NewPgChatRepository(pool), pool.Close, nil
}

func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cport.Cache, error) {
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set; using in-memory cache")
		return cacheAdapter.NewMemoryCache(cfg.MemoryCacheSize, cfg.ConversationCacheTTL), nil
	}
	c, err := cacheAdapter.NewRedisCache(ctx, cfg.RedisURL, cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return c, nil
}

// openQueue wires the touch-conversation task to asynq when Redis is configured,
// otherwise to the in-process queue.
func openQueue(cfg *config.Config, repo repository.ChatRepository, log zerolog.Logger) (*task.TouchConversationScheduler, qport.Server, error) {
	touchUC := usecase.NewTouchConversationUseCase(repo)

	if cfg.RedisURL == "" {
		q := queueAdapter.NewInlineQueue(log)
		task.RegisterTouchConversationTask(q, touchUC)
		return task.NewTouchConversationScheduler(q), q, nil
	}

	client, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	srv, err := queueAdapter.NewAsynqServer(cfg.RedisURL, cfg.AsynqConcurrency, cfg.AsynqQueues, log, task.Queue)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	task.RegisterTouchConversationTask(srv, touchUC)
	return task.NewTouchConversationScheduler(client), srv, nil
}
