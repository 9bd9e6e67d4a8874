package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/zhenevahq/zheneva/internal/config"
	"github.com/zhenevahq/zheneva/internal/flow"
	"github.com/zhenevahq/zheneva/internal/handlers"
	"github.com/zhenevahq/zheneva/internal/logger"
	"github.com/zhenevahq/zheneva/internal/moderation"
	"github.com/zhenevahq/zheneva/internal/publish"
	"github.com/zhenevahq/zheneva/internal/server"
	"github.com/zhenevahq/zheneva/internal/store"
	"github.com/zhenevahq/zheneva/internal/telegram"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBPool,
			provideStore,
			provideTelegramClient,
			provideGate,
			providePublisher,
			provideModeration,
			provideSubmitter,
			provideModeratorRouter,
			provideAdminHandler,
			handlers.NewPingHandler,
			provideServer,
		),
		fx.Invoke(
			startPollers,
			startSessionSweep,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := store.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := store.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	// Closed last: pollers, cron, and the server are stopped first, in
	// reverse registration order.
	lc.Append(fx.Hook{OnStop: func(context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideStore(log *slog.Logger, pool *pgxpool.Pool) *store.Store {
	return store.New(log, pool)
}

func provideTelegramClient(log *slog.Logger, cfg config.Config) (*telegram.Client, error) {
	return telegram.NewClient(log, cfg.Telegram)
}

func provideGate(cfg config.Config, st *store.Store) *flow.Gate {
	return flow.NewGate(st, time.Duration(cfg.Moderation.CooldownSeconds)*time.Second)
}

func providePublisher(log *slog.Logger, st *store.Store, client *telegram.Client) *publish.Publisher {
	return publish.NewPublisher(log, st, client, client, client)
}

func provideModeration(log *slog.Logger, st *store.Store, publisher *publish.Publisher, client *telegram.Client) *moderation.Service {
	return moderation.NewService(log, st, publisher, client)
}

func provideSubmitter(log *slog.Logger, cfg config.Config, st *store.Store, gate *flow.Gate, client *telegram.Client) *telegram.Submitter {
	return telegram.NewSubmitter(log, st, gate, client, cfg.Telegram.AdminPanelURL)
}

func provideModeratorRouter(log *slog.Logger, cfg config.Config, st *store.Store, svc *moderation.Service, client *telegram.Client) *telegram.Moderator {
	return telegram.NewModerator(log, st, svc, client, cfg.Telegram.AdminChatID)
}

func provideAdminHandler(log *slog.Logger, st *store.Store, svc *moderation.Service, client *telegram.Client) *handlers.AdminHandler {
	return handlers.NewAdminHandler(log, st, svc, client)
}

func provideServer(log *slog.Logger, cfg config.Config, ping *handlers.PingHandler, admin *handlers.AdminHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, ping, admin)
}

func startPollers(lc fx.Lifecycle, log *slog.Logger, client *telegram.Client, submitter *telegram.Submitter, moderator *telegram.Moderator) {
	submitterPoller := telegram.NewPoller(log, "submitter", client.Submitter(), submitter.HandleUpdate)
	moderatorPoller := telegram.NewPoller(log, "moderator", client.Moderator(), moderator.HandleUpdate)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			submitterPoller.Start(context.Background())
			moderatorPoller.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			// Stop blocks until the loop has drained, so no update is
			// processed against a closing pool.
			submitterPoller.Stop()
			moderatorPoller.Stop()
			return nil
		},
	})
}

func startSessionSweep(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, st *store.Store) error {
	logger := log.With(slog.String("service", "sweep"))
	ttl := time.Duration(cfg.Moderation.SessionTTLHours) * time.Hour
	c := cron.New()
	_, err := c.AddFunc(cfg.Moderation.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		deleted, err := st.DeleteStaleSessions(ctx, time.Now().Add(-ttl))
		if err != nil {
			logger.Error("sweep stale sessions", slog.Any("error", err))
			return
		}
		if deleted > 0 {
			logger.Info("abandoned sessions deleted", slog.Int64("count", deleted))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting admin api", slog.String("addr", cfg.Server.Addr))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
