package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/SiriusNovyx/SiriusSys-sub003/internal/admin"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/config"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/filter"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/gateway/discord"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/handlers"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/hub"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/logger"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/relay"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/server"
	"github.com/SiriusNovyx/SiriusSys-sub003/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml (falls back to CONFIG_PATH, then ./config.toml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SiriusSys bridge %s\n", version.GetInfo())
		return
	}
	if *configPath == "" {
		*configPath = os.Getenv("CONFIG_PATH")
	}

	fx.New(
		fx.Supply(configPathValue(*configPath)),
		fx.Provide(
			provideConfig,
			provideLogger,

			provideStore,
			provideRegistry,
			filter.NewEngine,
			provideBinding,
			provideDispatcher,
			provideAdminService,
			provideBackup,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideHubsHandler),
			provideServerHandler(provideAdminHandler),

			provideServer,
		),
		fx.Invoke(
			startGateway,
			startBackup,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

type configPathValue string

func provideConfig(path configPathValue) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStore(log *slog.Logger, cfg config.Config) *hub.Store {
	return hub.NewStore(log, cfg.Bridge.StatePath)
}

func provideRegistry(log *slog.Logger, store *hub.Store) (*hub.Registry, error) {
	hubs, links, err := store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	registry := hub.NewRegistry(log, store)
	registry.Restore(hubs, links)
	return registry, nil
}

func provideBinding(log *slog.Logger, cfg config.Config) (*discord.Binding, error) {
	return discord.NewBinding(log, discord.Config{BotToken: cfg.Discord.BotToken})
}

func provideDispatcher(log *slog.Logger, registry *hub.Registry, engine *filter.Engine, binding *discord.Binding, cfg config.Config) *relay.Dispatcher {
	return relay.NewDispatcher(log, registry, engine, binding, cfg.Bridge.ProductMarker)
}

func provideAdminService(log *slog.Logger, registry *hub.Registry, binding *discord.Binding) *admin.Service {
	return admin.NewService(log, registry, binding)
}

func provideBackup(log *slog.Logger, store *hub.Store, cfg config.Config) (*hub.Backup, error) {
	if cfg.Bridge.BackupCron == "" {
		return nil, nil
	}
	return hub.NewBackup(log, store, cfg.Bridge.BackupCron, cfg.Bridge.BackupKeep)
}

func provideHubsHandler(log *slog.Logger, registry *hub.Registry, dispatcher *relay.Dispatcher) *handlers.HubsHandler {
	return handlers.NewHubsHandler(log, registry, dispatcher)
}

func provideAdminHandler(log *slog.Logger, service *admin.Service) *handlers.AdminHandler {
	return handlers.NewAdminHandler(log, service)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Server.BearerToken, params.ServerHandlers...)
}

func startGateway(lc fx.Lifecycle, binding *discord.Binding, dispatcher *relay.Dispatcher, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			dispatcher.Start(context.Background())
			if err := binding.Open(ctx); err != nil {
				return err
			}
			logger.Info("bridge online", slog.String("version", version.GetInfo()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := binding.Close(ctx)
			dispatcher.Stop()
			return err
		},
	})
}

func startBackup(lc fx.Lifecycle, backup *hub.Backup) {
	if backup == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			backup.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			backup.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, srv *server.Server, shutdowner fx.Shutdowner, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
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
