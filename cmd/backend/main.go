package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/playhost/external/config"
	"github.com/foxseedlab/playhost/external/discord"
	"github.com/foxseedlab/playhost/external/ratelimit"
	repositoryimpl "github.com/foxseedlab/playhost/external/repository"
	webhookimpl "github.com/foxseedlab/playhost/external/webhook"
	"github.com/foxseedlab/playhost/internal/config"
	discordpkg "github.com/foxseedlab/playhost/internal/discord"
	"github.com/foxseedlab/playhost/internal/metrics"
	"github.com/foxseedlab/playhost/internal/report"
	"github.com/foxseedlab/playhost/internal/repository"
	"github.com/foxseedlab/playhost/internal/reputation"
	"github.com/foxseedlab/playhost/internal/scheduler"
	"github.com/foxseedlab/playhost/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

const (
	discordConnectTimeout = 20 * time.Second
	sessionLoadTimeout    = 2 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

func main() {
	root := &cobra.Command{
		Use:           "backend",
		Short:         "Discord play session host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), migrateCommand())
	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and host play sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			slog.Info("startup: building dependency graph")
			injector := setupDI(cfg)
			defer shutdownInjector(injector)
			return runBot(cmd.Context(), cfg, injector)
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the store schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			injector := do.New()
			do.ProvideValue(injector, cfg)
			repositoryimpl.RegisterDI(injector)
			repo, err := do.Invoke[repository.Repository](injector)
			if err != nil {
				return err
			}
			repo.Close()
			slog.Info("migration completed", "store_driver", cfg.StoreDriver)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	slog.Info("startup: loading configuration")
	cfg, err := configloader.Load()
	if err != nil {
		return nil, err
	}
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "store_driver", cfg.StoreDriver)
	return cfg, nil
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	report.RegisterDI(injector)
	scheduler.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	ratelimit.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	reputation.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func shutdownInjector(injector do.Injector) {
	if sr := injector.Shutdown(); sr != nil && !sr.Succeed {
		slog.Error("dependency shutdown failed", "error", sr.Error())
	}
}

func runBot(parent context.Context, cfg *config.Config, injector do.Injector) error {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		return err
	}
	registry, err := do.Invoke[*session.Registry](injector)
	if err != nil {
		return err
	}
	interactions, err := do.Invoke[*session.Interactions](injector)
	if err != nil {
		return err
	}
	sched, err := do.Invoke[*scheduler.Scheduler](injector)
	if err != nil {
		return err
	}
	repo := do.MustInvoke[repository.Repository](injector)
	defer repo.Close()
	rdb := do.MustInvoke[*redis.Client](injector)
	defer func() {
		if err := rdb.Close(); err != nil {
			slog.Error("redis close failed", "error", err)
		}
	}()

	metricsServer := serveMetrics(cfg.MetricsAddr)

	ctx, cancel := context.WithTimeout(parent, discordConnectTimeout)
	defer cancel()
	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		return err
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()
	defer sched.Stop()

	if err := dc.UpsertGuildSlashCommands(cfg.DiscordGuildID, session.SlashCommandDefinitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		return err
	}

	loadCtx, loadCancel := context.WithTimeout(parent, sessionLoadTimeout)
	err = registry.Load(loadCtx)
	loadCancel()
	if err != nil {
		return err
	}

	dc.RegisterComponentHandler(interactions.HandleComponent)
	dc.RegisterSlashCommandHandler(interactions.HandleSlashCommand)
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID)

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down", "live_sessions", len(registry.Sessions()))
	case <-done:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", "error", err)
	}
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
	return srv
}
