package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/voicehook/internal/assistant"
	"github.com/soyeahso/voicehook/internal/config"
	"github.com/soyeahso/voicehook/internal/domain"
	"github.com/soyeahso/voicehook/internal/gateway"
	"github.com/soyeahso/voicehook/internal/hooks"
	"github.com/soyeahso/voicehook/internal/janitor"
	"github.com/soyeahso/voicehook/internal/logging"
	"github.com/soyeahso/voicehook/internal/plugin"
	"github.com/soyeahso/voicehook/internal/registry"
	"github.com/soyeahso/voicehook/internal/store"
	"github.com/soyeahso/voicehook/internal/version"
	"github.com/soyeahso/voicehook/internal/webhook"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"run"},
		Short:   "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			slog, closer := logging.Open(logging.Options{
				Level: cfg.Logging.Level,
				Style: cfg.Logging.ConsoleStyle,
				File:  cfg.Logging.File,
			})
			defer closer.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, paths, slog)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides server.port)")
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides server.host)")
	return cmd
}

// serve wires every component from cfg and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config, paths config.Paths, log *logging.Logger) error {
	tools := registry.New(registry.Tools, registry.WithLogger(log))
	functions := registry.New(registry.Functions, registry.WithLogger(log))

	global := hooks.NewManager(log)
	dispatcher := hooks.NewDispatcher(global, hooks.DispatcherConfig{
		Workers:        cfg.Dispatcher.Workers,
		QueueSize:      cfg.Dispatcher.QueueSize,
		EnqueueTimeout: cfg.Dispatcher.EnqueueTimeout(),
	}, log)

	router := webhook.NewRouter(tools, functions, log, webhook.WithDispatcher(dispatcher))

	apps, err := assistant.Applications(cfg.Applications, assistant.DefaultCatalog(), log)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		log.Warn().Msg("no applications configured; only admin routes are served")
	}

	events := gateway.NewEventHub(version.Version, log)
	plugins := plugin.NewRegistry(global, log)
	if err := plugins.Register(&plugin.Observer{Name: "events", Observe: events.Observer()}); err != nil {
		return err
	}

	opts := []gateway.ServerOption{
		gateway.WithApplications(apps...),
		gateway.WithDispatcher(dispatcher),
		gateway.WithEvents(events),
		gateway.WithAdminToken(cfg.Admin.Token),
		gateway.WithJanitor(janitor.New(log, cfg.Cache.Pause(), cfg.Cache.MaxAge(), tools, functions)),
	}

	if cfg.Reports.Enabled {
		reports, err := openReports(cfg.Reports, paths, log)
		if err != nil {
			return err
		}
		err = plugins.Register(&plugin.Observer{
			Name:    "reports",
			Kind:    domain.CallbackRequest,
			Type:    domain.EndOfCallReport,
			Observe: store.ReportObserver(reports, log),
			Closer:  reports,
		})
		if err != nil {
			reports.Close()
			return err
		}
		opts = append(opts, gateway.WithReports(reports))
	}

	// Closed after Start returns, once the dispatcher has drained.
	defer plugins.CloseAll()
	if err := plugins.InitAll(ctx); err != nil {
		return err
	}

	return gateway.New(cfg.Server, router, log, opts...).Start(ctx)
}

// openReports opens the configured report store.
func openReports(cfg config.ReportsConfig, paths config.Paths, log *logging.Logger) (store.ReportStore, error) {
	if cfg.Store == "memory" {
		log.Info().Msg("using in-memory report store")
		return store.NewMemoryReportStore(), nil
	}
	dbPath := paths.ReportsDB(cfg)
	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info().Str("path", dbPath).Msg("using SQLite report store")
	return store.NewSQLiteReportStore(db), nil
}
