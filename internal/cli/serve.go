package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindfulai/naina/internal/config"
	"github.com/mindfulai/naina/internal/httpapi"
	"github.com/mindfulai/naina/internal/session"
)

var (
	flagServeAddr      string
	flagServeBackend   string
	flagServeNoWatch   bool
	flagServeLLM       bool
	flagServeThreshold int
)

func init() {
	serveCmd.Flags().StringVarP(&flagServeAddr, "addr", "a", "", "listen address (default from config, :8000)")
	serveCmd.Flags().StringVar(&flagServeBackend, "backend", "", "session backend: memory, sqlite, redis")
	serveCmd.Flags().BoolVar(&flagServeNoWatch, "no-watch", false, "do not reload config files on change")
	serveCmd.Flags().BoolVar(&flagServeLLM, "llm", false, "generate conversational replies with the language model")
	serveCmd.Flags().IntVar(&flagServeThreshold, "resource-threshold", 0, "crisis count at which resources are shown")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket chat API",
	Long: `Run the chat API.

Endpoints:
  POST   /api/chat                  one chat turn
  GET    /ws/chat                   chat over WebSocket
  GET    /api/health                liveness and pattern library version
  GET    /api/resources             crisis hotlines
  GET    /api/conversations/:user   transcript history
  DELETE /api/conversations/:user   forget a user
  GET    /api/analytics/:user       transcript analytics and session counters
  GET    /api/export/:user          export as json, yaml or txt
  GET    /api/events                audited crisis turns
  GET    /metrics                   Prometheus metrics

The resource threshold and session TTL are reloaded when a config file changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if flagServeAddr != "" {
			overrides["server.addr"] = flagServeAddr
		}
		if flagServeBackend != "" {
			overrides["session.backend"] = flagServeBackend
		}
		if cmd.Flags().Changed("llm") {
			overrides["llm.enabled"] = flagServeLLM
		}
		if flagServeThreshold > 0 {
			overrides["crisis.resource_threshold"] = flagServeThreshold
		}

		cfg, err := loadConfig(overrides)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, appOptions{logOutput: cmd.ErrOrStderr(), logFile: cfg.Logging.ToFile})
		if err != nil {
			return err
		}
		defer a.Close()

		return runServer(ctx, a, overrides, !flagServeNoWatch)
	},
}

// runServer serves until ctx is done, running the janitor and the config
// watcher alongside.
func runServer(ctx context.Context, a *app, overrides map[string]any, watch bool) error {
	deps := httpapi.Deps{
		Chat:     a.svc,
		Sessions: a.store,
		Library:  a.library,
		Metrics:  a.metrics,
		Logger:   a.logger.WithPrefix("http"),
	}
	if a.db != nil {
		deps.Events = a.db
	}
	srv, err := httpapi.New(httpapi.Config{
		Addr:           a.cfg.Server.Addr,
		ReadTimeout:    time.Duration(a.cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:   time.Duration(a.cfg.Server.WriteTimeoutSecs) * time.Second,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
	}, deps)
	if err != nil {
		return err
	}

	janitor := session.NewJanitor(a.store, session.JanitorConfig{
		Interval: a.janitorInterval(),
		TTL:      a.sessionTTL(),
		Logger:   a.logger.WithPrefix("janitor"),
		OnSweep:  a.metrics.SetActiveSessions,
	})
	if err := janitor.Start(ctx); err != nil {
		return fmt.Errorf("starting janitor: %w", err)
	}
	defer janitor.Stop()

	if watch {
		project, err := projectPath()
		if err != nil {
			return err
		}
		w, err := config.NewWatcher(config.LoadOptions{
			ProjectDir:    project,
			ConfigPath:    flagConfig,
			FlagOverrides: overrides,
		}, func(cfg config.Config) {
			applyReload(a, janitor, cfg)
		}, a.logger)
		if err != nil {
			a.logger.Debug("config reload disabled", "reason", err)
		} else {
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
		}
	}

	a.logger.Info("naina starting",
		"version", version,
		"addr", a.cfg.Server.Addr,
		"backend", a.cfg.Session.Backend,
		"patterns", a.library.Len(),
		"resource_threshold", a.policy.ResourceThreshold(),
	)
	return srv.Run(ctx)
}

// applyReload applies the settings that can change without a restart.
func applyReload(a *app, janitor *session.Janitor, cfg config.Config) {
	if cfg.Crisis.ResourceThreshold != a.policy.ResourceThreshold() {
		a.logger.Info("resource threshold changed", "from", a.policy.ResourceThreshold(), "to", cfg.Crisis.ResourceThreshold)
		a.policy.SetResourceThreshold(cfg.Crisis.ResourceThreshold)
	}
	ttl := time.Duration(cfg.Session.TTLMins) * time.Minute
	if ttl != janitor.TTL() {
		a.logger.Info("session ttl changed", "from", janitor.TTL(), "to", ttl)
		janitor.SetTTL(ttl)
	}
	if newLibrary(cfg).ComputeHash() != a.library.ComputeHash() {
		a.logger.Warn("crisis phrase lists changed; restart to apply")
	}
}
