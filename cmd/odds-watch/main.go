// Package main provides the entry point for the odds watcher.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/health"
	"github.com/yourusername/odds-watch/internal/metrics"
	"github.com/yourusername/odds-watch/internal/models"
	"github.com/yourusername/odds-watch/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	firstRun   bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	serveCmd.Flags().BoolVar(&firstRun, "first-run", false, "Clear shared state before starting and skip handover")
	runCmd.Flags().BoolVar(&firstRun, "first-run", false, "Skip handover from a run registered elsewhere")

	rootCmd.AddCommand(serveCmd, runCmd, statusCmd)
}

var rootCmd = &cobra.Command{
	Use:          "odds-watch",
	Short:        "Watch live odds and alert on changes",
	Long:         `Scrapes live basketball odds from two bookmakers, stores changes, alerts on interesting odds and hands work over between runs.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start every configured source and supervise them",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		return serve(cmd.Context(), app)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Run one source in this process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := models.SourceByName(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		app, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		return runOne(cmd.Context(), app, source)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the registered run of every source",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		return printStatus(cmd.Context(), app)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func serve(ctx context.Context, app *App) error {
	appLog := app.Logger
	appLog.WithFields(logrus.Fields{
		"version":     Version,
		"commit":      GitCommit,
		"environment": app.Config.App.Environment,
		"first_run":   firstRun,
		"debug":       app.Config.App.Debug,
	}).Info("odds-watch starting")

	server := app.HealthServer()
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	go app.listenRevocations(ctx)

	bootstrapper, err := app.Bootstrapper()
	if err != nil {
		return err
	}

	go func() {
		if _, err := bootstrapper.Start(ctx, firstRun); err != nil && ctx.Err() == nil {
			appLog.WithError(err).Error("Bootstrap failed")
			return
		}
		server.SetReady(true)
	}()

	var sched *scheduler.Scheduler
	if app.Config.Supervision.Enabled {
		sched = scheduler.NewScheduler(appLog)
		if _, err := sched.Schedule(app.Config.Supervision.Schedule, "supervise_sources", func(jobCtx context.Context) error {
			_, err := bootstrapper.Start(jobCtx, false)
			return err
		}); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
	}

	<-ctx.Done()
	appLog.Info("Shutdown signal received")
	server.SetReady(false)

	if sched != nil {
		if err := sched.Stop(); err != nil {
			appLog.WithError(err).Warn("Scheduler did not stop cleanly")
		}
	}
	app.Manager.Shutdown()
	appLog.Info("odds-watch stopped")
	return nil
}

func runOne(ctx context.Context, app *App, source models.Source) error {
	go app.listenRevocations(ctx)

	runID, err := app.Manager.Launch(ctx, source, firstRun)
	if err != nil {
		return err
	}
	app.Logger.WithFields(logrus.Fields{
		"source": source.Name,
		"run_id": runID,
	}).Info("Running single source")

	done := make(chan struct{})
	go func() {
		app.Manager.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		app.Manager.Shutdown()
	case <-done:
	}
	return nil
}

func printStatus(ctx context.Context, app *App) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	active, err := app.Manager.Active(ctx)
	if err != nil {
		return err
	}
	for _, s := range models.Sources {
		alive, err := app.Registry.Alive(ctx, s.Name)
		if err != nil {
			return err
		}
		runID := active[s.Name]
		if runID == "" {
			runID = "-"
		}
		fmt.Fprintf(os.Stdout, "%-6s run=%s alive=%t\n", s.Name, runID, alive)
	}
	return nil
}

// HealthServer builds the health and metrics server of the process.
func (a *App) HealthServer() *health.Server {
	pingers := map[string]health.Pinger{"store": a.Store}
	if a.DB != nil {
		pingers["database"] = a.DB
	}
	cfg := health.Config{
		ServiceName: a.Config.App.Name,
		Version:     Version,
		Port:        a.Config.Health.Port,
		Logger:      a.Logger,
		Pingers:     pingers,
		Runs:        a.Manager,
	}
	if a.Config.Metrics.Enabled {
		cfg.Metrics = metrics.Handler()
		cfg.MetricsPath = a.Config.Metrics.Path
	}
	return health.NewServer(cfg)
}

func (a *App) listenRevocations(ctx context.Context) {
	if err := a.Manager.ListenRevocations(ctx); err != nil && ctx.Err() == nil {
		a.Logger.WithError(err).Error("Revocation listener stopped")
	}
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
