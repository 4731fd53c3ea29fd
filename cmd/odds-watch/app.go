package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/alert"
	"github.com/yourusername/odds-watch/internal/browser"
	"github.com/yourusername/odds-watch/internal/config"
	"github.com/yourusername/odds-watch/internal/database"
	"github.com/yourusername/odds-watch/internal/extract"
	"github.com/yourusername/odds-watch/internal/handover"
	"github.com/yourusername/odds-watch/internal/logger"
	"github.com/yourusername/odds-watch/internal/metrics"
	"github.com/yourusername/odds-watch/internal/models"
	"github.com/yourusername/odds-watch/internal/notify"
	"github.com/yourusername/odds-watch/internal/publish"
	"github.com/yourusername/odds-watch/internal/repository"
	"github.com/yourusername/odds-watch/internal/runner"
	"github.com/yourusername/odds-watch/internal/storage"
	"github.com/yourusername/odds-watch/internal/translate"
)

// App holds the long-lived dependencies of the process.
type App struct {
	Config     *config.Config
	Logger     *logrus.Logger
	Store      storage.Store
	Registry   handover.Registry
	Tasks      handover.TaskControl
	DB         *database.DB
	Matches    *repository.PostgresMatchRepository
	Evaluator  *alert.Evaluator
	Notifier   runner.Notifier
	Publisher  runner.Publisher
	Translator *translate.Translator
	Manager    *handover.TaskManager

	websocket *publish.WebSocketPublisher
}

func setup(ctx context.Context) (*App, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	appLog := logger.NewLogger(cfg.App.LogLevel)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	app := &App{Config: cfg, Logger: appLog}
	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	if cfg.App.Debug || cfg.Storage.Backend == "memory" {
		a.Store = storage.NewMemoryStore()
		a.Registry = handover.NewMemoryRegistry()
		a.Tasks = handover.NewMemoryTaskControl()
		a.Logger.Info("Using in-process store and registry")
	} else {
		client := storage.NewRedisClient(cfg.Redis)
		a.Store = storage.NewRedisStore(client)
		a.Registry = handover.NewRedisRegistry(client)
		a.Tasks = handover.NewRedisTaskControl(client, cfg.Handover.RevokeChannel)
		if err := pingRedis(ctx, client); err != nil {
			return err
		}
	}

	if cfg.Database.Enabled && !cfg.App.Debug {
		db, err := database.Initialize(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.Matches = repository.NewPostgresMatchRepository(db)
		a.Logger.Info("Database connection established")
	}

	evaluator, err := alert.EvaluatorFrom(cfg.Alerts)
	if err != nil {
		return err
	}
	a.Evaluator = evaluator

	if err := a.wireNotifier(); err != nil {
		return err
	}
	a.wirePublisher()
	a.wireTranslator()

	coordinator := handover.NewCoordinator(a.Registry, a.Tasks, handover.CoordinatorConfigFrom(cfg.Handover), a.Logger)
	a.Manager = handover.NewTaskManager(coordinator, a.Registry, a.Tasks, a.newWorker, handover.ManagerConfig{
		RunRetries:    cfg.Handover.RunRetries,
		RunRetryDelay: cfg.Handover.RunRetryDelay(),
		HeartbeatTTL:  cfg.Handover.HeartbeatTTL(),
	}, a.Logger)

	return nil
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

func (a *App) wireNotifier() error {
	cfg := a.Config
	if !cfg.Telegram.Enabled || cfg.App.Debug {
		a.Notifier = notify.NewLogNotifier(a.Logger)
		return nil
	}
	n, err := notify.NewTelegramNotifier(cfg.Telegram, a.Logger)
	if err != nil {
		return err
	}
	a.Notifier = n
	return nil
}

func (a *App) wirePublisher() {
	cfg := a.Config
	var sinks []publish.Sink

	if cfg.Publisher.Enabled && !cfg.App.Debug {
		reconnect := publish.DefaultReconnectConfig()
		if cfg.Publisher.ReconnectDelaySeconds > 0 {
			reconnect.InitialBackoff = time.Duration(cfg.Publisher.ReconnectDelaySeconds) * time.Second
			if reconnect.MaxBackoff < reconnect.InitialBackoff {
				reconnect.MaxBackoff = reconnect.InitialBackoff
			}
		}
		a.websocket = publish.NewWebSocketPublisher(
			cfg.Publisher.URL,
			time.Duration(cfg.Publisher.WriteTimeoutSeconds)*time.Second,
			reconnect,
			a.Logger,
		)
		sinks = append(sinks, publish.Sink{Name: "websocket", Publisher: a.websocket})
	}
	if cfg.Publisher.PersistHistory && a.Matches != nil {
		sinks = append(sinks, publish.Sink{Name: "history", Publisher: publish.NewHistoryPublisher(a.Matches)})
	}
	if cfg.App.Debug || len(sinks) == 0 {
		sinks = append(sinks, publish.Sink{Name: "log", Publisher: publish.NewLogPublisher(a.Logger)})
	}

	a.Publisher = publish.NewMulti(a.Logger, sinks...)
}

func (a *App) wireTranslator() {
	cfg := a.Config.Translate
	var backend translate.Backend = translate.Identity{}
	if cfg.Enabled && !a.Config.App.Debug {
		backend = translate.NewHTTPClient(translate.HTTPClientConfigFrom(cfg), a.Logger)
	}
	a.Translator = translate.NewTranslator(backend, time.Duration(cfg.CacheTTLMinutes)*time.Minute, a.Logger)
}

// newWorker builds a fresh browser session, extractor and cycle runner for one attempt.
func (a *App) newWorker(_ context.Context, source models.Source, runID string, hook runner.CycleHook) (handover.Worker, error) {
	sc, ok := a.Config.Source(source.Name)
	if !ok {
		return nil, fmt.Errorf("source %s is not configured: %w", source.Name, runner.ErrFatal)
	}
	parser, err := extract.ParserFor(source)
	if err != nil {
		return nil, err
	}

	session := browser.NewSession(a.Config.Browser, a.Logger)
	extractor := extract.NewPageExtractor(source, session, parser, sc.LeagueNames(), a.Translator)

	r := runner.New(source, runID, runner.ConfigFrom(a.Config), runner.Deps{
		Extractor: extractor,
		Store:     a.Store,
		Evaluator: a.Evaluator,
		Notifier:  a.Notifier,
		Publisher: a.Publisher,
		Session:   session,
		Hook:      hook,
		Logger:    a.Logger,
	})
	return runner.NewWorker(session, sc.URL, r), nil
}

// Bootstrapper builds the startup sequence over the configured sources.
func (a *App) Bootstrapper() (*handover.Bootstrapper, error) {
	plan, err := handover.PlanFrom(a.Config.Sources)
	if err != nil {
		return nil, err
	}
	var matches handover.MatchResetter
	if a.Matches != nil {
		matches = a.Matches
	}
	return handover.NewBootstrapper(a.Registry, a.Tasks, a.Store, matches, a.Manager, plan, a.Logger), nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	if a.websocket != nil {
		if err := a.websocket.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close websocket publisher")
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close store")
		}
	}
}
