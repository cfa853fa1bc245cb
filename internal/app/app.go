package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tubecast/internal/common"
	"github.com/ternarybob/tubecast/internal/interfaces"
	"github.com/ternarybob/tubecast/internal/pipeline"
	"github.com/ternarybob/tubecast/internal/services/auth"
	"github.com/ternarybob/tubecast/internal/services/events"
	"github.com/ternarybob/tubecast/internal/services/kv"
	"github.com/ternarybob/tubecast/internal/services/llm"
	"github.com/ternarybob/tubecast/internal/services/mailer"
	"github.com/ternarybob/tubecast/internal/services/objectstore"
	"github.com/ternarybob/tubecast/internal/services/scheduler"
	"github.com/ternarybob/tubecast/internal/services/state"
	"github.com/ternarybob/tubecast/internal/services/watcher"
	"github.com/ternarybob/tubecast/internal/services/youtube"
	"github.com/ternarybob/tubecast/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config  *common.Config
	Logger  arbor.ILogger
	Storage *badger.Manager

	EventService     interfaces.EventService
	SchedulerService interfaces.SchedulerService
	StateService     *state.Service
	ObjectStore      interfaces.ObjectStore
	AuthService      *auth.Service
	LLMService       interfaces.LLMService
	Publisher        interfaces.VideoPublisher
	Mailer           interfaces.MailService
	KVService        *kv.Service
	Watcher          *watcher.Service
	Pipeline         *pipeline.Pipeline
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initPipeline(); err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := app.startBackground(); err != nil {
		return nil, fmt.Errorf("failed to start background services: %w", err)
	}

	logger.Info().
		Str("watch_dir", cfg.Watcher.Dir).
		Str("storage", cfg.Storage.Type).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}

	a.Storage = manager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	var err error

	a.EventService = events.NewService(a.Logger)

	a.StateService = state.NewService(a.Storage.TraceStorage(), a.Logger)

	a.ObjectStore, err = objectstore.New(context.Background(), &a.Config.Storage, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	a.Logger.Debug().Str("type", a.Config.Storage.Type).Msg("Object store initialized")

	a.AuthService, err = auth.NewService(&a.Config.OAuth, a.Storage.TokenStorage(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	a.LLMService, err = llm.NewGeminiService(&a.Config.Gemini, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	a.Logger.Debug().Str("chat_model", a.Config.Gemini.ChatModel).Msg("LLM service initialized")

	a.Publisher = youtube.NewService(a.AuthService, &a.Config.YouTube, a.Logger)

	a.Mailer = mailer.NewService(a.Storage.KeyValueStorage(), a.Logger)

	a.KVService = kv.NewService(a.Storage.KeyValueStorage(), a.Logger)

	a.Watcher = watcher.NewService(
		&a.Config.Watcher,
		a.Config.SettleDelay(),
		a.Storage.KeyValueStorage(),
		a.EventService,
		a.Logger,
	)

	a.SchedulerService = scheduler.NewService(a.Logger)

	return nil
}

// initPipeline wires the stage handlers onto the event bus
func (a *App) initPipeline() error {
	a.Pipeline = pipeline.New(
		a.StateService,
		a.ObjectStore,
		a.LLMService,
		a.Publisher,
		a.Mailer,
		a.EventService,
		a.Config,
		a.Logger,
	)
	return a.Pipeline.Register()
}

// startBackground starts the folder watcher and the scheduler jobs
func (a *App) startBackground() error {
	if err := a.Watcher.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start folder watcher: %w", err)
	}

	if err := a.SchedulerService.RegisterJob(
		"watcher-ensure",
		a.Config.Scheduler.WatcherEnsure,
		"Restarts the folder watcher if it stopped",
		func() error {
			return a.Watcher.EnsureStarted(context.Background())
		},
	); err != nil {
		return fmt.Errorf("failed to register watcher liveness job: %w", err)
	}

	if err := a.SchedulerService.RegisterJob(
		"stale-trace-sweep",
		a.Config.Scheduler.StaleTraceSweep,
		"Fails traces stuck in a non-terminal status",
		func() error {
			return a.sweepStaleTraces(context.Background())
		},
	); err != nil {
		return fmt.Errorf("failed to register stale trace sweep: %w", err)
	}

	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	return nil
}

// sweepStaleTraces emits a pipeline error for every non-terminal trace that
// has not been touched within the configured threshold. The error aggregator
// records the entry and flips the trace to failed.
func (a *App) sweepStaleTraces(ctx context.Context) error {
	threshold := a.Config.StaleAfter()
	cutoff := time.Now().Add(-threshold)

	traces, err := a.StateService.ListTraces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list traces: %w", err)
	}

	swept := 0
	for _, trace := range traces {
		if trace.Status.Status.IsTerminal() {
			continue
		}
		if trace.UpdatedAt.After(cutoff) {
			continue
		}

		swept++
		if err := a.EventService.Publish(ctx, interfaces.Event{
			Type: interfaces.EventPipelineError,
			Payload: interfaces.StageErrorPayload{
				TraceID: trace.TraceID,
				Step:    "pipeline",
				Err:     fmt.Sprintf("trace stalled in status %s for more than %s", trace.Status.Status, threshold),
			},
		}); err != nil {
			a.Logger.Warn().Err(err).Str("trace_id", trace.TraceID).Msg("Failed to publish stale trace error")
		}
	}

	if swept > 0 {
		a.Logger.Warn().Int("count", swept).Msg("Swept stale traces")
	}
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.Watcher != nil {
		if err := a.Watcher.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop folder watcher")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
