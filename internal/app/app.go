// Package app builds the long-lived services from configuration, acting as
// the dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/classifier"
	"github.com/JakeFAU/eventwatch/internal/clock/system"
	"github.com/JakeFAU/eventwatch/internal/config"
	"github.com/JakeFAU/eventwatch/internal/dispatcher"
	"github.com/JakeFAU/eventwatch/internal/extract"
	"github.com/JakeFAU/eventwatch/internal/fetcher"
	collyfetcher "github.com/JakeFAU/eventwatch/internal/fetcher/colly"
	"github.com/JakeFAU/eventwatch/internal/fetcher/headless"
	"github.com/JakeFAU/eventwatch/internal/harvest"
	"github.com/JakeFAU/eventwatch/internal/metrics"
	"github.com/JakeFAU/eventwatch/internal/nlp"
	"github.com/JakeFAU/eventwatch/internal/notify"
	"github.com/JakeFAU/eventwatch/internal/pipeline"
	"github.com/JakeFAU/eventwatch/internal/recipients"
	"github.com/JakeFAU/eventwatch/internal/registry"
	"github.com/JakeFAU/eventwatch/internal/report"
	"github.com/JakeFAU/eventwatch/internal/secrets"
	"github.com/JakeFAU/eventwatch/internal/storage/gcs"
	"github.com/JakeFAU/eventwatch/internal/storage/local"
	"github.com/JakeFAU/eventwatch/internal/storage/memory"
	"github.com/JakeFAU/eventwatch/internal/storage/postgres"
	"github.com/JakeFAU/eventwatch/internal/store"
	"github.com/JakeFAU/eventwatch/internal/worker"
)

// stateStore is what the pipeline needs from a persistence backend.
type stateStore interface {
	harvest.NotifiedStore
	harvest.SnapshotStore
}

// App holds the shared services of a process.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Sources  []harvest.SourceDescriptor
	Pipeline *pipeline.Pipeline

	closers []func()
}

// New wires every service described by cfg. Report tables go to out.
// Failing to load the language model is fatal.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) (a *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.Sources, err = registry.Load(cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	cls, err := NewClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	renderer, err := a.buildRenderer(cfg.Harvest, logger)
	if err != nil {
		return nil, err
	}
	w := worker.New(renderer, extract.New(logger), cls, system.New(), logger)
	harvester := dispatcher.New(w, dispatcher.Config{
		Concurrency: cfg.Harvest.Concurrency,
		MaxWorkers:  cfg.Harvest.MaxWorkers,
	}, logger)

	state, err := a.buildStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	notifier, err := a.buildNotifier(ctx, cfg.Notify, logger)
	if err != nil {
		return nil, err
	}

	a.Pipeline = pipeline.New(pipeline.Deps{
		Sources:    a.Sources,
		Harvester:  harvester,
		Notified:   state,
		Snapshot:   state,
		Recipients: recipients.FileLoader{Path: cfg.Notify.RecipientsFile, Logger: logger},
		Notifier:   notifier,
		Reporter:   report.NewPrinter(out),
		Clock:      system.New(),
	}, pipeline.Options{
		TrackedName: cfg.Tracked.FullName(),
		Sender:      cfg.Notify.Sender,
		Subject:     cfg.Notify.Subject,
	}, logger)

	logger.Info("application services initialized",
		zap.Int("sources", len(a.Sources)),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("headless", cfg.Harvest.HeadlessEnabled),
	)
	return a, nil
}

// NewClassifier loads the language model and builds the relevance
// classifier for the configured person.
func NewClassifier(cfg config.Config, logger *zap.Logger) (*classifier.Classifier, error) {
	analyzer, err := nlp.NewProseAnalyzer(logger)
	if err != nil {
		return nil, fmt.Errorf("load language model: %w", err)
	}
	policy, err := classifier.ParsePolicy(cfg.Classifier.ProximityPolicy)
	if err != nil {
		return nil, err
	}
	return classifier.New(analyzer, classifier.Options{
		FirstName: cfg.Tracked.FirstName,
		Surname:   cfg.Tracked.Surname,
		Policy:    policy,
	}), nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.Logger.Sync()
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) buildRenderer(cfg config.HarvestConfig, logger *zap.Logger) (harvest.Renderer, error) {
	plain := collyfetcher.New(collyfetcher.Config{UserAgent: cfg.UserAgent, Timeout: cfg.RequestTimeout})
	if !cfg.HeadlessEnabled {
		return fetcher.NewRouter(plain, nil, logger), nil
	}
	scripted, err := headless.NewChromedp(headless.Config{
		MaxParallel: cfg.MaxParallelRenders,
		UserAgent:   cfg.UserAgent,
		WaitTimeout: cfg.WaitTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init headless renderer: %w", err)
	}
	a.onClose(scripted.Close)
	return fetcher.NewRouter(plain, scripted, logger), nil
}

func (a *App) buildStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (stateStore, error) {
	keys := store.Keys{Notified: cfg.NotifiedKey, Snapshot: cfg.SnapshotKey}
	switch cfg.Backend {
	case config.BackendLocal:
		blobs, err := local.New(local.Config{BaseDir: cfg.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		return store.NewJSON(blobs, keys, logger), nil
	case config.BackendGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store.NewJSON(blobs, keys, logger), nil
	case config.BackendPostgres:
		s, err := postgres.NewStateStore(ctx, postgres.Config{
			DSN:           cfg.PostgresDSN,
			NotifiedTable: cfg.NotifiedTable,
			SnapshotTable: cfg.SnapshotTable,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.onClose(s.Close)
		return s, nil
	case config.BackendMemory:
		logger.Warn("memory store selected, state will not survive the process")
		return store.NewJSON(memory.NewBlobStore(), keys, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

func (a *App) buildNotifier(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (harvest.Notifier, error) {
	var out notify.Multi
	if cfg.Email.Enabled {
		out = append(out, notify.NewEmail(notify.EmailConfig{
			Host:        cfg.Email.Host,
			Port:        cfg.Email.Port,
			Username:    cfg.Email.Username,
			Password:    secrets.Password(cfg.Email.KeyringService, cfg.Email.Username, cfg.Email.Password, logger),
			ImplicitTLS: cfg.Email.ImplicitTLS,
		}, logger))
	}
	if cfg.PubSub.Enabled {
		client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		topic := client.Topic(cfg.PubSub.TopicID)
		a.onClose(func() {
			topic.Stop()
			_ = client.Close()
		})
		out = append(out, notify.NewPubSub(topic, logger))
	}
	if len(out) == 0 {
		return notify.NewLog(logger), nil
	}
	return out, nil
}

// Run executes one pass of the pipeline.
func (a *App) Run(ctx context.Context) (pipeline.Report, error) {
	return a.Pipeline.Run(ctx)
}
