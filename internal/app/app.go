// Package app wires configuration into the long-lived services a command
// needs and runs the crawl and dedupe commands against them.
package app

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/clock/system"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/config"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/crawler"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/hash/sha256"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/id/uuid"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/metrics"
	pubsubpublisher "github.com/Potti1234/ETHGlobalProjectAnalysis/internal/publisher/pubsub"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/runlog"
	runlogpg "github.com/Potti1234/ETHGlobalProjectAnalysis/internal/runlog/postgres"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/storage"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/storage/gcs"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/storage/local"
)

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) (string, error)
}

// NoopPublisher discards notifications.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, string, any) (string, error) {
	return "", nil
}

// IDGenerator yields run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// FileHasher fingerprints a dataset file.
type FileHasher interface {
	HashFile(path string) (string, error)
}

// Deps lets callers replace any service New would otherwise build from
// configuration. Nil fields fall back to the configured providers.
type Deps struct {
	Blobs     storage.BlobStore
	Ledger    runlog.Ledger
	Publisher Publisher
	Fetcher   showcase.PageFetcher
	IDs       IDGenerator
	Clock     crawler.Clock
	Hasher    FileHasher
	Metrics   *metrics.Recorder
}

// App holds the shared services for one command invocation.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	metrics   *metrics.Recorder
	blobs     storage.BlobStore
	ledger    runlog.Ledger
	publisher Publisher
	fetcher   showcase.PageFetcher
	ids       IDGenerator
	clock     crawler.Clock
	hasher    FileHasher
	closers   []func()
}

// New initializes an App from cfg. Providers that cannot connect fail the
// call so a misconfigured run never starts crawling.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return NewWithDeps(ctx, cfg, logger, Deps{})
}

// NewWithDeps is New with explicit overrides.
func NewWithDeps(ctx context.Context, cfg config.Config, logger *zap.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:       cfg,
		logger:    logger,
		metrics:   deps.Metrics,
		blobs:     deps.Blobs,
		ledger:    deps.Ledger,
		publisher: deps.Publisher,
		fetcher:   deps.Fetcher,
		ids:       deps.IDs,
		clock:     deps.Clock,
		hasher:    deps.Hasher,
	}
	if a.ids == nil {
		a.ids = uuid.New()
	}
	if a.clock == nil {
		a.clock = system.New()
	}
	if a.hasher == nil {
		a.hasher = sha256.New()
	}
	if a.metrics == nil {
		rec, err := metrics.New()
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		a.metrics = rec
	}

	steps := []func(context.Context) error{a.initBlobStore, a.initLedger, a.initPublisher}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	logger.Debug("Application services initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("db", cfg.DB.Provider),
		zap.String("pubsub", cfg.PubSub.Provider),
	)
	return a, nil
}

func (a *App) initBlobStore(ctx context.Context) error {
	if a.blobs != nil {
		return nil
	}
	switch a.cfg.Storage.Provider {
	case config.ProviderGCS:
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		if _, err := client.Bucket(a.cfg.Storage.GCSBucket).Attrs(ctx); err != nil {
			return fmt.Errorf("get gcs bucket %q attributes: %w", a.cfg.Storage.GCSBucket, err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("init gcs store: %w", err)
		}
		a.logger.Info("Using GCS blob store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		a.blobs = store
	case config.ProviderLocal:
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("init local store: %w", err)
		}
		a.blobs = store
	case config.ProviderNoop, "":
		a.blobs = storage.NoopBlobStore{}
	default:
		return fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
	return nil
}

func (a *App) initLedger(ctx context.Context) error {
	if a.ledger != nil {
		return nil
	}
	switch a.cfg.DB.Provider {
	case config.ProviderPostgres:
		store, err := runlogpg.New(ctx, runlogpg.Config{DSN: a.cfg.DB.DSN, Table: a.cfg.DB.Table})
		if err != nil {
			return fmt.Errorf("init run ledger: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("init run ledger: %w", err)
		}
		a.ledger = store
	case config.ProviderNoop, "":
		a.ledger = runlog.NoopLedger{}
	default:
		return fmt.Errorf("unknown db provider: %s", a.cfg.DB.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	if a.publisher != nil {
		return nil
	}
	switch a.cfg.PubSub.Provider {
	case config.ProviderPubSub:
		client, err := gcppubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		topic := client.Topic(a.cfg.PubSub.TopicName)
		exists, err := topic.Exists(ctx)
		if err != nil {
			return fmt.Errorf("check pubsub topic %q: %w", a.cfg.PubSub.TopicName, err)
		}
		if !exists {
			return fmt.Errorf("pubsub topic %q does not exist in project %q", a.cfg.PubSub.TopicName, a.cfg.PubSub.ProjectID)
		}
		pub := pubsubpublisher.New(topic)
		// Runs before the client close registered above.
		a.closers = append(a.closers, pub.Stop)
		a.publisher = pub
	case config.ProviderNoop, "":
		a.publisher = NoopPublisher{}
	default:
		return fmt.Errorf("unknown pubsub provider: %s", a.cfg.PubSub.Provider)
	}
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Metrics returns the run's metrics recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

// Close releases provider connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) writeMetrics() error {
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// joinErrs keeps the primary error first so errors.Is sees it.
func joinErrs(primary error, rest ...error) error {
	return errors.Join(append([]error{primary}, rest...)...)
}
