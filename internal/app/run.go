package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/config"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/crawler"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/dataset"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/extractor"
	collyfetcher "github.com/Potti1234/ETHGlobalProjectAnalysis/internal/fetcher/colly"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/fetcher/headless"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/logging"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/runlog"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/storage"
)

// Notification events.
const (
	EventCrawlCompleted  = "crawl.completed"
	EventDedupeCompleted = "dedupe.completed"
)

// Notification is the JSON body published after every run.
type Notification struct {
	RunID       string    `json:"run_id"`
	Command     string    `json:"command"`
	StartPage   int       `json:"start_page,omitempty"`
	EndPage     int       `json:"end_page,omitempty"`
	Pages       int       `json:"pages"`
	Records     int       `json:"records"`
	Duplicates  int       `json:"duplicates,omitempty"`
	DatasetPath string    `json:"dataset_path"`
	DatasetHash string    `json:"dataset_sha256,omitempty"`
	BlobURI     string    `json:"blob_uri,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Error       string    `json:"error,omitempty"`
}

// Crawl runs one crawl from startPage and then publishes the dataset. The
// crawl's own error, if any, comes first in the returned error.
func (a *App) Crawl(ctx context.Context, startPage int) (crawler.Summary, error) {
	runID, err := a.ids.NewID()
	if err != nil {
		return crawler.Summary{}, fmt.Errorf("new run id: %w", err)
	}
	log := logging.ForRun(a.logger, runlog.CommandCrawl, runID)

	fetcher, closeFetcher, err := a.pageFetcher()
	if err != nil {
		return crawler.Summary{}, err
	}
	defer closeFetcher()

	writer, err := dataset.NewWriter(a.cfg.Dataset.Path, startPage, log, a.metrics)
	if err != nil {
		return crawler.Summary{}, fmt.Errorf("init dataset writer: %w", err)
	}
	engine := crawler.NewEngine(
		crawler.Config{
			RunID:           runID,
			StartPage:       startPage,
			PolitenessDelay: a.cfg.Crawl.PolitenessDelay,
		},
		fetcher,
		extractor.New(a.cfg.Crawl.Origin, log, a.metrics),
		writer,
		a.clock,
		log,
		a.metrics,
	)

	summary, runErr := engine.Run(ctx)
	note := Notification{
		RunID:       runID,
		Command:     runlog.CommandCrawl,
		StartPage:   summary.StartPage,
		EndPage:     summary.EndPage,
		Pages:       summary.PagesProcessed,
		Records:     summary.Records,
		DatasetPath: writer.Path(),
		StartedAt:   summary.StartedAt,
		FinishedAt:  summary.FinishedAt,
	}
	if runErr != nil {
		note.Error = runErr.Error()
	}
	finishErr := a.finish(context.WithoutCancel(ctx), log, EventCrawlCompleted, &note, summary.Fetches, summary.PagesProcessed > 0)
	metricsErr := a.writeMetrics()
	if runErr == nil && finishErr == nil && metricsErr == nil {
		return summary, nil
	}
	return summary, joinErrs(runErr, finishErr, metricsErr)
}

// Dedupe writes the unique-by-link dataset and publishes it.
func (a *App) Dedupe(ctx context.Context) (dataset.DedupeStats, error) {
	if err := ctx.Err(); err != nil {
		return dataset.DedupeStats{}, fmt.Errorf("dedupe: %w", err)
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return dataset.DedupeStats{}, fmt.Errorf("new run id: %w", err)
	}
	log := logging.ForRun(a.logger, runlog.CommandDedupe, runID)

	started := a.clock.Now()
	stats, runErr := dataset.Dedupe(a.cfg.Dataset.Path, a.cfg.Dataset.UniquePath)
	note := Notification{
		RunID:       runID,
		Command:     runlog.CommandDedupe,
		Records:     stats.Unique,
		Duplicates:  stats.Duplicates,
		DatasetPath: a.cfg.Dataset.UniquePath,
		StartedAt:   started,
		FinishedAt:  a.clock.Now(),
	}
	if runErr != nil {
		note.Error = runErr.Error()
		log.Error("Dedupe failed", zap.String("path", a.cfg.Dataset.Path), zap.Error(runErr))
	} else {
		a.metrics.ObserveDedupe(stats.Unique, stats.Duplicates)
		a.metrics.MarkRunCompleted(note.FinishedAt)
		log.Info("Data cleaning complete",
			zap.String("path", a.cfg.Dataset.UniquePath),
			zap.Int("rows", stats.Rows),
			zap.Int("unique", stats.Unique),
			zap.Int("duplicates", stats.Duplicates),
		)
	}

	finishErr := a.finish(context.WithoutCancel(ctx), log, EventDedupeCompleted, &note, 0, runErr == nil)
	metricsErr := a.writeMetrics()
	if runErr == nil && finishErr == nil && metricsErr == nil {
		return stats, nil
	}
	return stats, joinErrs(runErr, finishErr, metricsErr)
}

// finish fingerprints and uploads the dataset when upload is set, then
// records the run and announces it. Every sink is attempted even when an
// earlier one fails.
func (a *App) finish(ctx context.Context, log *zap.Logger, event string, note *Notification, fetches int, upload bool) error {
	var errs []error
	if upload {
		if err := a.uploadDataset(ctx, note); err != nil {
			log.Error("Dataset upload failed", zap.String("path", note.DatasetPath), zap.Error(err))
			errs = append(errs, err)
		} else if note.BlobURI != "" {
			log.Info("Dataset uploaded", zap.String("uri", note.BlobURI), zap.String("sha256", note.DatasetHash))
		}
	}

	run := runlog.Run{
		ID:          note.RunID,
		Command:     note.Command,
		StartPage:   note.StartPage,
		EndPage:     note.EndPage,
		Pages:       note.Pages,
		Records:     note.Records,
		Fetches:     fetches,
		StartedAt:   note.StartedAt,
		FinishedAt:  note.FinishedAt,
		DatasetPath: note.DatasetPath,
		DatasetHash: note.DatasetHash,
		BlobURI:     note.BlobURI,
		Error:       note.Error,
	}
	if err := a.ledger.RecordRun(ctx, run); err != nil {
		log.Error("Recording run failed", zap.Error(err))
		errs = append(errs, fmt.Errorf("record run: %w", err))
	}

	if _, err := a.publisher.Publish(ctx, event, *note); err != nil {
		log.Error("Publishing run notification failed", zap.String("event", event), zap.Error(err))
		errs = append(errs, fmt.Errorf("publish %s: %w", event, err))
	}
	return errors.Join(errs...)
}

func (a *App) uploadDataset(ctx context.Context, note *Notification) error {
	digest, err := a.hasher.HashFile(note.DatasetPath)
	if err != nil {
		return fmt.Errorf("hash dataset: %w", err)
	}
	note.DatasetHash = digest

	objectPath, err := storage.ObjectPath(a.cfg.Storage.Prefix, note.RunID, filepath.Base(note.DatasetPath))
	if err != nil {
		return err
	}
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Open(note.DatasetPath)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	uri, err := a.blobs.PutObject(ctx, objectPath, storage.CSVContentType, f)
	if err != nil {
		return fmt.Errorf("upload dataset: %w", err)
	}
	note.BlobURI = uri
	return nil
}

func (a *App) pageFetcher() (showcase.PageFetcher, func(), error) {
	if a.fetcher != nil {
		return a.fetcher, func() {}, nil
	}
	switch a.cfg.Fetcher.Mode {
	case config.FetcherStatic:
		f, err := collyfetcher.New(collyfetcher.Config{
			BaseURL:   a.cfg.Crawl.BaseURL,
			UserAgent: a.cfg.Fetcher.UserAgent,
			Timeout:   a.cfg.Fetcher.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init static fetcher: %w", err)
		}
		return f, func() {}, nil
	case config.FetcherHeadless, "":
		f, err := headless.NewChromedp(headless.Config{
			BaseURL:   a.cfg.Crawl.BaseURL,
			UserAgent: a.cfg.Fetcher.UserAgent,
			Timeout:   a.cfg.Fetcher.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		return f, f.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetcher mode: %s", a.cfg.Fetcher.Mode)
	}
}
