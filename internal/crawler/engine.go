package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/clock/system"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/metrics"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
)

// Defaults mirror the pacing the showcase has always been crawled with.
const (
	DefaultStartPage       = 1
	DefaultPolitenessDelay = 2 * time.Second
)

// Config holds the knobs of one crawl run.
type Config struct {
	RunID           string
	StartPage       int
	PolitenessDelay time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// State is the engine's position in its Start → Iterating → Done lifecycle.
type State string

// Engine states.
const (
	StateStart     State = "start"
	StateIterating State = "iterating"
	StateDone      State = "done"
)

// Summary reports what a run did. EndPage is the last page persisted and
// equals StartPage-1 when nothing was persisted.
type Summary struct {
	RunID          string
	StartPage      int
	EndPage        int
	PagesProcessed int
	Records        int
	Fetches        int
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Engine runs the fetch → extract → persist loop one page at a time. It
// never fetches concurrently; the pause between pages is the rate limit.
type Engine struct {
	cfg       Config
	fetcher   showcase.PageFetcher
	extractor showcase.Extractor
	writer    showcase.PageWriter
	clock     Clock
	pauser    pauseController
	logger    *zap.Logger
	metrics   *metrics.Recorder
	state     State
}

// NewEngine wires an Engine. A zero StartPage falls back to page 1. The
// logger should already carry the run id (see logging.ForRun).
func NewEngine(
	cfg Config,
	fetcher showcase.PageFetcher,
	extractor showcase.Extractor,
	writer showcase.PageWriter,
	clock Clock,
	logger *zap.Logger,
	rec *metrics.Recorder,
) *Engine {
	if cfg.StartPage == 0 {
		cfg.StartPage = DefaultStartPage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		writer:    writer,
		clock:     clock,
		pauser:    &timerPauseController{},
		logger:    logger,
		metrics:   rec,
		state:     StateStart,
	}
}

// State reports the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Run crawls from the configured start page until a page yields no records.
// A page that fails to load counts as empty and ends the run the same way;
// it is never retried. The only errors returned are dataset write failures
// and context cancellation, each alongside the summary so far.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	if e.cfg.StartPage < 1 {
		return Summary{}, fmt.Errorf("start page must be >= 1, got %d", e.cfg.StartPage)
	}
	page := e.cfg.StartPage
	summary := Summary{
		RunID:     e.cfg.RunID,
		StartPage: page,
		StartedAt: e.clock.Now(),
	}
	log := e.logger
	log.Info("Starting crawl", zap.Int("start_page", page))
	e.state = StateIterating

	var runErr error
	firstOfRun := true
	for {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("crawl interrupted before page %d: %w", page, err)
			break
		}

		records := e.collectPage(ctx, log, page)
		summary.Fetches++
		if len(records) == 0 {
			if page == e.cfg.StartPage {
				log.Info("No projects found on the starting page; ending crawl", zap.Int("page", page))
			} else {
				log.Info("No more projects found; ending crawl", zap.Int("page", page))
			}
			break
		}

		if err := e.writer.Write(ctx, page, records, firstOfRun); err != nil {
			runErr = fmt.Errorf("persist page %d: %w", page, err)
			break
		}
		firstOfRun = false
		summary.PagesProcessed++
		summary.Records += len(records)
		e.metrics.ObservePage(metrics.ResultPersisted)
		log.Info("Saved page", zap.Int("page", page), zap.Int("records", len(records)))

		page++
		e.pauser.Pause(ctx, e.cfg.PolitenessDelay)
	}

	if runErr == nil && ctx.Err() != nil {
		runErr = fmt.Errorf("crawl interrupted at page %d: %w", page, ctx.Err())
	}
	e.state = StateDone
	summary.EndPage = page - 1
	summary.FinishedAt = e.clock.Now()
	e.metrics.MarkRunCompleted(summary.FinishedAt)
	e.logSummary(log, summary)
	return summary, runErr
}

// collectPage fetches and extracts one page. A fetch failure is logged and
// reported as an empty page.
func (e *Engine) collectPage(ctx context.Context, log *zap.Logger, page int) []showcase.Project {
	content, err := e.fetcher.Fetch(ctx, page)
	if err != nil {
		e.metrics.ObservePage(metrics.ResultFailed)
		log.Warn("Timeout or error loading page", zap.Int("page", page), zap.Error(err))
		return nil
	}

	e.metrics.ObserveFetch(content.FetchedIn)

	records := e.extractor.Extract(content)
	e.metrics.ObserveRecords(len(records))
	if len(records) == 0 {
		e.metrics.ObservePage(metrics.ResultEmpty)
		return nil
	}
	log.Info("Found projects on page",
		zap.Int("page", page),
		zap.String("url", content.URL),
		zap.Int("records", len(records)),
	)
	return records
}

func (e *Engine) logSummary(log *zap.Logger, s Summary) {
	if s.Records == 0 {
		log.Info("No data was scraped in this run.", zap.Int("fetches", s.Fetches))
		return
	}
	log.Info("Crawl finished",
		zap.Int("records", s.Records),
		zap.Int("pages", s.PagesProcessed),
		zap.Int("from_page", s.StartPage),
		zap.Int("to_page", s.EndPage),
		zap.Int("fetches", s.Fetches),
		zap.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	)
}
