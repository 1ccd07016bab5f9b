// Package headless renders showcase listing pages in headless Chrome.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
)

// DefaultTimeout bounds a single page render, network idle included.
const DefaultTimeout = 60 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements showcase.PageFetcher using chromedp. One browser is
// shared across fetches; every fetch gets its own tab.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0, got %s", cfg.Timeout)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch renders the listing page and returns its DOM once the network has
// gone idle. The tab is closed whether or not the render succeeded.
func (f *Fetcher) Fetch(ctx context.Context, pageNum int) (showcase.Content, error) {
	url := showcase.PageURL(f.cfg.BaseURL, pageNum)
	if err := ctx.Err(); err != nil {
		return showcase.Content{}, fmt.Errorf("%w: page %d: %w", showcase.ErrFetchFailed, pageNum, err)
	}

	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, f.timeout())
	defer cancel()

	watch := newLoadWatcher()
	chromedp.ListenTarget(tabCtx, watch.captureEvent)

	start := time.Now()
	html, err := f.render(tabCtx, url, watch)
	if err != nil {
		return showcase.Content{}, fmt.Errorf("%w: page %d: %w", showcase.ErrFetchFailed, pageNum, err)
	}
	if status := watch.status(); status >= http.StatusBadRequest {
		return showcase.Content{}, fmt.Errorf("%w: page %d: status %d", showcase.ErrFetchFailed, pageNum, status)
	}

	return showcase.Content{
		Page:      pageNum,
		URL:       url,
		HTML:      []byte(html),
		FetchedIn: time.Since(start),
	}, nil
}

func (f *Fetcher) render(ctx context.Context, url string, watch *loadWatcher) (string, error) {
	var html string
	actions := []chromedp.Action{
		f.setupAction(),
		chromedp.Navigate(url),
		watch.waitIdle(),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (f *Fetcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) timeout() time.Duration {
	if f.cfg.Timeout > 0 {
		return f.cfg.Timeout
	}
	return DefaultTimeout
}

// loadWatcher follows the main frame's lifecycle events and the document
// response status for one navigation.
type loadWatcher struct {
	mu         sync.Mutex
	frameID    cdp.FrameID
	loaderID   cdp.LoaderID
	docStatus  int
	idle       chan struct{}
	idleClosed bool
}

func newLoadWatcher() *loadWatcher {
	return &loadWatcher{idle: make(chan struct{})}
}

func (w *loadWatcher) captureEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventLifecycleEvent:
		w.lifecycle(e)
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		w.mu.Lock()
		if w.frameID == "" || e.FrameID == w.frameID {
			w.docStatus = int(e.Response.Status)
		}
		w.mu.Unlock()
	}
}

// lifecycle arms on the first "init" event, which belongs to the main
// frame's navigation; child frames start later.
func (w *loadWatcher) lifecycle(e *page.EventLifecycleEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch e.Name {
	case "init":
		if w.loaderID == "" {
			w.frameID = e.FrameID
			w.loaderID = e.LoaderID
		}
	case "networkIdle":
		if w.idleClosed || w.loaderID == "" {
			return
		}
		if e.FrameID == w.frameID && e.LoaderID == w.loaderID {
			w.idleClosed = true
			close(w.idle)
		}
	}
}

func (w *loadWatcher) waitIdle() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		select {
		case <-w.idle:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait for network idle: %w", ctx.Err())
		}
	})
}

func (w *loadWatcher) status() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.docStatus
}
