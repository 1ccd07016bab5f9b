// Package collyfetcher fetches showcase listing pages over plain HTTP with
// gocolly. It does not execute JavaScript.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 60 * time.Second

// Config controls collector behavior.
type Config struct {
	BaseURL       string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements showcase.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}, nil
}

// Fetch executes a single HTTP GET for the listing page.
func (f *Fetcher) Fetch(ctx context.Context, page int) (showcase.Content, error) {
	var (
		result   showcase.Content
		fetchErr error
	)
	url := showcase.PageURL(f.cfg.BaseURL, page)
	collector := f.buildCollector(page, time.Now(), &result, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return showcase.Content{}, fmt.Errorf("%w: page %d: %w", showcase.ErrFetchFailed, page, err)
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	page int,
	start time.Time,
	result *showcase.Content,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.timeout())
	collector.WithTransport(f.transport)

	configureCollectorHooks(collector, page, start, result, fetchErr)
	return collector
}

func configureCollectorHooks(
	hooks collectorHooks,
	page int,
	start time.Time,
	result *showcase.Content,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = showcase.Content{
			Page:      page,
			URL:       r.Request.URL.String(),
			HTML:      append([]byte(nil), r.Body...),
			FetchedIn: time.Since(start),
		}
	})

	// Colly reports non-2xx statuses here as well as transport errors.
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) timeout() time.Duration {
	if f.cfg.Timeout > 0 {
		return f.cfg.Timeout
	}
	return DefaultTimeout
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
