package headless

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/require"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{})
	require.Error(t, err)

	_, err = NewChromedp(Config{BaseURL: "https://ethglobal.com/showcase?page=", Timeout: -time.Second})
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{BaseURL: "https://ethglobal.com/showcase?page="})
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)
}

func TestFetcherTimeoutDefault(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	require.Equal(t, DefaultTimeout, fetcher.timeout())
	fetcher.cfg.Timeout = time.Second
	require.Equal(t, time.Second, fetcher.timeout())
}

func TestLoadWatcherIdleOnMainFrameOnly(t *testing.T) {
	t.Parallel()

	w := newLoadWatcher()
	w.captureEvent(&page.EventLifecycleEvent{Name: "init", FrameID: "main", LoaderID: "L1"})
	w.captureEvent(&page.EventLifecycleEvent{Name: "init", FrameID: "child", LoaderID: "L2"})
	w.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle", FrameID: "child", LoaderID: "L2"})

	select {
	case <-w.idle:
		t.Fatal("child frame idle must not release the wait")
	default:
	}

	w.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle", FrameID: "main", LoaderID: "L1"})
	w.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle", FrameID: "main", LoaderID: "L1"})

	select {
	case <-w.idle:
	default:
		t.Fatal("expected main frame idle to release the wait")
	}
}

func TestLoadWatcherIgnoresIdleBeforeInit(t *testing.T) {
	t.Parallel()

	w := newLoadWatcher()
	w.captureEvent(&page.EventLifecycleEvent{Name: "networkIdle", FrameID: "about:blank", LoaderID: "L0"})
	require.False(t, w.idleClosed)
}

func TestLoadWatcherDocumentStatus(t *testing.T) {
	t.Parallel()

	w := newLoadWatcher()
	w.captureEvent(&page.EventLifecycleEvent{Name: "init", FrameID: "main", LoaderID: "L1"})
	w.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		FrameID:  "main",
		Response: &network.Response{Status: 503},
	})
	w.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		FrameID:  "main",
		Response: &network.Response{Status: 200},
	})
	w.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		FrameID:  "child",
		Response: &network.Response{Status: 200},
	})
	require.Equal(t, 503, w.status())
}

func TestWaitIdleHonoursContext(t *testing.T) {
	t.Parallel()

	w := newLoadWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.waitIdle().Do(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetchCanceledContextFails(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{BaseURL: "https://ethglobal.com/showcase?page="})
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fetcher.Fetch(ctx, 3)
	require.ErrorIs(t, err, showcase.ErrFetchFailed)
	require.ErrorIs(t, err, context.Canceled)
}

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no chrome binary on PATH")
}

func TestFetchCancelMidRenderReleasesTab(t *testing.T) {
	requireChrome(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	fetcher, err := NewChromedp(Config{BaseURL: srv.URL + "/showcase?page=", Timeout: 30 * time.Second})
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := fetcher.Fetch(ctx, 1)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, showcase.ErrFetchFailed)
	case <-time.After(20 * time.Second):
		t.Fatal("Fetch did not return after the caller's context expired")
	}
}

func TestFetchErrorStatusFails(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	fetcher, err := NewChromedp(Config{BaseURL: srv.URL + "/showcase?page=", Timeout: 20 * time.Second})
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)

	_, err = fetcher.Fetch(context.Background(), 1)
	require.ErrorIs(t, err, showcase.ErrFetchFailed)
}
