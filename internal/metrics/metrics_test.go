package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)

	r.ObservePage(ResultPersisted)
	r.ObservePage(ResultPersisted)
	r.ObservePage(ResultEmpty)
	r.ObserveFetch(1500 * time.Millisecond)
	r.ObserveFetch(0)
	r.ObserveRecords(3)
	r.ObserveRecords(0)
	r.ObserveFieldFailure("name")
	r.ObserveRowsWritten(3)
	r.ObserveDedupe(2, 1)

	require.InDelta(t, 2, testutil.ToFloat64(r.pagesTotal.WithLabelValues(ResultPersisted)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.pagesTotal.WithLabelValues(ResultEmpty)), 0)
	require.InDelta(t, 3, testutil.ToFloat64(r.recordsTotal), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.fieldFailuresTotal.WithLabelValues("name")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(r.rowsWrittenTotal), 0)
	require.InDelta(t, 2, testutil.ToFloat64(r.dedupeRowsTotal.WithLabelValues("kept")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.dedupeRowsTotal.WithLabelValues("dropped")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(r.fetchDuration))
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.ObservePage(ResultFailed)
	r.ObserveFetch(time.Second)
	r.ObserveRecords(1)
	r.ObserveFieldFailure("event")
	r.ObserveRowsWritten(1)
	r.ObserveDedupe(1, 1)
	r.MarkRunCompleted(time.Now())
	require.Nil(t, r.Registry())
	require.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)
	r.ObservePage(ResultPersisted)
	r.MarkRunCompleted(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "showcase.prom")
	require.NoError(t, r.WriteTextfile(path))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `showcase_pages_total{result="persisted"} 1`)
	require.Contains(t, string(data), "showcase_last_run_completed_timestamp_seconds")
}

func TestWriteTextfileEmptyPathSkips(t *testing.T) {
	t.Parallel()

	r, err := New()
	require.NoError(t, err)
	require.NoError(t, r.WriteTextfile(""))
}
