// Package dataset persists showcase records to the append-only CSV dataset
// and derives the unique-by-link copy from it.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/metrics"
	"github.com/Potti1234/ETHGlobalProjectAnalysis/internal/showcase"
)

// Writer appends pages of records to the primary dataset. It holds no file
// handle between calls: every Write opens, appends, flushes and closes.
type Writer struct {
	path      string
	startPage int
	logger    *zap.Logger
	metrics   *metrics.Recorder
}

// NewWriter returns a Writer for a run that begins at startPage. The start
// page drives the header policy for the run's first persisted page.
func NewWriter(path string, startPage int, logger *zap.Logger, rec *metrics.Recorder) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("dataset path is required")
	}
	if startPage < 1 {
		return nil, fmt.Errorf("start page must be >= 1, got %d", startPage)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		path:      path,
		startPage: startPage,
		logger:    logger,
		metrics:   rec,
	}, nil
}

// Path returns the dataset location.
func (w *Writer) Path() string {
	return w.path
}

// writeMode captures how one Write opens the file.
type writeMode struct {
	truncate bool
	header   bool
}

// modeFor applies the header policy. Only the first persisted page of a run
// can truncate or emit a header; an existing file's columns are not checked.
func (w *Writer) modeFor(firstOfRun bool) (writeMode, error) {
	if !firstOfRun {
		return writeMode{}, nil
	}
	if w.startPage == 1 {
		return writeMode{truncate: true, header: true}, nil
	}
	exists, err := fileExists(w.path)
	if err != nil {
		return writeMode{}, err
	}
	return writeMode{header: !exists}, nil
}

// Write appends records for page. firstOfRun marks the first page this run
// persists.
func (w *Writer) Write(ctx context.Context, page int, records []showcase.Project, firstOfRun bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	mode, err := w.modeFor(firstOfRun)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return fmt.Errorf("create dataset dir for %s: %w", w.path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if mode.truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	// #nosec G304 -- the dataset path comes from operator configuration.
	f, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open dataset %s: %w", w.path, err)
	}

	if err := writeRows(f, records, mode.header); err != nil {
		_ = f.Close()
		return fmt.Errorf("append page %d to %s: %w", page, w.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close dataset %s: %w", w.path, err)
	}

	w.metrics.ObserveRowsWritten(len(records))
	w.logger.Debug("Appended page to dataset",
		zap.Int("page", page),
		zap.Int("records", len(records)),
		zap.Bool("truncated", mode.truncate),
		zap.Bool("header", mode.header),
		zap.String("path", w.path),
	)
	return nil
}

func writeRows(f *os.File, records []showcase.Project, header bool) error {
	cw := csv.NewWriter(f)
	if header {
		if err := cw.Write(showcase.Columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, rec := range records {
		if err := cw.Write(rec.Row()); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat dataset %s: %w", path, err)
	}
}
