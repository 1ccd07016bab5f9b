package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LinkColumn is the dedup key.
const LinkColumn = "link"

var (
	// ErrEmptyDataset is returned when the primary file has no header row.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrNoLinkColumn is returned when the header lacks the link column.
	ErrNoLinkColumn = errors.New("dataset has no link column")
)

// DedupeStats summarises one Dedupe pass.
type DedupeStats struct {
	Rows       int
	Unique     int
	Duplicates int
}

// Dedupe reads the whole primary dataset at src and writes dst with one row
// per distinct link: the first occurrence, in original order. The header is
// copied from src. Output depends only on the content of src, so repeated
// runs produce identical files.
func Dedupe(src, dst string) (DedupeStats, error) {
	// #nosec G304 -- the dataset path comes from operator configuration.
	in, err := os.Open(src)
	if err != nil {
		return DedupeStats{}, fmt.Errorf("open dataset %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read-only handle

	var buf bytes.Buffer
	stats, err := dedupeRows(in, &buf)
	if err != nil {
		return DedupeStats{}, fmt.Errorf("dedupe %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return DedupeStats{}, fmt.Errorf("create dir for %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil { // #nosec G306 -- dataset is meant to be shared
		return DedupeStats{}, fmt.Errorf("write unique dataset %s: %w", dst, err)
	}
	return stats, nil
}

func dedupeRows(r io.Reader, w io.Writer) (DedupeStats, error) {
	cr := csv.NewReader(r)
	// Resumed runs are not schema-checked, so tolerate ragged rows.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return DedupeStats{}, ErrEmptyDataset
	}
	if err != nil {
		return DedupeStats{}, fmt.Errorf("read header: %w", err)
	}
	keyIdx := indexOf(header, LinkColumn)
	if keyIdx < 0 {
		return DedupeStats{}, ErrNoLinkColumn
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return DedupeStats{}, fmt.Errorf("write header: %w", err)
	}

	var stats DedupeStats
	seen := make(map[string]struct{})
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return DedupeStats{}, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++
		key := ""
		if keyIdx < len(row) {
			key = row[keyIdx]
		}
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		stats.Unique++
		if err := cw.Write(row); err != nil {
			return DedupeStats{}, fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return DedupeStats{}, fmt.Errorf("flush rows: %w", err)
	}
	return stats, nil
}

func indexOf(header []string, column string) int {
	for i, h := range header {
		if h == column {
			return i
		}
	}
	return -1
}
