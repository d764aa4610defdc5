package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"MarketRadar/internal/domain"
	"MarketRadar/internal/ports"
)

// TimestampLayout is the CSV timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// CSVHeader is written once, when the file is first created.
var CSVHeader = []string{"Timestamp", "Score", "Problem", "Idea", "Audience", "Link"}

// CSVSink appends opportunity rows to a flat UTF-8 CSV file.
type CSVSink struct {
	path string
}

var (
	_ ports.Sink         = (*CSVSink)(nil)
	_ ports.RecordReader = (*CSVSink)(nil)
)

// NewCSVSink targets path; the file is created lazily on the first non-empty append.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Path returns the destination file.
func (s *CSVSink) Path() string {
	return s.path
}

// Append encodes all rows in memory and writes them with a single append.
func (s *CSVSink) Append(ctx context.Context, records []domain.OpportunityRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat %s: %w", s.path, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		_ = w.Write(CSVHeader)
	}
	for _, rec := range records {
		_ = w.Write([]string{
			rec.Timestamp.Format(TimestampLayout),
			strconv.Itoa(rec.Score),
			rec.PainPoint,
			rec.SuggestedSolution,
			rec.TargetAudience,
			rec.Permalink,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode rows: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append rows: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

// Recent returns up to limit of the last rows in file order. A missing file
// yields no records.
func (s *CSVSink) Recent(_ context.Context, limit int) ([]domain.OpportunityRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(CSVHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(rows) > 0 && rows[0][0] == CSVHeader[0] {
		rows = rows[1:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	records := make([]domain.OpportunityRecord, 0, len(rows))
	for _, row := range rows {
		ts, _ := time.ParseInLocation(TimestampLayout, row[0], time.Local)
		score, _ := strconv.Atoi(row[1])
		records = append(records, domain.OpportunityRecord{
			Timestamp:         ts,
			Score:             score,
			PainPoint:         row[2],
			SuggestedSolution: row[3],
			TargetAudience:    row[4],
			Permalink:         row[5],
		})
	}
	return records, nil
}
