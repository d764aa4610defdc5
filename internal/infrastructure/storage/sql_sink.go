package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"MarketRadar/internal/domain"
	"MarketRadar/internal/ports"
)

const opportunitiesTable = "opportunities"

var opportunityColumns = []string{"id", "created_at", "score", "problem", "idea", "audience", "link"}

// SQLSink persists opportunity records into SQLite or Postgres.
type SQLSink struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var (
	_ ports.Sink         = (*SQLSink)(nil)
	_ ports.RecordReader = (*SQLSink)(nil)
)

// OpenSQLSink opens the database and creates the table if needed.
// driver is "sqlite" or "postgres".
func OpenSQLSink(ctx context.Context, driver, dsn string) (*SQLSink, error) {
	var builder sq.StatementBuilderType
	switch driver {
	case "sqlite":
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
		}
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	case "postgres":
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := NewSQLSink(db, builder)
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewSQLSink wires an already opened sql.DB.
func NewSQLSink(db *sql.DB, builder sq.StatementBuilderType) *SQLSink {
	return &SQLSink{db: db, builder: builder}
}

func ensureSQLiteDir(dsn string) error {
	path := dsn
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	return nil
}

func (s *SQLSink) migrate(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS opportunities (
		id         TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		score      INTEGER NOT NULL,
		problem    TEXT NOT NULL,
		idea       TEXT NOT NULL,
		audience   TEXT NOT NULL,
		link       TEXT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Append inserts every record in one transaction.
func (s *SQLSink) Append(ctx context.Context, records []domain.OpportunityRecord) error {
	if s.db == nil || len(records) == 0 {
		return nil
	}

	insert := s.builder.Insert(opportunitiesTable).Columns(opportunityColumns...)
	for _, rec := range records {
		insert = insert.Values(
			ulid.Make().String(),
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.Score,
			rec.PainPoint,
			rec.SuggestedSolution,
			rec.TargetAudience,
			rec.Permalink,
		)
	}
	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert opportunities: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit opportunities: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest records, oldest first.
func (s *SQLSink) Recent(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	if s.db == nil {
		return nil, nil
	}

	sel := s.builder.Select(opportunityColumns[1:]...).From(opportunitiesTable).OrderBy("id DESC")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query opportunities: %w", err)
	}

	var records []domain.OpportunityRecord
	for rows.Next() {
		var (
			rec     domain.OpportunityRecord
			created string
		)
		if err := rows.Scan(&created, &rec.Score, &rec.PainPoint, &rec.SuggestedSolution, &rec.TargetAudience, &rec.Permalink); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Close releases the database handle.
func (s *SQLSink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
