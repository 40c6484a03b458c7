package results

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; old databases must be deleted.
const schemaVersion = 1

// ErrRunNotFound indicates no run matches the requested id or label.
var ErrRunNotFound = errors.New("results: run not found")

// ErrSchemaMismatch indicates the database schema version doesn't match.
var ErrSchemaMismatch = errors.New("results: schema version mismatch")

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists scan runs and their outcome rows in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the run database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// CreateRun records the start of a scan run and returns it with a fresh id.
func (s *Store) CreateRun(ctx context.Context, label, env string) (Run, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Run{}, errors.New("results: run label required")
	}
	run := Run{
		ID:        uuid.NewString(),
		Label:     label,
		Env:       env,
		StartedAt: time.Now().UTC(),
	}
	err := s.execWithRetry(ctx,
		"INSERT INTO runs (id, label, env, started_at) VALUES (?, ?, ?, ?)",
		run.ID, run.Label, run.Env, run.StartedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun marks a run complete with its final image count.
func (s *Store) FinishRun(ctx context.Context, runID string, imageCount int) error {
	err := s.execWithRetry(ctx,
		"UPDATE runs SET finished_at = ?, image_count = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), imageCount, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// AppendOutcome stores one outcome row at the given position within a run.
func (s *Store) AppendOutcome(ctx context.Context, runID string, position int, row Row) error {
	err := s.execWithRetry(ctx, `
		INSERT INTO outcomes (
			run_id, position, image_id, processing_id, match_status,
			vintage_id, wine_id, confidence, expected_vintage_id,
			label_ocr_text, image_location, upload_status, http_status,
			match_message, contradiction, integrity_issue,
			upload_duration_ms, fetch_duration_ms, total_duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, position, row.ImageID, row.ProcessingID, row.MatchStatus,
		row.VintageID, row.WineID, row.Confidence, row.ExpectedVintageID,
		row.LabelOCRText, row.ImageLocation, row.UploadStatus, row.HTTPStatus,
		row.MatchMessage, row.Contradiction, row.IntegrityIssue,
		row.UploadDurationMS, row.FetchDurationMS, row.TotalDurationMS, row.Error)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, label, env, started_at, COALESCE(finished_at, ''), image_count FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FindRun resolves a run by exact id or, failing that, the most recent run
// with the given label.
func (s *Store) FindRun(ctx context.Context, idOrLabel string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, label, env, started_at, COALESCE(finished_at, ''), image_count FROM runs WHERE id = ?",
		idOrLabel)
	run, err := scanRun(row)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}

	row = s.db.QueryRowContext(ctx,
		"SELECT id, label, env, started_at, COALESCE(finished_at, ''), image_count FROM runs WHERE label = ? ORDER BY started_at DESC LIMIT 1",
		idOrLabel)
	run, err = scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %q", ErrRunNotFound, idOrLabel)
	}
	return run, err
}

// RunOutcomes returns a run's outcome rows in recorded order.
func (s *Store) RunOutcomes(ctx context.Context, runID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT image_id, processing_id, match_status, vintage_id, wine_id,
			confidence, expected_vintage_id, label_ocr_text, image_location,
			upload_status, http_status, match_message, contradiction,
			integrity_issue, upload_duration_ms, fetch_duration_ms,
			total_duration_ms, error
		FROM outcomes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(
			&r.ImageID, &r.ProcessingID, &r.MatchStatus, &r.VintageID, &r.WineID,
			&r.Confidence, &r.ExpectedVintageID, &r.LabelOCRText, &r.ImageLocation,
			&r.UploadStatus, &r.HTTPStatus, &r.MatchMessage, &r.Contradiction,
			&r.IntegrityIssue, &r.UploadDurationMS, &r.FetchDurationMS,
			&r.TotalDurationMS, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// DeleteRun removes a run and its outcomes.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if err := s.execWithRetry(ctx, "DELETE FROM outcomes WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("delete outcomes: %w", err)
	}
	if err := s.execWithRetry(ctx, "DELETE FROM runs WHERE id = ?", runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (Run, error) {
	var (
		run      Run
		started  string
		finished string
	)
	if err := scanner.Scan(&run.ID, &run.Label, &run.Env, &started, &finished, &run.ImageCount); err != nil {
		return Run{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
		run.StartedAt = ts
	}
	if finished != "" {
		if ts, err := time.Parse(time.RFC3339Nano, finished); err == nil {
			run.FinishedAt = ts
		}
	}
	return run, nil
}
