package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"storyreel/internal/config"
	"storyreel/internal/model"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database under the configured data
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JobStorePath())
}

// OpenPath opens the job database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// New inserts a job in the Parsing stage for raw.
func (s *Store) New(ctx context.Context, title, raw string, settings model.Settings) (*Job, error) {
	j := &Job{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		RawScript: raw,
		Settings:  settings,
		Stage:     StageParsing,
	}
	if err := s.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Create inserts j, assigning an identifier and timestamps when unset.
func (s *Store) Create(ctx context.Context, j *Job) error {
	if j == nil {
		return errors.New("job is nil")
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Stage == "" {
		j.Stage = StageParsing
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now

	cols, err := encodeColumns(j)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO jobs (
            id, title, raw_script, settings_json, stage, progress, errors_json,
            artifacts_json, output_path, manifest_path, failure_reason,
            created_at, updated_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID,
		nullableString(j.Title),
		j.RawScript,
		cols.settings,
		j.Stage,
		j.Progress,
		cols.errors,
		cols.artifacts,
		nullableString(j.OutputPath),
		nullableString(j.ManifestPath),
		nullableString(j.FailureReason),
		formatTime(j.CreatedAt),
		formatTime(j.UpdatedAt),
		nullableTime(j.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by identifier. A missing job returns nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, j *Job) error {
	if j == nil {
		return errors.New("job is nil")
	}
	j.UpdatedAt = time.Now().UTC()
	cols, err := encodeColumns(j)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET title = ?, settings_json = ?, stage = ?, progress = ?, errors_json = ?,
             artifacts_json = ?, output_path = ?, manifest_path = ?, failure_reason = ?,
             updated_at = ?, completed_at = ?
         WHERE id = ?`,
		nullableString(j.Title),
		cols.settings,
		j.Stage,
		j.Progress,
		cols.errors,
		cols.artifacts,
		nullableString(j.OutputPath),
		nullableString(j.ManifestPath),
		nullableString(j.FailureReason),
		formatTime(j.UpdatedAt),
		nullableTime(j.CompletedAt),
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update job %s: no such job", j.ID)
	}
	return nil
}

// List returns jobs filtered by stage set (or all jobs when no stage is
// provided), oldest first.
func (s *Store) List(ctx context.Context, stages ...Stage) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		query := baseQuery + ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Delete removes a job by identifier.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ExpiredBefore returns identifiers of terminal jobs last updated before cutoff.
func (s *Store) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id FROM jobs WHERE stage IN (?, ?, ?) AND updated_at < ? ORDER BY updated_at`,
		StageCompleted, StageFailed, StageCancelled, formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PurgeOlderThan deletes terminal jobs last updated before cutoff.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE stage IN (?, ?, ?) AND updated_at < ?`,
		StageCompleted, StageFailed, StageCancelled, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by stage.
func (s *Store) Stats(ctx context.Context) (map[Stage]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT stage, COUNT(1) FROM jobs GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Stage]int)
	for rows.Next() {
		var stage Stage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats[stage] = count
	}
	return stats, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
