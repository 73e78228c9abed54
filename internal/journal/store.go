package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists runs, pre-mutation backups and saga steps in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
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

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background(), migrationFS); err != nil {
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// BeginRun records the start of a command invocation.
func (s *Store) BeginRun(ctx context.Context, command string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Command:   strings.TrimSpace(command),
		DryRun:    dryRun,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, command, dry_run, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		run.Command,
		boolToInt(dryRun),
		run.Status,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final status, summary and error of a run.
func (s *Store) FinishRun(ctx context.Context, id string, status RunStatus, summary any, runErr error) error {
	var summaryJSON any
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal run summary: %w", err)
		}
		summaryJSON = string(data)
	}
	var message any
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = ?, finished_at = ?, summary_json = ?, error_message = ? WHERE id = ?`,
		status,
		formatTime(time.Now().UTC()),
		summaryJSON,
		message,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// GetRun fetches a run by ID. A unique prefix of at least 8 characters is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrRunNotFound
	}
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	args := []any{id}
	if len(id) >= 8 && len(id) < 36 {
		query = `SELECT ` + runColumns + ` FROM runs WHERE id LIKE ? LIMIT 2`
		args = []any{id + "%"}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run prefix %q is ambiguous", id)
	}
}

// Runs lists the most recent runs first.
func (s *Store) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordBackup stores a JSON copy of a remote row before it is mutated.
func (s *Store) RecordBackup(ctx context.Context, runID, table, rowID string, payload any) (int64, error) {
	var data []byte
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal backup payload: %w", err)
		}
		data = encoded
	}
	if !json.Valid(data) {
		return 0, fmt.Errorf("backup payload for %s/%s is not valid JSON", table, rowID)
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO backups (run_id, table_name, row_id, payload_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID,
		table,
		rowID,
		string(data),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert backup: %w", err)
	}
	return res.LastInsertId()
}

// Backups lists the backups captured by a run in capture order.
func (s *Store) Backups(ctx context.Context, runID string, pendingOnly bool) ([]Backup, error) {
	query := `SELECT ` + backupColumns + ` FROM backups WHERE run_id = ?`
	if pendingOnly {
		query += ` AND restored_at IS NULL`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []Backup
	for rows.Next() {
		backup, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		backups = append(backups, backup)
	}
	return backups, rows.Err()
}

// MarkRestored flags a backup as re-applied to the remote database.
func (s *Store) MarkRestored(ctx context.Context, backupID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE backups SET restored_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()),
		backupID,
	)
	if err != nil {
		return fmt.Errorf("mark backup restored: %w", err)
	}
	return nil
}

// StartStep records that a saga step is about to run.
func (s *Store) StartStep(ctx context.Context, runID, saga, subjectID, step string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO saga_steps (run_id, saga, subject_id, step, state, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		saga,
		subjectID,
		step,
		StepStarted,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, fmt.Errorf("insert saga step: %w", err)
	}
	return res.LastInsertId()
}

// SetStepState moves a saga step to a new state.
func (s *Store) SetStepState(ctx context.Context, stepID int64, state StepState, detail string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE saga_steps SET state = ?, detail = ?, updated_at = ? WHERE id = ?`,
		state,
		nullableString(detail),
		formatTime(time.Now().UTC()),
		stepID,
	)
	if err != nil {
		return fmt.Errorf("update saga step: %w", err)
	}
	return nil
}

// Steps lists the saga steps of a run.
func (s *Store) Steps(ctx context.Context, runID string) ([]Step, error) {
	return s.querySteps(ctx, `SELECT `+stepColumns+` FROM saga_steps WHERE run_id = ? ORDER BY id`, runID)
}

// OpenSteps lists steps that never reached done or compensated: partial
// mutations left behind by a crash or a failed compensation.
func (s *Store) OpenSteps(ctx context.Context) ([]Step, error) {
	return s.querySteps(
		ctx,
		`SELECT `+stepColumns+` FROM saga_steps WHERE state IN (?, ?, ?) ORDER BY id`,
		StepStarted,
		StepFailed,
		StepStranded,
	)
}

func (s *Store) querySteps(ctx context.Context, query string, args ...any) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list saga steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Export assembles the machine-readable report of a run.
func (s *Store) Export(ctx context.Context, runID string) (*Export, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	backups, err := s.Backups(ctx, run.ID, false)
	if err != nil {
		return nil, err
	}
	steps, err := s.Steps(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if backups == nil {
		backups = []Backup{}
	}
	if steps == nil {
		steps = []Step{}
	}
	return &Export{Run: *run, Backups: backups, Steps: steps}, nil
}
