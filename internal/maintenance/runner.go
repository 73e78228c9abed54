package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"oshimaint/internal/journal"
	"oshimaint/internal/logging"
	"oshimaint/internal/notifications"
	"oshimaint/internal/runlock"
	"oshimaint/internal/services"
)

// Summary is the report an operation hands back to the runner.
type Summary interface {
	Counts() map[string]int
}

// Session is one journaled run as seen by an operation.
type Session struct {
	RunID   string
	Command string
	DryRun  bool

	journal *journal.Store
}

// NewSession binds an existing journal run. Runner.Do is the usual entry point.
func NewSession(store *journal.Store, run *journal.Run) *Session {
	return &Session{RunID: run.ID, Command: run.Command, DryRun: run.DryRun, journal: store}
}

// Backup copies row into the journal before it is mutated.
func (s *Session) Backup(ctx context.Context, table, rowID string, row any) error {
	if _, err := s.journal.RecordBackup(ctx, s.RunID, table, rowID, row); err != nil {
		return services.Wrap(services.ErrDatabase, "journal", "backup", fmt.Sprintf("%s/%s", table, rowID), err)
	}
	return nil
}

func (s *Session) startStep(ctx context.Context, saga, subjectID, step string) (int64, error) {
	id, err := s.journal.StartStep(ctx, s.RunID, saga, subjectID, step)
	if err != nil {
		return 0, services.Wrap(services.ErrDatabase, "journal", "start step", saga+"/"+step, err)
	}
	return id, nil
}

func (s *Session) setStep(ctx context.Context, stepID int64, state journal.StepState, detail string) error {
	return s.journal.SetStepState(context.WithoutCancel(ctx), stepID, state, detail)
}

// Runner wraps operations with the run lock, the journal and notifications.
type Runner struct {
	Journal  *journal.Store
	Notifier notifications.Service
	Logger   *slog.Logger
	// LockPath is taken for applying runs; dry runs never lock.
	LockPath string
}

// Operation is the body of a run.
type Operation func(ctx context.Context, session *Session) (Summary, error)

// Do journals and executes op. The returned run carries the final status; its
// error is op's error.
func (r *Runner) Do(ctx context.Context, command string, dryRun bool, op Operation) (*journal.Run, error) {
	logger := logging.NewComponentLogger(r.Logger, "runner")

	if !dryRun && r.LockPath != "" {
		lock, err := runlock.Acquire(r.LockPath)
		if err != nil {
			if errors.Is(err, runlock.ErrLocked) {
				return nil, services.Wrap(services.ErrUnsafe, "runner", "lock", "", err)
			}
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("run lock release failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "run_lock_release_failed"),
					logging.String(logging.FieldErrorHint, "remove "+lock.Path()+" if no run is active"),
				)
			}
		}()
	}

	run, err := r.Journal.BeginRun(ctx, command, dryRun)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabase, "journal", "begin run", command, err)
	}
	ctx = services.WithCommand(services.WithRunID(ctx, run.ID), command)
	logger = logging.WithContext(ctx, logger)
	logger.Info("run started", logging.Bool("dry_run", dryRun))

	started := time.Now()
	summary, runErr := op(ctx, NewSession(r.Journal, run))
	elapsed := time.Since(started)
	status := services.FailureStatus(runErr)

	// The run outcome is recorded even when ctx was cancelled.
	finishCtx := context.WithoutCancel(ctx)
	if err := r.Journal.FinishRun(finishCtx, run.ID, status, summary, runErr); err != nil {
		logging.ErrorWithContext(logger, "run outcome not journaled", "journal_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "journal list shows the run as running"),
		)
	}
	run.Status = status
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}

	if runErr != nil {
		logger.Error("run finished with error",
			logging.String("status", string(status)),
			logging.Duration("elapsed", elapsed),
			logging.Error(runErr),
		)
	} else {
		logger.Info("run finished",
			logging.String("status", string(status)),
			logging.Duration("elapsed", elapsed),
		)
	}
	r.notify(finishCtx, logger, run, summary, runErr, elapsed)
	return run, runErr
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, run *journal.Run, summary Summary, runErr error, elapsed time.Duration) {
	if r.Notifier == nil {
		return
	}
	payload := notifications.Payload{
		"command":  run.Command,
		"runID":    run.ID,
		"dryRun":   run.DryRun,
		"duration": elapsed,
	}
	if summary != nil {
		payload["summary"] = summary.Counts()
	}
	event := notifications.EventRunCompleted
	if runErr != nil {
		event = notifications.EventRunFailed
		payload["error"] = runErr
	}
	if err := r.Notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("run notification failed", logging.Error(err))
	}
}
