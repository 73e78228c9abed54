package maintenance

import (
	"context"
	"errors"
	"fmt"

	"oshimaint/internal/journal"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
)

// ErrStranded reports a saga whose compensation failed; the remote data is
// partially changed and `journal pending` lists the open steps.
var ErrStranded = errors.New("saga stranded")

type sagaStep struct {
	name string
	do   func(ctx context.Context) error
	// undo reverts a completed step; nil when there is nothing to revert.
	undo func(ctx context.Context) error
}

type completedStep struct {
	id   int64
	step sagaStep
}

// runSaga executes steps in order, journaling each one. When a step fails
// the completed steps are undone in reverse order.
func (m *Maintainer) runSaga(ctx context.Context, session *Session, saga, subjectID string, steps []sagaStep) error {
	var done []completedStep
	for _, step := range steps {
		id, err := session.startStep(ctx, saga, subjectID, step.name)
		if err != nil {
			return m.compensate(ctx, session, saga, subjectID, done, 0, err)
		}
		if err := step.do(ctx); err != nil {
			m.setStep(ctx, session, id, journal.StepFailed, err.Error())
			return m.compensate(ctx, session, saga, subjectID, done, id, fmt.Errorf("%s %s: %w", saga, step.name, err))
		}
		m.setStep(ctx, session, id, journal.StepDone, "")
		done = append(done, completedStep{id: id, step: step})
	}
	return nil
}

func (m *Maintainer) compensate(ctx context.Context, session *Session, saga, subjectID string, done []completedStep, failedID int64, cause error) error {
	// Compensation runs to completion even after cancellation.
	ctx = context.WithoutCancel(ctx)
	logger := m.logger(ctx)

	var stranded []error
	for i := len(done) - 1; i >= 0; i-- {
		entry := done[i]
		if entry.step.undo == nil {
			m.setStep(ctx, session, entry.id, journal.StepCompensated, "nothing to undo")
			continue
		}
		if err := entry.step.undo(ctx); err != nil {
			m.setStep(ctx, session, entry.id, journal.StepStranded, err.Error())
			logging.ErrorWithContext(logger, "saga compensation failed", "saga_stranded",
				logging.String("saga", saga),
				logging.String("step", entry.step.name),
				logging.String(logging.FieldRowID, subjectID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run oshimaint journal restore "+session.RunID),
			)
			stranded = append(stranded, fmt.Errorf("undo %s: %w", entry.step.name, err))
			continue
		}
		m.setStep(ctx, session, entry.id, journal.StepCompensated, "")
	}

	if len(stranded) > 0 {
		return errors.Join(cause, services.Wrap(ErrStranded, "maintenance", saga, subjectID, errors.Join(stranded...)))
	}
	if failedID != 0 {
		m.setStep(ctx, session, failedID, journal.StepCompensated, cause.Error())
	}
	logger.Info("saga rolled back",
		logging.String("saga", saga),
		logging.String(logging.FieldRowID, subjectID),
		logging.Error(cause),
	)
	return cause
}

func (m *Maintainer) setStep(ctx context.Context, session *Session, id int64, state journal.StepState, detail string) {
	if err := session.setStep(ctx, id, state, detail); err != nil {
		logging.WarnWithContext(m.logger(ctx), "saga step state not journaled", "saga_step_journal_failed",
			logging.Any("step_id", id),
			logging.String("state", string(state)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "journal pending may show a stale step"),
		)
	}
}
