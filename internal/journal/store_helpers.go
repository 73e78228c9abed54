package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const (
	runColumns    = "id, command, dry_run, status, started_at, finished_at, summary_json, error_message"
	backupColumns = "id, run_id, table_name, row_id, payload_json, created_at, restored_at"
	stepColumns   = "id, run_id, saga, subject_id, step, state, detail, updated_at"
)

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		dryRun      int64
		status      string
		startedRaw  string
		finishedRaw sql.NullString
		summary     sql.NullString
		errMessage  sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Command, &dryRun, &status, &startedRaw, &finishedRaw, &summary, &errMessage); err != nil {
		return nil, err
	}
	run.DryRun = dryRun != 0
	run.Status = RunStatus(status)
	run.ErrorMessage = errMessage.String
	if summary.Valid && summary.String != "" {
		run.Summary = json.RawMessage(summary.String)
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

func scanBackup(row scanner) (Backup, error) {
	var (
		backup      Backup
		payload     string
		createdRaw  string
		restoredRaw sql.NullString
	)
	if err := row.Scan(&backup.ID, &backup.RunID, &backup.Table, &backup.RowID, &payload, &createdRaw, &restoredRaw); err != nil {
		return Backup{}, err
	}
	backup.Payload = json.RawMessage(payload)
	if created, err := parseTimeString(createdRaw); err == nil {
		backup.CreatedAt = created
	}
	if restoredRaw.Valid {
		if restored, err := parseTimeString(restoredRaw.String); err == nil {
			backup.RestoredAt = &restored
		}
	}
	return backup, nil
}

func scanStep(row scanner) (Step, error) {
	var (
		step       Step
		state      string
		detail     sql.NullString
		updatedRaw string
	)
	if err := row.Scan(&step.ID, &step.RunID, &step.Saga, &step.SubjectID, &step.Name, &state, &detail, &updatedRaw); err != nil {
		return Step{}, err
	}
	step.State = StepState(state)
	step.Detail = detail.String
	if updated, err := parseTimeString(updatedRaw); err == nil {
		step.UpdatedAt = updated
	}
	return step, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
