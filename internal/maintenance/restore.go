package maintenance

import (
	"context"
	"errors"

	"oshimaint/internal/journal"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
)

// RestoreReport describes a journal restore.
type RestoreReport struct {
	Run      string    `json:"run"`
	Pending  int       `json:"pending"`
	Restored []int64   `json:"restored"`
	Failures []Failure `json:"failures,omitempty"`
}

func (r RestoreReport) Counts() map[string]int {
	return map[string]int{
		"pending":  r.Pending,
		"restored": len(r.Restored),
		"failed":   len(r.Failures),
	}
}

// Restore re-applies the unrestored backups of a run in capture order. When
// one row was backed up more than once, the earliest copy wins.
func (m *Maintainer) Restore(ctx context.Context, session *Session, runRef string) (RestoreReport, error) {
	target, err := session.journal.GetRun(ctx, runRef)
	if err != nil {
		if errors.Is(err, journal.ErrRunNotFound) {
			return RestoreReport{}, services.Wrap(services.ErrNotFound, "maintenance", "restore", runRef, err)
		}
		return RestoreReport{}, services.Wrap(services.ErrValidation, "maintenance", "restore", runRef, err)
	}
	if target.ID == session.RunID {
		return RestoreReport{}, services.Wrap(services.ErrValidation, "maintenance", "restore", "a run cannot restore itself", nil)
	}
	backups, err := session.journal.Backups(ctx, target.ID, true)
	if err != nil {
		return RestoreReport{}, services.Wrap(services.ErrDatabase, "journal", "list backups", target.ID, err)
	}
	report := RestoreReport{Run: target.ID, Pending: len(backups), Restored: []int64{}}
	if session.DryRun {
		return report, nil
	}

	logger := m.logger(ctx)
	restored := make(map[string]bool, len(backups))
	failed := make(map[string]bool)
	for _, backup := range backups {
		key := backup.Table + "/" + backup.RowID
		if failed[key] {
			// A later copy would overwrite the row with a newer state.
			continue
		}
		if !restored[key] {
			if err := m.wait(ctx); err != nil {
				return report, err
			}
			if err := m.Store.RestoreRow(ctx, backup.Table, backup.Payload); err != nil {
				if errors.Is(err, context.Canceled) {
					return report, err
				}
				failed[key] = true
				report.Failures = append(report.Failures, m.rowFailed(ctx, backup.Table, backup.RowID, "row restore failed", "restore_failed", err))
				continue
			}
			restored[key] = true
		}
		if err := session.journal.MarkRestored(ctx, backup.ID); err != nil {
			return report, services.Wrap(services.ErrDatabase, "journal", "mark restored", backup.RowID, err)
		}
		report.Restored = append(report.Restored, backup.ID)
		logger.Info("row restored",
			logging.String(logging.FieldTable, backup.Table),
			logging.String(logging.FieldRowID, backup.RowID),
		)
	}
	return report, nil
}
