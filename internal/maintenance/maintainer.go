package maintenance

import (
	"context"
	"log/slog"

	"oshimaint/internal/catalog"
	"oshimaint/internal/logging"
	"oshimaint/internal/pacing"
	"oshimaint/internal/store"
)

// Maintainer executes operations against one store.
type Maintainer struct {
	Store  store.Store
	Pacer  *pacing.Pacer
	Logger *slog.Logger
}

// Failure is a row an operation could not process. The run continues past it.
type Failure struct {
	Table string `json:"table"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

func (m *Maintainer) logger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, logging.NewComponentLogger(m.Logger, "maintenance"))
}

func (m *Maintainer) wait(ctx context.Context) error {
	if m.Pacer == nil {
		return ctx.Err()
	}
	return m.Pacer.Wait(ctx)
}

// rowFailed logs a per-row error and returns its report entry.
func (m *Maintainer) rowFailed(ctx context.Context, table, id, msg, eventType string, err error) Failure {
	logging.WarnWithContext(m.logger(ctx), msg, eventType,
		logging.String(logging.FieldTable, table),
		logging.String(logging.FieldRowID, id),
		logging.Error(err),
	)
	return Failure{Table: table, ID: id, Error: err.Error()}
}

// backupLinks journals each junction row so a restore can re-link it.
func backupLinks(ctx context.Context, session *Session, links []catalog.EpisodeLocation) error {
	for _, link := range links {
		if err := session.Backup(ctx, catalog.TableEpisodeLocations, link.Key(), link); err != nil {
			return err
		}
	}
	return nil
}
