package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"oshimaint/internal/catalog"
	"oshimaint/internal/logging"
	"oshimaint/internal/pacing"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

// Outcome is what happened to one episode.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Report summarizes an ingestion run.
type Report struct {
	Celebrity string   `json:"celebrity"`
	Fetched   int      `json:"fetched"`
	Inserted  int      `json:"inserted"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Counts flattens the report for run summaries and notifications.
func (r Report) Counts() map[string]int {
	return map[string]int{
		"fetched":   r.Fetched,
		"inserted":  r.Inserted,
		"updated":   r.Updated,
		"unchanged": r.Unchanged,
		"failed":    r.Failed,
	}
}

func (r *Report) record(outcome Outcome) {
	switch outcome {
	case OutcomeInserted:
		r.Inserted++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeFailed:
		r.Failed++
	}
}

func (r *Report) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err.Error())
}

// Ingestor writes fetched episodes to a store.
type Ingestor struct {
	Store  store.Store
	Pacer  *pacing.Pacer
	Logger *slog.Logger
	// DryRun reports what would change without writing.
	DryRun bool
}

func (i *Ingestor) logger(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, logging.NewComponentLogger(i.Logger, "ingest"))
}

// celebrity loads the target celebrity. A missing row is fatal for the run.
func (i *Ingestor) celebrity(ctx context.Context, id string) (*catalog.Celebrity, error) {
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "load celebrity", "celebrity id is required", nil)
	}
	celebrity, err := i.Store.GetCelebrity(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "ingest", "load celebrity", fmt.Sprintf("celebrity %s does not exist", id), err)
		}
		return nil, err
	}
	return celebrity, nil
}

// upsert inserts ep or refreshes the statistics of the row sharing its video URL.
func (i *Ingestor) upsert(ctx context.Context, ep catalog.Episode) (Outcome, error) {
	existing, err := i.Store.FindEpisodeByVideoURL(ctx, ep.VideoURL)
	switch {
	case err == nil:
		stats := ep.Stats()
		if stats == existing.Stats() {
			return OutcomeUnchanged, nil
		}
		if !i.DryRun {
			if err := i.Store.UpdateEpisodeStats(ctx, existing.ID, stats); err != nil {
				return OutcomeFailed, err
			}
		}
		return OutcomeUpdated, nil
	case errors.Is(err, services.ErrNotFound):
		ep.ID = uuid.NewString()
		if !i.DryRun {
			if _, err := i.Store.InsertEpisode(ctx, ep); err != nil {
				return OutcomeFailed, err
			}
		}
		return OutcomeInserted, nil
	default:
		return OutcomeFailed, err
	}
}

func (i *Ingestor) apply(ctx context.Context, report *Report, ep catalog.Episode) {
	outcome, err := i.upsert(ctx, ep)
	if err != nil {
		logging.WarnWithContext(i.logger(ctx), "episode upsert failed", "episode_upsert_failed",
			logging.String("video_url", ep.VideoURL),
			logging.Error(err),
		)
		report.fail(fmt.Errorf("%s: %w", ep.VideoURL, err))
		return
	}
	report.record(outcome)
	i.logger(ctx).Debug("episode processed",
		logging.String("video_url", ep.VideoURL),
		logging.String("outcome", string(outcome)),
	)
}

func (i *Ingestor) wait(ctx context.Context) error {
	if i.Pacer == nil {
		return ctx.Err()
	}
	return i.Pacer.Wait(ctx)
}
