package maintenance

import (
	"context"
	"errors"
	"regexp"

	"oshimaint/internal/catalog"
	"oshimaint/internal/dedupe"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

// EpisodeCleanOptions scopes CleanEpisodes.
type EpisodeCleanOptions struct {
	// CelebrityID limits the scan to one celebrity; empty scans every episode.
	CelebrityID string
	Classifier  dedupe.EpisodeOptions
}

// EpisodePurgeOptions scopes PurgeEpisodes.
type EpisodePurgeOptions struct {
	CelebrityID string
	Pattern     *regexp.Regexp
}

// EpisodeReport describes an episode deletion run.
type EpisodeReport struct {
	Scanned    int                       `json:"scanned"`
	Groups     []dedupe.DuplicateGroup   `json:"groups,omitempty"`
	Candidates []dedupe.EpisodeCandidate `json:"candidates"`
	Safe       []string                  `json:"safe"`
	Unsafe     []string                  `json:"unsafe"`
	Deleted    []string                  `json:"deleted"`
	Failures   []Failure                 `json:"failures,omitempty"`
}

func (r EpisodeReport) Counts() map[string]int {
	return map[string]int{
		"scanned":    r.Scanned,
		"candidates": len(r.Candidates),
		"safe":       len(r.Safe),
		"unsafe":     len(r.Unsafe),
		"deleted":    len(r.Deleted),
		"failed":     len(r.Failures),
	}
}

// CleanEpisodes deletes duplicate and short-form episodes that no junction
// row references. Referenced candidates are reported as unsafe and kept.
func (m *Maintainer) CleanEpisodes(ctx context.Context, session *Session, opts EpisodeCleanOptions) (EpisodeReport, error) {
	episodes, err := m.Store.ListEpisodes(ctx, opts.CelebrityID)
	if err != nil {
		return EpisodeReport{}, services.Wrap(services.ErrDatabase, "maintenance", "list episodes", "", err)
	}
	classified := dedupe.ClassifyEpisodes(episodes, opts.Classifier)
	report := EpisodeReport{
		Scanned:    len(episodes),
		Groups:     classified.Groups,
		Candidates: classified.Candidates,
	}
	m.logger(ctx).Info("episodes classified",
		logging.Int("scanned", len(episodes)),
		logging.Int("duplicate_groups", len(classified.Groups)),
		logging.Int("candidates", len(classified.Candidates)),
	)
	return report, m.deleteEpisodes(ctx, session, &report)
}

// PurgeEpisodes deletes unreferenced episodes whose title matches a pattern,
// such as rows left behind by test ingestion.
func (m *Maintainer) PurgeEpisodes(ctx context.Context, session *Session, opts EpisodePurgeOptions) (EpisodeReport, error) {
	if opts.Pattern == nil {
		return EpisodeReport{}, services.Wrap(services.ErrValidation, "maintenance", "purge episodes", "title pattern is required", nil)
	}
	episodes, err := m.Store.ListEpisodes(ctx, opts.CelebrityID)
	if err != nil {
		return EpisodeReport{}, services.Wrap(services.ErrDatabase, "maintenance", "list episodes", "", err)
	}
	report := EpisodeReport{
		Scanned:    len(episodes),
		Candidates: dedupe.MatchEpisodes(episodes, opts.Pattern),
	}
	m.logger(ctx).Info("episodes matched",
		logging.String("pattern", opts.Pattern.String()),
		logging.Int("scanned", len(episodes)),
		logging.Int("candidates", len(report.Candidates)),
	)
	return report, m.deleteEpisodes(ctx, session, &report)
}

// deleteEpisodes applies the reference safety filter to the report's
// candidates and deletes the safe ones, backing each row up first. A failed
// delete is reported and does not stop the loop.
func (m *Maintainer) deleteEpisodes(ctx context.Context, session *Session, report *EpisodeReport) error {
	ids := dedupe.EpisodeCandidateIDs(report.Candidates)
	refs, err := store.EpisodeReferenceCounts(ctx, m.Store, ids)
	if err != nil {
		return services.Wrap(services.ErrDatabase, "maintenance", "count episode references", "", err)
	}
	split := dedupe.SafeDelete(ids, refs)
	report.Safe, report.Unsafe = split.Safe, split.Unsafe
	report.Deleted = []string{}

	logger := m.logger(ctx)
	for _, id := range split.Unsafe {
		logger.Info("episode kept: referenced by junction rows",
			logging.String(logging.FieldRowID, id),
			logging.Int("references", refs[id]),
		)
	}
	if session.DryRun || len(split.Safe) == 0 {
		return nil
	}

	rows := make(map[string]catalog.Episode, len(report.Candidates))
	for _, c := range report.Candidates {
		rows[c.Episode.ID] = c.Episode
	}
	for _, id := range split.Safe {
		if err := m.wait(ctx); err != nil {
			return err
		}
		if err := session.Backup(ctx, catalog.TableEpisodes, id, rows[id]); err != nil {
			return err
		}
		if err := m.Store.DeleteEpisode(ctx, id); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			report.Failures = append(report.Failures, m.rowFailed(ctx, catalog.TableEpisodes, id, "episode delete failed", "episode_delete_failed", err))
			continue
		}
		report.Deleted = append(report.Deleted, id)
		logger.Info("episode deleted", logging.String(logging.FieldRowID, id))
	}
	return nil
}
