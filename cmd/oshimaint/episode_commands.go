package main

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"oshimaint/internal/dedupe"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/services"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "Find and remove duplicate or low-value episodes",
	}
	cmd.AddCommand(newEpisodesDedupeCommand(ctx))
	cmd.AddCommand(newEpisodesPurgeCommand(ctx))
	return cmd
}

func newEpisodesDedupeCommand(ctx *commandContext) *cobra.Command {
	var celebrityRef string
	var apply bool
	var shortThreshold int

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Delete duplicate, short-form and short-title episodes that nothing references",
		Long: `Episodes are grouped by normalized title; the earliest of each group
survives. Short-form videos and very short titles are flagged too. Only
candidates with no episode_locations or episode_items rows are deleted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			classifier := dedupe.EpisodeOptions{
				ChannelNames:        cfg.Classifier.ChannelNames,
				ShortMarkers:        cfg.Classifier.ShortMarkers,
				ShortTitleThreshold: cfg.Classifier.ShortTitleThreshold,
			}
			if cmd.Flags().Changed("short-threshold") {
				classifier.ShortTitleThreshold = shortThreshold
			}
			var report maintenance.EpisodeReport
			run, err := ctx.runOperation(cmd, "episodes dedupe", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				celebrity, err := resolveCelebrity(opCtx, m.Store, celebrityRef)
				if err != nil {
					return nil, err
				}
				opts := maintenance.EpisodeCleanOptions{Classifier: classifier}
				if celebrity != nil {
					opts.CelebrityID = celebrity.ID
				}
				report, err = m.CleanEpisodes(opCtx, session, opts)
				return report, err
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderEpisodeReport(w, report)
			})
		},
	}
	cmd.Flags().StringVar(&celebrityRef, "celebrity", "", "Limit to one celebrity (slug or ID)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Delete the safe candidates")
	cmd.Flags().IntVar(&shortThreshold, "short-threshold", 0, "Override the short-title rune threshold")
	return cmd
}

func newEpisodesPurgeCommand(ctx *commandContext) *cobra.Command {
	var celebrityRef string
	var pattern string
	var apply bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete unreferenced episodes whose title matches a pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(pattern) == "" {
				return services.Wrap(services.ErrValidation, "cli", "episodes purge", "--pattern is required", nil)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return services.Wrap(services.ErrValidation, "cli", "episodes purge", "invalid --pattern", err)
			}
			var report maintenance.EpisodeReport
			run, err := ctx.runOperation(cmd, "episodes purge", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				celebrity, err := resolveCelebrity(opCtx, m.Store, celebrityRef)
				if err != nil {
					return nil, err
				}
				opts := maintenance.EpisodePurgeOptions{Pattern: re}
				if celebrity != nil {
					opts.CelebrityID = celebrity.ID
				}
				report, err = m.PurgeEpisodes(opCtx, session, opts)
				return report, err
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderEpisodeReport(w, report)
			})
		},
	}
	cmd.Flags().StringVar(&celebrityRef, "celebrity", "", "Limit to one celebrity (slug or ID)")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Regular expression matched against episode titles")
	cmd.Flags().BoolVar(&apply, "apply", false, "Delete the safe matches")
	return cmd
}

func renderEpisodeReport(w io.Writer, report maintenance.EpisodeReport) {
	if len(report.Candidates) == 0 {
		fmt.Fprintln(w, "No candidates")
		return
	}
	safe := make(map[string]bool, len(report.Safe))
	for _, id := range report.Safe {
		safe[id] = true
	}
	rows := make([][]string, 0, len(report.Candidates))
	for _, c := range report.Candidates {
		reasons := make([]string, 0, len(c.Reasons))
		for _, r := range c.Reasons {
			reasons = append(reasons, string(r))
		}
		verdict := "referenced"
		if safe[c.Episode.ID] {
			verdict = "safe"
		}
		rows = append(rows, []string{
			c.Episode.ID,
			truncate(c.Episode.Title, 40),
			c.Episode.Date,
			strings.Join(reasons, ","),
			c.DuplicateOf,
			verdict,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Title", "Date", "Reasons", "Duplicate Of", "Delete"},
		rows,
		nil,
	))
	printFailures(w, report.Failures)
}
