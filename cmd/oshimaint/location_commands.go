package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"oshimaint/internal/dedupe"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

func newLocationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Clean up, merge and delete locations",
	}
	cmd.AddCommand(newLocationsCleanCommand(ctx))
	cmd.AddCommand(newLocationsDuplicatesCommand(ctx))
	cmd.AddCommand(newLocationsMergeCommand(ctx))
	cmd.AddCommand(newLocationsDeleteCommand(ctx))
	return cmd
}

func newLocationsCleanCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	var showAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete unreferenced locations with junk or placeholder names",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			opts, err := dedupe.CompileLocationOptions(
				cfg.Classifier.LocationDeletePatterns,
				cfg.Classifier.PlaceholderNames,
				cfg.Classifier.MinLocationNameRunes,
			)
			if err != nil {
				return services.Wrap(services.ErrConfiguration, "cli", "locations clean", "", err)
			}
			var report maintenance.LocationCleanReport
			run, err := ctx.runOperation(cmd, "locations clean", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				var opErr error
				report, opErr = m.CleanLocations(opCtx, session, opts)
				return report, opErr
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderLocationVerdicts(w, report, showAll)
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Delete the locations classified as delete")
	cmd.Flags().BoolVar(&showAll, "all", false, "Show keep verdicts too")
	return cmd
}

func renderLocationVerdicts(w io.Writer, report maintenance.LocationCleanReport, showAll bool) {
	rows := make([][]string, 0, len(report.Verdicts))
	for _, v := range report.Verdicts {
		if v.Verdict == dedupe.VerdictKeep && !showAll {
			continue
		}
		verdict := string(v.Verdict)
		switch v.Verdict {
		case dedupe.VerdictDelete:
			verdict = paint(w, ansiRed, verdict)
		case dedupe.VerdictReview:
			verdict = paint(w, ansiYellow, verdict)
		}
		rows = append(rows, []string{
			v.Location.ID,
			truncate(v.Location.Name, 30),
			verdict,
			strconv.Itoa(v.References),
			strings.Join(v.Reasons, "; "),
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "Nothing to clean")
	} else {
		fmt.Fprintln(w, renderTable(
			[]string{"ID", "Name", "Verdict", "Refs", "Reasons"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}
	for _, id := range report.Skipped {
		fmt.Fprintf(w, "kept %s: referenced since classification\n", id)
	}
	printFailures(w, report.Failures)
}

func newLocationsDuplicatesCommand(ctx *commandContext) *cobra.Command {
	var similarity float64

	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Report duplicate locations without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("similarity") {
				similarity = ctx.configValue().Classifier.SimilarityThreshold
			}
			if similarity < 0 || similarity > 1 {
				return services.Wrap(services.ErrValidation, "cli", "locations duplicates", "--similarity must be between 0 and 1", nil)
			}
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				report, err := ctx.maintainer(st).LocationDuplicates(cmd.Context(), similarity)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				renderDuplicateGroups(out, report.Groups)
				if len(report.Similar) > 0 {
					rows := make([][]string, 0, len(report.Similar))
					for _, pair := range report.Similar {
						rows = append(rows, []string{
							pair.A.Name,
							pair.B.Name,
							strconv.FormatFloat(pair.Score, 'f', 2, 64),
						})
					}
					fmt.Fprintln(out, "Similar names (review manually):")
					fmt.Fprintln(out, renderTable([]string{"A", "B", "Score"}, rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight}))
				}
				fmt.Fprintln(out, formatCounts(report.Counts()))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&similarity, "similarity", 0, "Similar-name threshold between 0 and 1; 0 disables the pass")
	return cmd
}

func renderDuplicateGroups(w io.Writer, groups []dedupe.LocationGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No duplicate groups")
		return
	}
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		ids := make([]string, 0, len(g.Duplicates))
		for _, d := range g.Duplicates {
			ids = append(ids, d.ID)
		}
		rows = append(rows, []string{g.Key, g.Survivor.ID, strings.Join(ids, ", ")})
	}
	fmt.Fprintln(w, renderTable([]string{"Group", "Survivor", "Duplicates"}, rows, nil))
}

func newLocationsMergeCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	var keys []string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Move episode links onto each group's survivor and delete the duplicates",
		RunE: func(cmd *cobra.Command, args []string) error {
			var report maintenance.MergeReport
			run, err := ctx.runOperation(cmd, "locations merge", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				var opErr error
				report, opErr = m.MergeLocations(opCtx, session, keys)
				return report, opErr
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderDuplicateGroups(w, report.Groups)
				for _, id := range report.Merged {
					fmt.Fprintf(w, "merged %s\n", id)
				}
				printFailures(w, report.Failures)
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Merge the duplicate groups")
	cmd.Flags().StringSliceVar(&keys, "group", nil, "Only merge these group keys (repeatable)")
	return cmd
}

func newLocationsDeleteCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id-or-slug>",
		Short: "Delete one location",
		Long: `A location still linked from episode_locations is refused unless --force
is given; with --force its links are removed as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report maintenance.LocationDeleteReport
			run, err := ctx.runOperation(cmd, "locations delete", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				loc, err := m.ResolveLocation(opCtx, args[0])
				if err != nil {
					return nil, err
				}
				report, err = m.DeleteLocation(opCtx, session, loc, maintenance.LocationDeleteOptions{Force: force})
				return report, err
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				if report.Location.ID == "" {
					return
				}
				fmt.Fprintf(w, "%s (%s): %d episode link(s)\n", report.Location.Name, report.Location.ID, len(report.Links))
				if report.Deleted {
					fmt.Fprintln(w, paint(w, ansiGreen, "deleted"))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Delete the location")
	cmd.Flags().BoolVar(&force, "force", false, "Also remove the location's episode links")
	return cmd
}
