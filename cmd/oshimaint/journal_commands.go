package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"oshimaint/internal/journal"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/services"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded runs and restore their backups",
	}
	cmd.AddCommand(newJournalListCommand(ctx))
	cmd.AddCommand(newJournalShowCommand(ctx))
	cmd.AddCommand(newJournalExportCommand(ctx))
	cmd.AddCommand(newJournalRestoreCommand(ctx))
	cmd.AddCommand(newJournalPendingCommand(ctx))
	return cmd
}

func newJournalListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(js *journal.Store) error {
				runs, err := js.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if runs == nil {
						runs = []*journal.Run{}
					}
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortRunID(run.ID),
						run.Command,
						yesNo(run.DryRun),
						string(run.Status),
						run.StartedAt.Local().Format(time.DateTime),
						runDuration(run),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Run", "Command", "Dry Run", "Status", "Started", "Duration"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				version, err := js.SchemaVersion(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Journal: %s (schema v%d)\n", js.Path(), version)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

func runDuration(run *journal.Run) string {
	if run.FinishedAt == nil {
		return ""
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

func newJournalShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run with its backups and saga steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(js *journal.Store) error {
				export, err := exportRun(cmd.Context(), js, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, export)
				}
				renderExport(cmd.OutOrStdout(), export)
				return nil
			})
		},
	}
}

func newJournalExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <run-id>",
		Short: "Print a run, its backups and saga steps as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(js *journal.Store) error {
				export, err := exportRun(cmd.Context(), js, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, export)
			})
		},
	}
}

func exportRun(ctx context.Context, js *journal.Store, ref string) (*journal.Export, error) {
	export, err := js.Export(ctx, ref)
	if err != nil {
		if errors.Is(err, journal.ErrRunNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "journal", "export", ref, err)
		}
		return nil, err
	}
	return export, nil
}

func renderExport(w io.Writer, export *journal.Export) {
	run := export.Run
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Command:  %s\n", run.Command)
	fmt.Fprintf(w, "Dry run:  %s\n", yesNo(run.DryRun))
	fmt.Fprintf(w, "Status:   %s\n", run.Status)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if d := runDuration(&run); d != "" {
		fmt.Fprintf(w, "Duration: %s\n", d)
	}
	if len(run.Summary) > 0 {
		fmt.Fprintf(w, "Summary:  %s\n", string(run.Summary))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:    %s\n", paint(w, ansiRed, run.ErrorMessage))
	}

	if len(export.Backups) > 0 {
		rows := make([][]string, 0, len(export.Backups))
		for _, b := range export.Backups {
			restored := ""
			if b.RestoredAt != nil {
				restored = b.RestoredAt.Local().Format(time.DateTime)
			}
			rows = append(rows, []string{strconv.FormatInt(b.ID, 10), b.Table, b.RowID, restored})
		}
		fmt.Fprintln(w, renderTable([]string{"Backup", "Table", "Row", "Restored"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
	}
	if len(export.Steps) > 0 {
		renderSteps(w, export.Steps)
	}
}

func renderSteps(w io.Writer, steps []journal.Step) {
	rows := make([][]string, 0, len(steps))
	for _, s := range steps {
		state := string(s.State)
		switch s.State {
		case journal.StepStranded, journal.StepFailed:
			state = paint(w, ansiRed, state)
		case journal.StepStarted:
			state = paint(w, ansiYellow, state)
		}
		rows = append(rows, []string{shortRunID(s.RunID), s.Saga, s.SubjectID, s.Name, state, s.Detail})
	}
	fmt.Fprintln(w, renderTable([]string{"Run", "Saga", "Subject", "Step", "State", "Detail"}, rows, nil))
}

func newJournalRestoreCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "restore <run-id>",
		Short: "Re-insert the rows a run backed up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var report maintenance.RestoreReport
			run, err := ctx.runOperation(cmd, "journal restore", apply, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				var opErr error
				report, opErr = m.Restore(opCtx, session, args[0])
				return report, opErr
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				if report.Run != "" {
					fmt.Fprintf(w, "♻️  run %s: %d pending backup(s), %d restored\n", shortRunID(report.Run), report.Pending, len(report.Restored))
				}
				printFailures(w, report.Failures)
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Write the backed-up rows back")
	return cmd
}

func newJournalPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List saga steps left started, failed or stranded",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(js *journal.Store) error {
				steps, err := js.OpenSteps(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if steps == nil {
						steps = []journal.Step{}
					}
					return writeJSON(cmd, steps)
				}
				if len(steps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending steps")
					return nil
				}
				renderSteps(cmd.OutOrStdout(), steps)
				fmt.Fprintln(cmd.OutOrStdout(), "Use `oshimaint journal restore <run-id> --apply` to put the backed-up rows back.")
				return nil
			})
		},
	}
}
