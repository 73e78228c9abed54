package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"oshimaint/internal/maintenance"
	"oshimaint/internal/seed"
	"oshimaint/internal/services"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Create celebrities, locations and episode links from a YAML seed file",
		Long: `Rows are matched by slug; existing rows are left as they are. Episode
links are resolved through the episodes' video URLs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := seed.Load(args[0])
			if err != nil {
				return services.Wrap(services.ErrValidation, "cli", "seed", args[0], err)
			}
			var report seed.Report
			run, err := ctx.runOperation(cmd, "seed", !dryRun, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				seeder := &seed.Seeder{Store: m.Store, Logger: m.Logger, DryRun: session.DryRun}
				var opErr error
				report, opErr = seeder.Apply(opCtx, file)
				return report, opErr
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				fmt.Fprintf(w, "🌱 celebrities: %d new, %d existing\n", report.CelebritiesCreated, report.CelebritiesExisting)
				fmt.Fprintf(w, "🌱 locations: %d new, %d existing, %d links\n", report.LocationsCreated, report.LocationsExisting, report.LinksCreated)
				for _, url := range report.MissingEpisodes {
					fmt.Fprintln(w, paint(w, ansiYellow, "no episode for "+url))
				}
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be created without writing")
	return cmd
}
