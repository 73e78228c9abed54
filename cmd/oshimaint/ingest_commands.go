package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"oshimaint/internal/ingest"
	"oshimaint/internal/maintenance"
	"oshimaint/internal/services"
	"oshimaint/internal/tmdb"
	"oshimaint/internal/youtube"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Import episodes from external metadata sources",
	}
	cmd.AddCommand(newIngestYouTubeCommand(ctx))
	cmd.AddCommand(newIngestTMDBCommand(ctx))
	return cmd
}

func newIngestYouTubeCommand(ctx *commandContext) *cobra.Command {
	var celebrityRef, channelID, query string
	var videoIDs []string
	var maxPages int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "youtube",
		Short: "Upsert a channel's or search's videos as episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if err := cfg.RequireYouTube(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("channel") {
				channelID = cfg.YouTube.ChannelID
			}
			if !cmd.Flags().Changed("max-pages") {
				maxPages = cfg.YouTube.MaxPages
			}
			if len(videoIDs) == 0 && strings.TrimSpace(channelID) == "" && strings.TrimSpace(query) == "" {
				return services.Wrap(services.ErrValidation, "cli", "ingest youtube", "one of --channel, --query or --video is required", nil)
			}
			client, err := youtube.New(cfg.YouTube.APIKey, cfg.YouTube.BaseURL)
			if err != nil {
				return err
			}

			var report ingest.Report
			run, err := ctx.runOperation(cmd, "ingest youtube", !dryRun, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				celebrity, err := requireCelebrity(opCtx, m, celebrityRef)
				if err != nil {
					return nil, err
				}
				ingestor := &ingest.Ingestor{Store: m.Store, Pacer: m.Pacer, Logger: m.Logger, DryRun: session.DryRun}
				if len(videoIDs) > 0 {
					report, err = ingestor.YouTubeVideos(opCtx, client, celebrity, videoIDs)
					return report, err
				}
				report, err = ingestor.YouTube(opCtx, client, ingest.YouTubeOptions{
					CelebrityID: celebrity,
					ChannelID:   channelID,
					Query:       query,
					PageSize:    cfg.YouTube.PageSize,
					MaxPages:    maxPages,
				})
				return report, err
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderIngestReport(w, report)
			})
		},
	}
	cmd.Flags().StringVar(&celebrityRef, "celebrity", "", "Celebrity the episodes belong to (slug or ID)")
	cmd.Flags().StringVar(&channelID, "channel", "", "YouTube channel ID (defaults to youtube.channel_id)")
	cmd.Flags().StringVar(&query, "query", "", "Search query")
	cmd.Flags().StringSliceVar(&videoIDs, "video", nil, "Ingest these video IDs instead of searching (repeatable)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Search pages to fetch (defaults to youtube.max_pages)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	_ = cmd.MarkFlagRequired("celebrity")
	return cmd
}

func newIngestTMDBCommand(ctx *commandContext) *cobra.Command {
	var celebrityRef, query string
	var personID int64
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "tmdb",
		Short: "Upsert a person's TMDB cast credits as episodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if err := cfg.RequireTMDB(); err != nil {
				return err
			}
			client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language)
			if err != nil {
				return err
			}

			var report ingest.Report
			run, err := ctx.runOperation(cmd, "ingest tmdb", !dryRun, func(opCtx context.Context, m *maintenance.Maintainer, session *maintenance.Session) (maintenance.Summary, error) {
				celebrity, err := requireCelebrity(opCtx, m, celebrityRef)
				if err != nil {
					return nil, err
				}
				ingestor := &ingest.Ingestor{Store: m.Store, Pacer: m.Pacer, Logger: m.Logger, DryRun: session.DryRun}
				report, err = ingestor.TMDB(opCtx, client, ingest.TMDBOptions{
					CelebrityID: celebrity,
					PersonID:    personID,
					Query:       query,
				})
				return report, err
			})
			return ctx.finishRun(cmd, run, report, err, func(w io.Writer) {
				renderIngestReport(w, report)
			})
		},
	}
	cmd.Flags().StringVar(&celebrityRef, "celebrity", "", "Celebrity the credits belong to (slug or ID)")
	cmd.Flags().StringVar(&query, "query", "", "Person search query (defaults to the celebrity name)")
	cmd.Flags().Int64Var(&personID, "person-id", 0, "TMDB person ID; skips the search")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	_ = cmd.MarkFlagRequired("celebrity")
	return cmd
}

// requireCelebrity resolves a slug or ID to a celebrity ID.
func requireCelebrity(ctx context.Context, m *maintenance.Maintainer, ref string) (string, error) {
	celebrity, err := resolveCelebrity(ctx, m.Store, ref)
	if err != nil {
		return "", err
	}
	if celebrity == nil {
		return "", services.Wrap(services.ErrValidation, "cli", "resolve celebrity", "--celebrity is required", nil)
	}
	return celebrity.ID, nil
}

func renderIngestReport(w io.Writer, report ingest.Report) {
	if report.Celebrity != "" {
		fmt.Fprintf(w, "📺 %s: %d fetched, %d inserted, %d updated, %d unchanged\n",
			report.Celebrity, report.Fetched, report.Inserted, report.Updated, report.Unchanged)
	}
	for _, msg := range report.Errors {
		fmt.Fprintln(w, paint(w, ansiRed, "⚠️  "+msg))
	}
}
