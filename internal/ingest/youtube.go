package ingest

import (
	"context"
	"fmt"

	"oshimaint/internal/catalog"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
	"oshimaint/internal/youtube"
)

// YouTubeSource is the subset of the YouTube client ingestion uses.
type YouTubeSource interface {
	Search(ctx context.Context, opts youtube.SearchOptions) (*youtube.SearchResponse, error)
	Videos(ctx context.Context, ids []string) (*youtube.VideoListResponse, error)
}

// YouTubeOptions selects the videos to ingest.
type YouTubeOptions struct {
	CelebrityID string
	ChannelID   string
	Query       string
	PageSize    int
	// MaxPages bounds search.list pagination; zero means one page.
	MaxPages int
}

// YouTube pages through search results and upserts every video found.
func (i *Ingestor) YouTube(ctx context.Context, src YouTubeSource, opts YouTubeOptions) (Report, error) {
	celebrity, err := i.celebrity(ctx, opts.CelebrityID)
	if err != nil {
		return Report{}, err
	}
	report := Report{Celebrity: celebrity.Name}
	logger := i.logger(ctx)
	maxPages := max(opts.MaxPages, 1)

	pageToken := ""
	for page := 0; page < maxPages; page++ {
		if err := i.wait(ctx); err != nil {
			return report, err
		}
		results, err := src.Search(ctx, youtube.SearchOptions{
			ChannelID:  opts.ChannelID,
			Query:      opts.Query,
			PageToken:  pageToken,
			MaxResults: opts.PageSize,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			// Without this page there is no token for the next one.
			wrapped := services.Wrap(services.ErrExternalService, "ingest", "youtube search", fmt.Sprintf("page %d", page+1), err)
			logging.WarnWithContext(logger, "youtube search failed", "youtube_search_failed",
				logging.Int("page", page+1),
				logging.Error(err),
				logging.String(logging.FieldImpact, "remaining pages skipped"),
			)
			report.fail(wrapped)
			break
		}
		if err := i.ingestVideos(ctx, src, celebrity, results.VideoIDs(), &report); err != nil {
			return report, err
		}
		logger.Info("youtube page ingested",
			logging.Int("page", page+1),
			logging.Int("videos", len(results.Items)),
		)
		if results.NextPageToken == "" {
			break
		}
		pageToken = results.NextPageToken
	}
	return report, ctx.Err()
}

// YouTubeVideos upserts explicitly listed video IDs.
func (i *Ingestor) YouTubeVideos(ctx context.Context, src YouTubeSource, celebrityID string, ids []string) (Report, error) {
	celebrity, err := i.celebrity(ctx, celebrityID)
	if err != nil {
		return Report{}, err
	}
	report := Report{Celebrity: celebrity.Name}
	for _, chunk := range store.Chunk(ids, youtube.MaxVideoIDs) {
		if err := i.wait(ctx); err != nil {
			return report, err
		}
		if err := i.ingestVideos(ctx, src, celebrity, chunk, &report); err != nil {
			return report, err
		}
	}
	return report, ctx.Err()
}

// ingestVideos fetches and upserts one batch of videos. A failed
// videos.list call is recorded in report; only cancellation is returned.
func (i *Ingestor) ingestVideos(ctx context.Context, src YouTubeSource, celebrity *catalog.Celebrity, ids []string, report *Report) error {
	if len(ids) == 0 {
		return nil
	}
	videos, err := src.Videos(ctx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logging.WarnWithContext(i.logger(ctx), "youtube videos.list failed", "youtube_videos_failed",
			logging.Int("videos", len(ids)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "videos on this page skipped"),
		)
		report.fail(services.Wrap(services.ErrExternalService, "ingest", "youtube videos", "", err))
		return nil
	}
	for _, video := range videos.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Fetched++
		i.apply(ctx, report, EpisodeFromVideo(video, celebrity.ID))
	}
	return ctx.Err()
}

// EpisodeFromVideo maps a videos.list item to an episode row.
func EpisodeFromVideo(video youtube.Video, celebrityID string) catalog.Episode {
	return catalog.Episode{
		Title:        video.Snippet.Title,
		Description:  video.Snippet.Description,
		Date:         video.Snippet.PublishedAt,
		VideoURL:     video.WatchURL(),
		ThumbnailURL: video.Snippet.BestThumbnail(),
		ViewCount:    video.Statistics.ViewCount,
		LikeCount:    video.Statistics.LikeCount,
		CommentCount: video.Statistics.CommentCount,
		Duration:     youtube.ParseDuration(video.ContentDetails.Duration),
		CelebrityID:  celebrityID,
	}
}
