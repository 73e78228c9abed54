package ingest

import (
	"context"
	"fmt"
	"strings"

	"oshimaint/internal/catalog"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
	"oshimaint/internal/tmdb"
)

// TMDBSource is the subset of the TMDB client ingestion uses.
type TMDBSource interface {
	SearchPerson(ctx context.Context, query string) (*tmdb.PersonResponse, error)
	CombinedCredits(ctx context.Context, personID int64) (*tmdb.CombinedCredits, error)
}

// TMDBOptions selects the person whose credits are ingested.
type TMDBOptions struct {
	CelebrityID string
	// PersonID skips the name search when set.
	PersonID int64
	// Query overrides the celebrity name used for the search.
	Query string
}

// TMDB upserts the cast credits of a person as episodes.
func (i *Ingestor) TMDB(ctx context.Context, src TMDBSource, opts TMDBOptions) (Report, error) {
	celebrity, err := i.celebrity(ctx, opts.CelebrityID)
	if err != nil {
		return Report{}, err
	}
	report := Report{Celebrity: celebrity.Name}
	logger := i.logger(ctx)

	personID := opts.PersonID
	if personID == 0 {
		query := strings.TrimSpace(opts.Query)
		if query == "" {
			query = celebrity.Name
		}
		if err := i.wait(ctx); err != nil {
			return report, err
		}
		people, err := src.SearchPerson(ctx, query)
		if err != nil {
			return report, services.Wrap(services.ErrExternalService, "ingest", "tmdb person search", query, err)
		}
		if len(people.Results) == 0 {
			return report, services.Wrap(services.ErrNotFound, "ingest", "tmdb person search", fmt.Sprintf("no TMDB person matches %q", query), nil)
		}
		personID = people.Results[0].ID
		logger.Info("tmdb person resolved",
			logging.String("query", query),
			logging.String("person", people.Results[0].Name),
			logging.Any("person_id", personID),
		)
	}

	if err := i.wait(ctx); err != nil {
		return report, err
	}
	credits, err := src.CombinedCredits(ctx, personID)
	if err != nil {
		return report, services.Wrap(services.ErrExternalService, "ingest", "tmdb credits", fmt.Sprintf("person %d", personID), err)
	}

	seen := make(map[string]bool, len(credits.Cast))
	for _, credit := range credits.Cast {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		ep := EpisodeFromCredit(credit, celebrity.ID)
		if ep.Title == "" || seen[ep.VideoURL] {
			continue
		}
		seen[ep.VideoURL] = true
		report.Fetched++
		i.apply(ctx, &report, ep)
	}
	return report, ctx.Err()
}

// EpisodeFromCredit maps a TMDB cast credit to an episode row keyed by its
// TMDB page URL.
func EpisodeFromCredit(credit tmdb.Credit, celebrityID string) catalog.Episode {
	ep := catalog.Episode{
		Title:       credit.DisplayTitle(),
		Description: credit.Overview,
		Date:        credit.Date(),
		VideoURL:    credit.PageURL(),
		CelebrityID: celebrityID,
	}
	if credit.PosterPath != "" {
		ep.ThumbnailURL = tmdb.ImageBaseURL + credit.PosterPath
	}
	return ep
}
