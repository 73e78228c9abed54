// Package seed loads celebrities and locations from YAML files and upserts
// them by slug, linking locations to episodes that already exist.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"oshimaint/internal/catalog"
	"oshimaint/internal/logging"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
	"oshimaint/internal/textutil"
)

// File is the YAML document layout.
type File struct {
	Celebrities []Celebrity `yaml:"celebrities"`
	Locations   []Location  `yaml:"locations"`
}

// Celebrity is a seeded celebrities row.
type Celebrity struct {
	Name     string `yaml:"name"`
	Slug     string `yaml:"slug"`
	Type     string `yaml:"type"`
	Bio      string `yaml:"bio"`
	ImageURL string `yaml:"image_url"`
}

// Location is a seeded locations row. Episodes lists video URLs to link.
type Location struct {
	Name        string   `yaml:"name"`
	Slug        string   `yaml:"slug"`
	Address     string   `yaml:"address"`
	Description string   `yaml:"description"`
	TabelogURL  string   `yaml:"tabelog_url"`
	ImageURL    string   `yaml:"image_url"`
	Tags        []string `yaml:"tags"`
	Episodes    []string `yaml:"episodes"`
}

// Parse decodes and validates a seed document. Unknown keys are rejected so
// typos do not silently drop data.
func Parse(r io.Reader) (*File, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var file File
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &file, nil
		}
		return nil, services.Wrap(services.ErrValidation, "seed", "parse", "decode yaml", err)
	}
	if err := file.normalize(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Load reads a seed file from disk.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func (f *File) normalize() error {
	seen := make(map[string]bool)
	for i := range f.Celebrities {
		c := &f.Celebrities[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return invalid("celebrities[%d]: name is required", i)
		}
		if c.Slug = strings.TrimSpace(c.Slug); c.Slug == "" {
			c.Slug = textutil.Slugify(c.Name)
		}
		switch catalog.CelebrityType(c.Type) {
		case "", catalog.CelebrityIndividual, catalog.CelebrityGroup:
		default:
			return invalid("celebrities[%d]: type must be individual or group", i)
		}
		if seen["c:"+c.Slug] {
			return invalid("celebrities[%d]: duplicate slug %q", i, c.Slug)
		}
		seen["c:"+c.Slug] = true
	}
	for i := range f.Locations {
		l := &f.Locations[i]
		l.Name = strings.TrimSpace(l.Name)
		if l.Name == "" {
			return invalid("locations[%d]: name is required", i)
		}
		if l.Slug = strings.TrimSpace(l.Slug); l.Slug == "" {
			l.Slug = textutil.Slugify(l.Name)
		}
		if seen["l:"+l.Slug] {
			return invalid("locations[%d]: duplicate slug %q", i, l.Slug)
		}
		seen["l:"+l.Slug] = true
	}
	return nil
}

func invalid(format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "seed", "validate", fmt.Sprintf(format, args...), nil)
}

// Report counts what Apply did or, in dry-run mode, would do.
type Report struct {
	CelebritiesCreated  int      `json:"celebrities_created"`
	CelebritiesExisting int      `json:"celebrities_existing"`
	LocationsCreated    int      `json:"locations_created"`
	LocationsExisting   int      `json:"locations_existing"`
	LinksCreated        int      `json:"links_created"`
	MissingEpisodes     []string `json:"missing_episodes,omitempty"`
}

// Counts flattens the report for run summaries.
func (r Report) Counts() map[string]int {
	return map[string]int{
		"celebrities_created":  r.CelebritiesCreated,
		"celebrities_existing": r.CelebritiesExisting,
		"locations_created":    r.LocationsCreated,
		"locations_existing":   r.LocationsExisting,
		"links_created":        r.LinksCreated,
		"missing_episodes":     len(r.MissingEpisodes),
	}
}

// Seeder applies seed files to a store.
type Seeder struct {
	Store  store.Store
	Logger *slog.Logger
	DryRun bool
}

// Apply upserts every row of file. Existing rows are left as they are.
func (s *Seeder) Apply(ctx context.Context, file *File) (Report, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	var report Report

	for _, c := range file.Celebrities {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := s.Store.FindCelebrityBySlug(ctx, c.Slug)
		switch {
		case err == nil:
			report.CelebritiesExisting++
			continue
		case !errors.Is(err, services.ErrNotFound):
			return report, err
		}
		report.CelebritiesCreated++
		if s.DryRun {
			continue
		}
		row := catalog.Celebrity{
			ID:       uuid.NewString(),
			Name:     c.Name,
			Slug:     c.Slug,
			Type:     catalog.CelebrityType(c.Type),
			Bio:      c.Bio,
			ImageURL: c.ImageURL,
		}
		if _, err := s.Store.InsertCelebrity(ctx, row); err != nil {
			return report, err
		}
		logger.Info("seeded celebrity", logging.String("slug", c.Slug))
	}

	for _, l := range file.Locations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		locationID, err := s.upsertLocation(ctx, l, &report)
		if err != nil {
			return report, err
		}
		links, err := s.resolveLinks(ctx, locationID, l.Episodes, &report, logger)
		if err != nil {
			return report, err
		}
		if len(links) == 0 {
			continue
		}
		report.LinksCreated += len(links)
		if s.DryRun {
			continue
		}
		if err := s.Store.InsertEpisodeLocations(ctx, links); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Seeder) upsertLocation(ctx context.Context, l Location, report *Report) (string, error) {
	existing, err := s.Store.FindLocationBySlug(ctx, l.Slug)
	if err == nil {
		report.LocationsExisting++
		return existing.ID, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return "", err
	}
	report.LocationsCreated++
	row := catalog.Location{
		ID:          uuid.NewString(),
		Name:        l.Name,
		Slug:        l.Slug,
		Address:     l.Address,
		Description: l.Description,
		TabelogURL:  l.TabelogURL,
		ImageURL:    l.ImageURL,
		Tags:        l.Tags,
	}
	if s.DryRun {
		return row.ID, nil
	}
	inserted, err := s.Store.InsertLocation(ctx, row)
	if err != nil {
		return "", err
	}
	return inserted.ID, nil
}

// resolveLinks returns the links not yet present for locationID. Unknown
// video URLs are reported rather than failing the seed.
func (s *Seeder) resolveLinks(ctx context.Context, locationID string, videoURLs []string, report *Report, logger *slog.Logger) ([]catalog.EpisodeLocation, error) {
	if len(videoURLs) == 0 {
		return nil, nil
	}
	existing, err := s.Store.ListEpisodeLocationsByLocations(ctx, []string{locationID})
	if err != nil {
		return nil, err
	}
	linked := make(map[string]bool, len(existing))
	for _, link := range existing {
		linked[link.EpisodeID] = true
	}

	var links []catalog.EpisodeLocation
	for _, videoURL := range videoURLs {
		videoURL = strings.TrimSpace(videoURL)
		if videoURL == "" {
			continue
		}
		ep, err := s.Store.FindEpisodeByVideoURL(ctx, videoURL)
		if errors.Is(err, services.ErrNotFound) {
			report.MissingEpisodes = append(report.MissingEpisodes, videoURL)
			logging.WarnWithContext(logger, "seed references unknown episode", "seed_episode_missing",
				logging.String("video_url", videoURL),
				logging.String(logging.FieldErrorHint, "ingest the video first, then re-run seed"),
				logging.String(logging.FieldImpact, "link skipped"),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		if linked[ep.ID] {
			continue
		}
		linked[ep.ID] = true
		links = append(links, catalog.EpisodeLocation{EpisodeID: ep.ID, LocationID: locationID})
	}
	return links, nil
}
