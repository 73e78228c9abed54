package ingest_test

import (
	"context"
	"errors"
	"testing"

	"oshimaint/internal/catalog"
	"oshimaint/internal/ingest"
	"oshimaint/internal/journal"
	"oshimaint/internal/services"
	"oshimaint/internal/store/storetest"
	"oshimaint/internal/tmdb"
	"oshimaint/internal/youtube"
)

type fakeYouTube struct {
	pages      map[string]*youtube.SearchResponse
	searchErrs map[string]error
	videos     map[string]youtube.Video
	failVideos map[string]bool
	onVideos   func()
	calls      []string
}

func (f *fakeYouTube) Search(_ context.Context, opts youtube.SearchOptions) (*youtube.SearchResponse, error) {
	f.calls = append(f.calls, "search:"+opts.PageToken)
	if err := f.searchErrs[opts.PageToken]; err != nil {
		return nil, err
	}
	return f.pages[opts.PageToken], nil
}

func (f *fakeYouTube) Videos(_ context.Context, ids []string) (*youtube.VideoListResponse, error) {
	f.calls = append(f.calls, "videos")
	if f.onVideos != nil {
		f.onVideos()
	}
	resp := &youtube.VideoListResponse{}
	for _, id := range ids {
		if f.failVideos[id] {
			return nil, errors.New("youtube videos returned 500")
		}
		if v, ok := f.videos[id]; ok {
			resp.Items = append(resp.Items, v)
		}
	}
	return resp, nil
}

func searchPage(next string, ids ...string) *youtube.SearchResponse {
	resp := &youtube.SearchResponse{NextPageToken: next}
	for _, id := range ids {
		var item youtube.SearchResult
		item.ID.VideoID = id
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func video(id, title, duration string, views int64) youtube.Video {
	return youtube.Video{
		ID:             id,
		Snippet:        youtube.Snippet{Title: title, PublishedAt: "2024-01-02T03:04:05Z"},
		Statistics:     youtube.Statistics{ViewCount: views},
		ContentDetails: youtube.ContentDetails{Duration: duration},
	}
}

func newStore() *storetest.Memory {
	mem := storetest.New()
	mem.Celebrities = []catalog.Celebrity{{ID: "celeb", Name: "よにのちゃんねる", Slug: "yonino"}}
	return mem
}

func TestYouTubeUpsertsByVideoURL(t *testing.T) {
	mem := newStore()
	mem.Episodes = []catalog.Episode{
		{ID: "old", Title: "A", VideoURL: youtube.WatchURL("a"), ViewCount: 10, Duration: 4},
		{ID: "same", Title: "C", VideoURL: youtube.WatchURL("c"), ViewCount: 5, Duration: 1},
	}
	src := &fakeYouTube{
		pages: map[string]*youtube.SearchResponse{
			"":   searchPage("p2", "a", "b"),
			"p2": searchPage("", "c"),
		},
		videos: map[string]youtube.Video{
			"a": video("a", "A", "PT4M13S", 99),
			"b": video("b", "B", "PT1H2M3S", 7),
			"c": video("c", "C", "PT1M", 5),
		},
	}

	ing := &ingest.Ingestor{Store: mem}
	report, err := ing.YouTube(context.Background(), src, ingest.YouTubeOptions{CelebrityID: "celeb", ChannelID: "UC1", MaxPages: 5})
	if err != nil {
		t.Fatalf("YouTube returned error: %v", err)
	}
	if report.Fetched != 3 || report.Inserted != 1 || report.Updated != 1 || report.Unchanged != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %#v", report)
	}
	if len(mem.Episodes) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(mem.Episodes))
	}
	if mem.Episodes[0].ViewCount != 99 {
		t.Fatalf("expected refreshed statistics, got %#v", mem.Episodes[0])
	}
	inserted := mem.Episodes[2]
	if inserted.ID == "" || inserted.ID == "b" || inserted.Duration != 62 || inserted.CelebrityID != "celeb" {
		t.Fatalf("unexpected inserted episode %#v", inserted)
	}
}

func TestYouTubeContinuesPastFailedVideosPage(t *testing.T) {
	mem := newStore()
	src := &fakeYouTube{
		pages: map[string]*youtube.SearchResponse{
			"":   searchPage("p2", "bad"),
			"p2": searchPage("", "good"),
		},
		videos:     map[string]youtube.Video{"good": video("good", "Good", "PT3M", 1)},
		failVideos: map[string]bool{"bad": true},
	}

	report, err := (&ingest.Ingestor{Store: mem}).YouTube(context.Background(), src, ingest.YouTubeOptions{CelebrityID: "celeb", ChannelID: "UC1", MaxPages: 5})
	if err != nil {
		t.Fatalf("YouTube returned error: %v", err)
	}
	if report.Failed != 1 || report.Inserted != 1 || len(report.Errors) != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
	if len(mem.Episodes) != 1 || mem.Episodes[0].Title != "Good" {
		t.Fatalf("expected the good video to be stored, got %#v", mem.Episodes)
	}
}

func TestYouTubeStopsPaginationOnSearchFailure(t *testing.T) {
	mem := newStore()
	src := &fakeYouTube{
		pages:      map[string]*youtube.SearchResponse{"": searchPage("p2", "a")},
		searchErrs: map[string]error{"p2": errors.New("youtube search returned 403")},
		videos:     map[string]youtube.Video{"a": video("a", "A", "PT3M", 1)},
	}
	report, err := (&ingest.Ingestor{Store: mem}).YouTube(context.Background(), src, ingest.YouTubeOptions{CelebrityID: "celeb", ChannelID: "UC1", MaxPages: 5})
	if err != nil {
		t.Fatalf("YouTube returned error: %v", err)
	}
	if report.Inserted != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
}

func TestYouTubeReportsCancellationOnLastPage(t *testing.T) {
	mem := newStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeYouTube{
		pages: map[string]*youtube.SearchResponse{"": searchPage("", "a", "b")},
		videos: map[string]youtube.Video{
			"a": video("a", "A", "PT3M", 1),
			"b": video("b", "B", "PT3M", 1),
		},
		onVideos: cancel,
	}
	report, err := (&ingest.Ingestor{Store: mem}).YouTube(ctx, src, ingest.YouTubeOptions{CelebrityID: "celeb", ChannelID: "UC1", MaxPages: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if status := services.FailureStatus(err); status != journal.RunCancelled {
		t.Fatalf("expected cancelled status, got %q", status)
	}
	if report.Inserted != 0 || len(mem.Episodes) != 0 {
		t.Fatalf("expected no writes after cancellation, got report %#v", report)
	}
}

func TestYouTubeVideosReportsCancellation(t *testing.T) {
	mem := newStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeYouTube{
		videos:   map[string]youtube.Video{"a": video("a", "A", "PT3M", 1)},
		onVideos: cancel,
	}
	_, err := (&ingest.Ingestor{Store: mem}).YouTubeVideos(ctx, src, "celeb", []string{"a"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRowErrorsDoNotStopTheLoop(t *testing.T) {
	mem := newStore()
	mem.FailOn("InsertEpisode", errors.New("insert rejected"))
	src := &fakeYouTube{
		pages: map[string]*youtube.SearchResponse{"": searchPage("", "a", "b")},
		videos: map[string]youtube.Video{
			"a": video("a", "A", "PT3M", 1),
			"b": video("b", "B", "PT3M", 1),
		},
	}
	report, err := (&ingest.Ingestor{Store: mem}).YouTube(context.Background(), src, ingest.YouTubeOptions{CelebrityID: "celeb", Query: "q"})
	if err != nil {
		t.Fatalf("YouTube returned error: %v", err)
	}
	if report.Failed != 1 || report.Inserted != 1 || len(mem.Episodes) != 1 {
		t.Fatalf("unexpected report %#v", report)
	}
}

func TestMissingCelebrityIsFatal(t *testing.T) {
	mem := storetest.New()
	_, err := (&ingest.Ingestor{Store: mem}).YouTube(context.Background(), &fakeYouTube{}, ingest.YouTubeOptions{CelebrityID: "nobody", ChannelID: "UC1"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDryRunDoesNotWrite(t *testing.T) {
	mem := newStore()
	src := &fakeYouTube{
		pages:  map[string]*youtube.SearchResponse{"": searchPage("", "a")},
		videos: map[string]youtube.Video{"a": video("a", "A", "PT3M", 1)},
	}
	report, err := (&ingest.Ingestor{Store: mem, DryRun: true}).YouTube(context.Background(), src, ingest.YouTubeOptions{CelebrityID: "celeb", ChannelID: "UC1"})
	if err != nil {
		t.Fatalf("YouTube returned error: %v", err)
	}
	if report.Inserted != 1 || len(mem.Episodes) != 0 {
		t.Fatalf("dry run wrote rows: report %#v, episodes %d", report, len(mem.Episodes))
	}
}

type fakeTMDB struct {
	people  []tmdb.Person
	credits *tmdb.CombinedCredits
	queries []string
}

func (f *fakeTMDB) SearchPerson(_ context.Context, query string) (*tmdb.PersonResponse, error) {
	f.queries = append(f.queries, query)
	return &tmdb.PersonResponse{Results: f.people}, nil
}

func (f *fakeTMDB) CombinedCredits(_ context.Context, personID int64) (*tmdb.CombinedCredits, error) {
	if f.credits == nil || f.credits.ID != personID {
		return nil, errors.New("tmdb combined credits returned 404")
	}
	return f.credits, nil
}

func TestTMDBIngestsCastCredits(t *testing.T) {
	mem := newStore()
	src := &fakeTMDB{
		people: []tmdb.Person{{ID: 42, Name: "よにのちゃんねる"}},
		credits: &tmdb.CombinedCredits{ID: 42, Cast: []tmdb.Credit{
			{ID: 1, MediaType: "tv", Name: "VS嵐", FirstAirDate: "2008-04-12", PosterPath: "/p.jpg"},
			{ID: 1, MediaType: "tv", Name: "VS嵐", Character: "Guest"},
			{ID: 2, MediaType: "movie", Title: "硫黄島からの手紙", ReleaseDate: "2006-12-09"},
			{ID: 3, MediaType: "movie"},
		}},
	}
	report, err := (&ingest.Ingestor{Store: mem}).TMDB(context.Background(), src, ingest.TMDBOptions{CelebrityID: "celeb"})
	if err != nil {
		t.Fatalf("TMDB returned error: %v", err)
	}
	if len(src.queries) != 1 || src.queries[0] != "よにのちゃんねる" {
		t.Fatalf("expected search by celebrity name, got %v", src.queries)
	}
	if report.Fetched != 2 || report.Inserted != 2 {
		t.Fatalf("unexpected report %#v", report)
	}
	if mem.Episodes[0].VideoURL != "https://www.themoviedb.org/tv/1" || mem.Episodes[0].ThumbnailURL != tmdb.ImageBaseURL+"/p.jpg" {
		t.Fatalf("unexpected episode %#v", mem.Episodes[0])
	}
}

func TestTMDBUnknownPersonIsNotFound(t *testing.T) {
	mem := newStore()
	_, err := (&ingest.Ingestor{Store: mem}).TMDB(context.Background(), &fakeTMDB{}, ingest.TMDBOptions{CelebrityID: "celeb", Query: "nobody"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
