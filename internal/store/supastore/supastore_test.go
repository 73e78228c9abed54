package supastore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"oshimaint/internal/catalog"
	"oshimaint/internal/config"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

var _ store.Store = (*Store)(nil)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Prefer string
	Body   string
}

type fakeRest struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(w http.ResponseWriter, r *http.Request, body string)
}

func (f *fakeRest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Prefer: r.Header.Get("Prefer"),
		Body:   string(data),
	})
	f.mu.Unlock()
	if r.Header.Get("apikey") != "service-key" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"401","message":"missing apikey"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	f.handle(w, r, string(data))
}

func newTestStore(t *testing.T, pageSize int, handle func(w http.ResponseWriter, r *http.Request, body string)) (*Store, *fakeRest) {
	t.Helper()
	fake := &fakeRest{handle: handle}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := New(config.Supabase{URL: srv.URL, ServiceRoleKey: "service-key", Schema: "public", PageSize: pageSize}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, fake
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.Supabase{URL: "https://example.supabase.co"}, nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestListEpisodesPagesUntilShortPage(t *testing.T) {
	s, fake := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request, _ string) {
		if r.URL.Path != "/rest/v1/episodes" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.URL.Query().Get("offset") {
		case "", "0":
			_, _ = w.Write([]byte(`[{"id":"e1","title":"one"},{"id":"e2","title":"two"}]`))
		default:
			_, _ = w.Write([]byte(`[{"id":"e3","title":"three","view_count":7}]`))
		}
	})

	episodes, err := s.ListEpisodes(context.Background(), "celeb-1")
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(episodes) != 3 || episodes[2].ViewCount != 7 {
		t.Fatalf("unexpected episodes %#v", episodes)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(fake.requests))
	}
	if !strings.Contains(fake.requests[0].Query, "celebrity_id=eq.celeb-1") {
		t.Fatalf("expected celebrity filter in %q", fake.requests[0].Query)
	}
}

func TestFindEpisodeByVideoURLNotFound(t *testing.T) {
	s, _ := newTestStore(t, 10, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = w.Write([]byte(`[]`))
	})
	_, err := s.FindEpisodeByVideoURL(context.Background(), "https://www.youtube.com/watch?v=abc")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertEpisodeReturnsRepresentation(t *testing.T) {
	s, fake := newTestStore(t, 10, func(w http.ResponseWriter, r *http.Request, body string) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("[" + body + "]"))
	})

	ep, err := s.InsertEpisode(context.Background(), catalog.Episode{ID: "e9", Title: "new", CelebrityID: "c1"})
	if err != nil {
		t.Fatalf("InsertEpisode: %v", err)
	}
	if ep.ID != "e9" || ep.CelebrityID != "c1" {
		t.Fatalf("unexpected inserted episode %#v", ep)
	}
	if !strings.Contains(fake.requests[0].Prefer, "return=representation") {
		t.Fatalf("expected representation preference, got %q", fake.requests[0].Prefer)
	}
}

func TestDeleteEpisodeLocationsFiltersBothColumns(t *testing.T) {
	s, fake := newTestStore(t, 10, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusNoContent)
	})

	links := []catalog.EpisodeLocation{{EpisodeID: "e1", LocationID: "l1"}, {EpisodeID: "e2", LocationID: "l1"}}
	if err := s.DeleteEpisodeLocations(context.Background(), links); err != nil {
		t.Fatalf("DeleteEpisodeLocations: %v", err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected one request per link, got %d", len(fake.requests))
	}
	got := fake.requests[1]
	if got.Method != http.MethodDelete || !strings.Contains(got.Query, "episode_id=eq.e2") || !strings.Contains(got.Query, "location_id=eq.l1") {
		t.Fatalf("unexpected delete request %#v", got)
	}
}

func TestUpdateLocationAffiliateSendsBothColumns(t *testing.T) {
	s, fake := newTestStore(t, 10, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusNoContent)
	})

	info := catalog.AffiliateInfo{"linkswitch": json.RawMessage(`{"status":"active"}`)}
	if err := s.UpdateLocationAffiliate(context.Background(), "l1", "https://tabelog.com/tokyo/A1301/A130101/13000001/", info); err != nil {
		t.Fatalf("UpdateLocationAffiliate: %v", err)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal([]byte(fake.requests[0].Body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["tabelog_url"]; !ok {
		t.Fatalf("expected tabelog_url in %s", fake.requests[0].Body)
	}
	if !strings.Contains(string(body["affiliate_info"]), "linkswitch") {
		t.Fatalf("expected affiliate_info in %s", fake.requests[0].Body)
	}
}

func TestErrorStatusSurfacesAsDatabaseError(t *testing.T) {
	s, _ := newTestStore(t, 10, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"PGRST100","message":"bad filter","details":"","hint":""}`))
	})
	_, err := s.ListLocations(context.Background())
	if !errors.Is(err, services.ErrDatabase) {
		t.Fatalf("expected ErrDatabase, got %v", err)
	}
}

func TestRestoreRowUpsertsKnownTables(t *testing.T) {
	s, fake := newTestStore(t, 10, func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.WriteHeader(http.StatusCreated)
	})

	if err := s.RestoreRow(context.Background(), "profiles", json.RawMessage(`{}`)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown table, got %v", err)
	}
	if err := s.RestoreRow(context.Background(), catalog.TableEpisodeLocations, json.RawMessage(`{"episode_id":"e1","location_id":"l1"}`)); err != nil {
		t.Fatalf("RestoreRow: %v", err)
	}
	req := fake.requests[len(fake.requests)-1]
	if req.Path != "/rest/v1/episode_locations" || !strings.Contains(req.Prefer, "merge-duplicates") {
		t.Fatalf("unexpected restore request %#v", req)
	}
	if !strings.Contains(req.Query, "on_conflict=episode_id") {
		t.Fatalf("expected on_conflict in %q", req.Query)
	}
}

func TestJunctionListingsOrderByCompositeKey(t *testing.T) {
	s, fake := newTestStore(t, 2, func(w http.ResponseWriter, r *http.Request, _ string) {
		switch r.URL.Query().Get("offset") {
		case "", "0":
			_, _ = w.Write([]byte(`[{"episode_id":"e1","location_id":"loc-1"},{"episode_id":"e2","location_id":"loc-1"}]`))
		default:
			_, _ = w.Write([]byte(`[{"episode_id":"e3","location_id":"loc-1"}]`))
		}
	})

	links, err := s.ListEpisodeLocationsByLocations(context.Background(), []string{"loc-1"})
	if err != nil {
		t.Fatalf("ListEpisodeLocationsByLocations: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("expected 3 links across pages, got %#v", links)
	}
	for _, req := range fake.requests {
		order := queryValue(t, req, "order")
		if order != "episode_id.asc.nullslast,location_id.asc.nullslast" {
			t.Fatalf("expected composite order, got %q", order)
		}
	}

	if _, err := s.ListEpisodeItemsByEpisodes(context.Background(), []string{"e1"}); err != nil {
		t.Fatalf("ListEpisodeItemsByEpisodes: %v", err)
	}
	last := fake.requests[len(fake.requests)-1]
	if order := queryValue(t, last, "order"); order != "episode_id.asc.nullslast,item_id.asc.nullslast" {
		t.Fatalf("expected composite order for episode items, got %q", order)
	}
}

func queryValue(t *testing.T, req recordedRequest, key string) string {
	t.Helper()
	values, err := url.ParseQuery(req.Query)
	if err != nil {
		t.Fatalf("parse query %q: %v", req.Query, err)
	}
	return values.Get(key)
}
