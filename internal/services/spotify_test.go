package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/stats"
)

// newTestCatalog serves canned Spotify responses and records the Authorization header of each request.
func newTestCatalog(t *testing.T) (*SpotifyService, *[]string) {
	t.Helper()
	var auth []string

	mux := http.NewServeMux()
	mux.HandleFunc("/artists/seed1", func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":"seed1","name":"Seed","genres":["indie"],"popularity":55,"followers":{"total":1200}}`))
	})
	mux.HandleFunc("/artists/seed1/related-artists", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"artists":[{"id":"rel1","name":"One","genres":[]},{"id":"rel2","name":"Two","genres":["rock"]}]}`))
	})
	mux.HandleFunc("/artists/seed1/top-tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("market") == "" {
			t.Error("expected market parameter")
		}
		w.Write([]byte(`{"tracks":[
			{"id":"t1","name":"Hit","artists":[{"id":"seed1","name":"Seed"}],"album":{"name":"LP"},"duration_ms":1000,"popularity":80},
			{"id":"t2","name":"Blocked","artists":[{"id":"seed1","name":"Seed"}],"is_playable":false}
		]}`))
	})
	mux.HandleFunc("/artists", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		var out []any
		for _, id := range ids {
			if id == "missing" {
				out = append(out, nil)
				continue
			}
			out = append(out, map[string]any{"id": id, "name": "Artist " + id, "genres": []string{"pop"}})
		}
		json.NewEncoder(w).Encode(map[string]any{"artists": out})
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "nobody" {
			w.Write([]byte(`{"artists":{"items":[]}}`))
			return
		}
		w.Write([]byte(`{"artists":{"items":[{"id":"found1","name":"Found"}]}}`))
	})
	mux.HandleFunc("/tracks/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/tracks/busy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/tracks/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewSpotifyService(SpotifyOpts{BaseURL: srv.URL, HTTPClient: srv.Client()}), &auth
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Artist sends bearer token and maps profile", func(t *testing.T) {
		svc, auth := newTestCatalog(t)
		artist, err := svc.WithToken("tok").Artist(ctx, "seed1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if (*auth)[0] != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", (*auth)[0])
		}
		if artist.Name != "Seed" || len(artist.Genres) != 1 {
			t.Errorf("unexpected artist %+v", artist)
		}
		if artist.Popularity == nil || *artist.Popularity != 55 {
			t.Errorf("expected popularity 55, got %v", artist.Popularity)
		}
		if artist.FollowerCount == nil || *artist.FollowerCount != 1200 {
			t.Errorf("expected 1200 followers, got %v", artist.FollowerCount)
		}
	})

	t.Run("RelatedArtists normalizes nil genres", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		related, err := svc.WithToken("tok").RelatedArtists(ctx, "seed1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(related) != 2 {
			t.Fatalf("expected 2 related artists, got %d", len(related))
		}
		if related[0].Genres == nil {
			t.Error("genres should never be nil")
		}
	})

	t.Run("ArtistTopTracks drops unplayable tracks", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		tracks, err := svc.WithToken("tok").ArtistTopTracks(ctx, "seed1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != "t1" {
			t.Fatalf("expected only t1, got %+v", tracks)
		}
		if tracks[0].ArtistID != "seed1" || tracks[0].Album != "LP" {
			t.Errorf("unexpected mapping %+v", tracks[0])
		}
	})

	t.Run("SeveralArtists skips null entries", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		artists, err := svc.WithToken("tok").SeveralArtists(ctx, []string{"a1", "missing", "a2"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(artists) != 2 {
			t.Errorf("expected 2 artists, got %d", len(artists))
		}
	})

	t.Run("SeveralArtists rejects oversized batches", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		ids := make([]string, MaxArtistsPerRequest+1)
		if _, err := svc.WithToken("tok").SeveralArtists(ctx, ids); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("SearchArtist", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		client := svc.WithToken("tok")

		found, err := client.SearchArtist(ctx, "someone")
		if err != nil || found.SpotifyID != "found1" {
			t.Errorf("expected found1, got %+v, %v", found, err)
		}

		if _, err := client.SearchArtist(ctx, "nobody"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("status codes map to sentinel errors", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		client := svc.WithToken("tok")

		if _, err := client.Track(ctx, "gone"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		_, err := client.Track(ctx, "busy")
		if !errors.Is(err, shared.ErrRateLimited) || !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected rate limited upstream error, got %v", err)
		}

		if _, err := client.Track(ctx, "broken"); !errors.Is(err, shared.ErrUpstreamUnavailable) {
			t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		if _, err := svc.WithToken("").Artist(ctx, "seed1"); !errors.Is(err, shared.ErrMissingToken) {
			t.Errorf("expected ErrMissingToken, got %v", err)
		}
	})

	t.Run("Instrument counts calls", func(t *testing.T) {
		svc, _ := newTestCatalog(t)
		tracker := stats.NewTracker(nil)
		client := Instrument(svc.WithToken("tok"), tracker)

		client.Artist(ctx, "seed1")
		client.RelatedArtists(ctx, "seed1")
		client.Track(ctx, "gone")

		snap := tracker.Snapshot()
		if snap.Total != 3 {
			t.Errorf("expected 3 calls, got %d", snap.Total)
		}
		if snap.ByCategory[stats.CategoryTrack].Failures != 1 {
			t.Errorf("expected track failure, got %+v", snap.ByCategory[stats.CategoryTrack])
		}
	})

	t.Run("Service Interface", func(t *testing.T) {
		svc := NewSpotifyService(SpotifyOpts{})
		var _ CatalogClient = svc.WithToken("tok")
		if svc.Name() != "Spotify" {
			t.Errorf("expected Spotify, got %s", svc.Name())
		}
		if svc.Factory()("tok") == nil {
			t.Error("factory should build a client")
		}
	})
}

func TestClientCredentialsProvider(t *testing.T) {
	t.Run("fetches and caches token", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if user, _, ok := r.BasicAuth(); !ok || user != "id" {
				t.Errorf("expected basic auth with client id, got %q", user)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"cc-token","token_type":"Bearer","expires_in":3600}`))
		}))
		defer srv.Close()

		p, err := NewClientCredentialsProvider(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL}, srv.Client())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		for i := 0; i < 3; i++ {
			tok, err := p.Token(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok != "cc-token" {
				t.Errorf("expected cc-token, got %s", tok)
			}
		}
		if calls != 1 {
			t.Errorf("expected token endpoint to be hit once, got %d", calls)
		}
	})

	t.Run("token endpoint failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		p, _ := NewClientCredentialsProvider(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL}, srv.Client())
		if _, err := p.Token(context.Background()); !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		if _, err := NewClientCredentialsProvider(shared.SpotifyConfig{}, nil); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("StaticToken", func(t *testing.T) {
		tok, _ := StaticToken("abc").Token(context.Background())
		if tok != "abc" {
			t.Errorf("expected abc, got %s", tok)
		}
	})
}
