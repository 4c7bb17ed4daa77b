// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
)

// MockCatalog is an in-memory test double for [services.CatalogClient].
//
// Unknown artists and tracks are reported as [shared.ErrNotFound]; unknown related/top-track lookups return nothing.
// Errors registered with [MockCatalog.Fail] take precedence over data.
type MockCatalog struct {
	mu sync.Mutex

	Artists   map[string]models.ArtistProfile
	Related   map[string][]models.ArtistProfile
	TopTracks map[string][]models.Track
	Tracks    map[string]models.Track

	errors map[string]error
	calls  []string
	tokens []string
}

// NewMockCatalog creates an empty catalog.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		Artists:   make(map[string]models.ArtistProfile),
		Related:   make(map[string][]models.ArtistProfile),
		TopTracks: make(map[string][]models.Track),
		Tracks:    make(map[string]models.Track),
		errors:    make(map[string]error),
	}
}

// Factory returns a [services.CatalogFactory] recording the tokens it was asked to bind.
func (m *MockCatalog) Factory() services.CatalogFactory {
	return func(token string) services.CatalogClient {
		m.mu.Lock()
		m.tokens = append(m.tokens, token)
		m.mu.Unlock()
		return m
	}
}

// Fail makes method fail for id. Use "*" as id to fail every call of method.
func (m *MockCatalog) Fail(method, id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method+":"+id] = err
}

// AddArtist registers a profile with optional related artists.
func (m *MockCatalog) AddArtist(p models.ArtistProfile, related ...models.ArtistProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Artists[p.SpotifyID] = p
	if len(related) > 0 {
		m.Related[p.SpotifyID] = related
	}
}

// CallCount returns how many times method was called.
func (m *MockCatalog) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if strings.HasPrefix(c, method+":") {
			n++
		}
	}
	return n
}

// Calls returns every recorded call as "method:argument".
func (m *MockCatalog) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Tokens returns every token passed to the factory.
func (m *MockCatalog) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

func (m *MockCatalog) record(method, arg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method+":"+arg)
	if err, ok := m.errors[method+":"+arg]; ok {
		return err
	}
	if err, ok := m.errors[method+":*"]; ok {
		return err
	}
	return nil
}

func (m *MockCatalog) Artist(ctx context.Context, artistID string) (*models.ArtistProfile, error) {
	if err := m.record("Artist", artistID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Artists[artistID]
	if !ok {
		return nil, fmt.Errorf("%w: artist %s", shared.ErrNotFound, artistID)
	}
	return &p, nil
}

func (m *MockCatalog) SeveralArtists(ctx context.Context, artistIDs []string) ([]models.ArtistProfile, error) {
	if err := m.record("SeveralArtists", strings.Join(artistIDs, ",")); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ArtistProfile
	for _, id := range artistIDs {
		if p, ok := m.Artists[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockCatalog) SearchArtist(ctx context.Context, name string) (*models.ArtistProfile, error) {
	if err := m.record("SearchArtist", name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Artists {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: no artist named %q", shared.ErrNotFound, name)
}

func (m *MockCatalog) RelatedArtists(ctx context.Context, artistID string) ([]models.ArtistProfile, error) {
	if err := m.record("RelatedArtists", artistID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ArtistProfile(nil), m.Related[artistID]...), nil
}

func (m *MockCatalog) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	if err := m.record("ArtistTopTracks", artistID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Track(nil), m.TopTracks[artistID]...), nil
}

func (m *MockCatalog) Track(ctx context.Context, trackID string) (*models.Track, error) {
	if err := m.record("Track", trackID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tracks[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: track %s", shared.ErrNotFound, trackID)
	}
	return &t, nil
}

// Artists builds n profiles named prefix0..prefixN-1, with IDs of the same form.
func Artists(prefix string, n int) []models.ArtistProfile {
	out := make([]models.ArtistProfile, n)
	for i := range out {
		id := fmt.Sprintf("%s%d", prefix, i)
		out[i] = models.ArtistProfile{SpotifyID: id, Name: id, Genres: []string{"genre" + prefix}}
	}
	return out
}

// Tracks builds n tracks by artistID with IDs prefix0..prefixN-1.
func Tracks(prefix, artistID string, n int) []models.Track {
	out := make([]models.Track, n)
	for i := range out {
		id := fmt.Sprintf("%s%d", prefix, i)
		out[i] = models.Track{ID: id, Name: "Song " + id, ArtistID: artistID, ArtistName: artistID}
	}
	return out
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
