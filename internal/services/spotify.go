// Spotify Web API implementation of [CatalogClient]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// MaxArtistsPerRequest is the catalog's limit for /artists?ids=.
	MaxArtistsPerRequest = 50

	defaultRequestTimeout = 10 * time.Second
	defaultMarket         = "US"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Genres     []string   `json:"genres"`
	Popularity *int       `json:"popularity"`
	Followers  *followers `json:"followers"`
	URI        string     `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	IsPlayable *bool           `json:"is_playable"`
	URI        string          `json:"uri"`
}

// ToProfile maps a Spotify artist onto the cached profile shape.
func (a SpotifyArtist) ToProfile() models.ArtistProfile {
	p := models.ArtistProfile{
		SpotifyID:  a.ID,
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: a.Popularity,
	}
	if p.Genres == nil {
		p.Genres = []string{}
	}
	if a.Followers != nil {
		p.FollowerCount = models.IntPtr(a.Followers.Total)
	}
	return p
}

// ToTrack maps a Spotify track onto the pipeline's track shape, keeping the primary artist.
func (t SpotifyTrack) ToTrack() models.Track {
	track := models.Track{
		ID:         t.ID,
		Name:       t.Name,
		Album:      t.Album.Name,
		DurationMS: t.DurationMS,
		Popularity: t.Popularity,
	}
	if len(t.Artists) > 0 {
		track.ArtistID = t.Artists[0].ID
		track.ArtistName = t.Artists[0].Name
	}
	return track
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	RateLimit  float64 // requests per second, shared by all tokens
	Market     string
}

// SpotifyService holds the process-wide pieces of the Spotify client: base URL, transport and rate limiter.
//
// It is bound to a caller's bearer token with [SpotifyService.WithToken].
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	market     string
}

// NewSpotifyService creates the shared Spotify service.
func NewSpotifyService(opts SpotifyOpts) *SpotifyService {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if opts.Market == "" {
		opts.Market = defaultMarket
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &SpotifyService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		market:     opts.Market,
	}
}

// Name returns the name of the catalog.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// WithToken returns a [SpotifyClient] that authenticates every request with token.
func (s *SpotifyService) WithToken(token string) *SpotifyClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := &http.Client{
		Timeout:   s.httpClient.Timeout,
		Transport: &oauth2.Transport{Source: src, Base: s.httpClient.Transport},
	}
	return &SpotifyClient{service: s, httpClient: client, token: token}
}

// Factory adapts [SpotifyService.WithToken] to a [CatalogFactory].
func (s *SpotifyService) Factory() CatalogFactory {
	return func(token string) CatalogClient {
		return s.WithToken(token)
	}
}

// SpotifyClient implements [CatalogClient] for one bearer token.
type SpotifyClient struct {
	service    *SpotifyService
	httpClient *http.Client
	token      string
}

// doRequest performs an authenticated GET against the Spotify API and decodes the JSON body into result.
func (c *SpotifyClient) doRequest(ctx context.Context, endpoint string, result any) error {
	if c.token == "" {
		return shared.ErrMissingToken
	}

	if err := c.service.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", shared.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.service.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify returned 401", shared.ErrNotAuthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w (retry-after %s)", shared.ErrUpstreamUnavailable, shared.ErrRateLimited, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrUpstreamUnavailable, err)
		}
	}

	return nil
}

// Artist retrieves an artist by ID.
func (c *SpotifyClient) Artist(ctx context.Context, artistID string) (*models.ArtistProfile, error) {
	var artist SpotifyArtist
	if err := c.doRequest(ctx, "/artists/"+url.PathEscape(artistID), &artist); err != nil {
		return nil, err
	}
	p := artist.ToProfile()
	return &p, nil
}

// SeveralArtists retrieves multiple artists by their IDs (up to 50).
func (c *SpotifyClient) SeveralArtists(ctx context.Context, artistIDs []string) ([]models.ArtistProfile, error) {
	if len(artistIDs) == 0 {
		return nil, nil
	}
	if len(artistIDs) > MaxArtistsPerRequest {
		return nil, fmt.Errorf("%w: maximum %d artist IDs allowed", shared.ErrValidation, MaxArtistsPerRequest)
	}

	endpoint := "/artists?ids=" + url.QueryEscape(strings.Join(artistIDs, ","))

	var response struct {
		Artists []*SpotifyArtist `json:"artists"`
	}
	if err := c.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	profiles := make([]models.ArtistProfile, 0, len(response.Artists))
	for _, a := range response.Artists {
		if a == nil {
			continue
		}
		profiles = append(profiles, a.ToProfile())
	}
	return profiles, nil
}

// SearchArtist returns the first artist search result for name.
func (c *SpotifyClient) SearchArtist(ctx context.Context, name string) (*models.ArtistProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty artist name", shared.ErrValidation)
	}

	params := url.Values{}
	params.Set("q", name)
	params.Set("type", "artist")
	params.Set("limit", "1")

	var response struct {
		Artists struct {
			Items []SpotifyArtist `json:"items"`
		} `json:"artists"`
	}
	if err := c.doRequest(ctx, "/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	if len(response.Artists.Items) == 0 {
		return nil, fmt.Errorf("%w: no artist matches %q", shared.ErrNotFound, name)
	}
	p := response.Artists.Items[0].ToProfile()
	return &p, nil
}

// RelatedArtists retrieves artists related to artistID.
func (c *SpotifyClient) RelatedArtists(ctx context.Context, artistID string) ([]models.ArtistProfile, error) {
	var response struct {
		Artists []SpotifyArtist `json:"artists"`
	}
	if err := c.doRequest(ctx, "/artists/"+url.PathEscape(artistID)+"/related-artists", &response); err != nil {
		return nil, err
	}

	profiles := make([]models.ArtistProfile, 0, len(response.Artists))
	for _, a := range response.Artists {
		profiles = append(profiles, a.ToProfile())
	}
	return profiles, nil
}

// ArtistTopTracks retrieves the artist's top tracks in the configured market.
func (c *SpotifyClient) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(artistID), url.QueryEscape(c.service.market))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := c.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(response.Tracks))
	for _, t := range response.Tracks {
		if t.IsPlayable != nil && !*t.IsPlayable {
			continue
		}
		tracks = append(tracks, t.ToTrack())
	}
	return tracks, nil
}

// Track retrieves a single track by ID.
func (c *SpotifyClient) Track(ctx context.Context, trackID string) (*models.Track, error) {
	var track SpotifyTrack
	endpoint := fmt.Sprintf("/tracks/%s?market=%s", url.PathEscape(trackID), url.QueryEscape(c.service.market))
	if err := c.doRequest(ctx, endpoint, &track); err != nil {
		return nil, err
	}
	if track.IsPlayable != nil && !*track.IsPlayable {
		return nil, fmt.Errorf("%w: track %s is not playable", shared.ErrNotFound, trackID)
	}
	t := track.ToTrack()
	return &t, nil
}
