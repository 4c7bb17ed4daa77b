// package services defines the external collaborators of the round pipeline: the music catalog and its token provider
package services

import (
	"context"

	"github.com/desertthunder/jukebox/internal/models"
)

// CatalogClient performs artist and track lookups against the external music catalog.
//
// Implementations return errors wrapping [shared.ErrNotFound] for unknown IDs and [shared.ErrUpstreamUnavailable] for every other failure.
// Callers must only pass catalog-shaped IDs (see [shared.IsCatalogID]).
type CatalogClient interface {
	// Artist retrieves one artist profile.
	Artist(ctx context.Context, artistID string) (*models.ArtistProfile, error)

	// SeveralArtists retrieves up to [MaxArtistsPerRequest] profiles in one call. Unknown IDs are omitted.
	SeveralArtists(ctx context.Context, artistIDs []string) ([]models.ArtistProfile, error)

	// SearchArtist returns the best match for an artist name.
	SearchArtist(ctx context.Context, name string) (*models.ArtistProfile, error)

	// RelatedArtists returns artists the catalog considers similar.
	RelatedArtists(ctx context.Context, artistID string) ([]models.ArtistProfile, error)

	// ArtistTopTracks returns the artist's most popular tracks, best first.
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error)

	// Track retrieves a single track.
	Track(ctx context.Context, trackID string) (*models.Track, error)
}

// CatalogFactory binds a [CatalogClient] to a bearer token.
type CatalogFactory func(token string) CatalogClient

// TokenProvider yields a valid bearer token for the catalog API.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a [TokenProvider] that always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}
