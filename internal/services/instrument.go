package services

import (
	"context"

	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/stats"
)

// instrumented records every call of the wrapped client in a [stats.Tracker].
type instrumented struct {
	next    CatalogClient
	tracker *stats.Tracker
}

// Instrument wraps client so that every call is categorized in tracker.
func Instrument(client CatalogClient, tracker *stats.Tracker) CatalogClient {
	if tracker == nil {
		return client
	}
	return &instrumented{next: client, tracker: tracker}
}

func (i *instrumented) Artist(ctx context.Context, artistID string) (p *models.ArtistProfile, err error) {
	err = i.tracker.Time(stats.CategoryArtist, func() error {
		p, err = i.next.Artist(ctx, artistID)
		return err
	})
	return p, err
}

func (i *instrumented) SeveralArtists(ctx context.Context, artistIDs []string) (ps []models.ArtistProfile, err error) {
	err = i.tracker.Time(stats.CategoryArtists, func() error {
		ps, err = i.next.SeveralArtists(ctx, artistIDs)
		return err
	})
	return ps, err
}

func (i *instrumented) SearchArtist(ctx context.Context, name string) (p *models.ArtistProfile, err error) {
	err = i.tracker.Time(stats.CategorySearch, func() error {
		p, err = i.next.SearchArtist(ctx, name)
		return err
	})
	return p, err
}

func (i *instrumented) RelatedArtists(ctx context.Context, artistID string) (ps []models.ArtistProfile, err error) {
	err = i.tracker.Time(stats.CategoryRelatedArtists, func() error {
		ps, err = i.next.RelatedArtists(ctx, artistID)
		return err
	})
	return ps, err
}

func (i *instrumented) ArtistTopTracks(ctx context.Context, artistID string) (ts []models.Track, err error) {
	err = i.tracker.Time(stats.CategoryTopTracks, func() error {
		ts, err = i.next.ArtistTopTracks(ctx, artistID)
		return err
	})
	return ts, err
}

func (i *instrumented) Track(ctx context.Context, trackID string) (t *models.Track, err error) {
	err = i.tracker.Time(stats.CategoryTrack, func() error {
		t, err = i.next.Track(ctx, trackID)
		return err
	})
	return t, err
}
