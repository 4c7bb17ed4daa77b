package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/jukebox/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const spotifyTokenURL = "https://accounts.spotify.com/api/token"

// ClientCredentialsProvider is a [TokenProvider] backed by the OAuth2 client-credentials grant.
//
// The token cache lives in the provider's [oauth2.TokenSource] for as long as the provider does.
// Create one per process and inject it; tokens are refreshed shortly before expiry.
type ClientCredentialsProvider struct {
	source oauth2.TokenSource
}

// NewClientCredentialsProvider builds a provider from Spotify credentials.
// client, if non-nil, is used for the token endpoint.
func NewClientCredentialsProvider(cfg shared.SpotifyConfig, client *http.Client) (*ClientCredentialsProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx := context.Background()
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}

	return &ClientCredentialsProvider{source: cc.TokenSource(ctx)}, nil
}

// Token returns a cached or freshly fetched access token.
func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return tok.AccessToken, nil
}
