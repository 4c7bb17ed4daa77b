// Package services implements the external collaborators consumed by the round pipeline and the maintenance scheduler.
//
// # Catalog Client
//
// [CatalogClient] is the contract for artist, related-artist and track lookups.
// [SpotifyService] holds the process-wide transport and a [rate.Limiter] shared by all callers;
// [SpotifyService.WithToken] binds it to the bearer token of one request, producing a [SpotifyClient].
// The token is attached by an [oauth2.Transport] over a static token source.
//
// # Token Provider
//
// [TokenProvider] yields a bearer token when the caller did not supply one (the maintenance tick).
// [ClientCredentialsProvider] implements it with the OAuth2 client-credentials grant and keeps its token cache for the lifetime of the provider instance.
//
// # Instrumentation
//
// [Instrument] wraps any [CatalogClient] so each call is counted in a per-invocation [stats.Tracker].
//
// # Error Handling
//
// Clients return errors wrapping sentinels from the shared package:
//   - [shared.ErrNotFound] : unknown ID or empty search result (HTTP 404)
//   - [shared.ErrNotAuthorized] : the bearer token was rejected (HTTP 401)
//   - [shared.ErrRateLimited] : HTTP 429, also wrapping ErrUpstreamUnavailable
//   - [shared.ErrUpstreamUnavailable] : transport failures and other non-2xx responses
package services
