// Package round implements the per-round candidate pipeline of the guessing game.
//
// # Classification
//
// [Classify] maps a player's gravity to an influence percentage and a [models.Zone].
// The zone gates whether the player's target artists feed candidate sourcing ([Classification.TargetFetchEnabled]),
// and [ShouldInject] decides whether a target is forced into the candidate set.
// [Phase] and [HardConvergenceActive] describe how far the round has progressed.
//
// # Stage 1
//
// [Resolver.Resolve] validates the playback state, fetches the seed artist and its related artists,
// fetches each player's targets (and their related artists when the zone allows) concurrently,
// unions everything into one ordered set keyed by catalog ID, applies injection,
// and tops the set up from the cache to the configured artist floor.
//
// # Stage 2
//
// [Assembler.Assemble] fetches top tracks for every candidate artist with bounded concurrency,
// picks one eligible track per artist from the top N, tops the pool up with random cached tracks tagged [models.SourceEmbedding],
// and attaches artist profiles for scoring.
//
// Neither stage writes the cache directly: fetched profiles and top tracks are queued as lazy updates for the maintenance tick.
package round
