// Package repositories implements SQLite persistence for the catalog cache and the maintenance queues.
//
// A single [Store] covers four concerns:
//   - Artist cache : [Store.UpsertArtist], [Store.GetArtists], [Store.RandomArtists]
//   - Track cache : [Store.UpsertTrack], [Store.RandomTracks], [Store.TopTracks], genre backfill bookkeeping, playable flag
//   - Lazy update queue : [Store.EnqueueLazyUpdate], [Store.ClaimPending], completion, retry and requeue transitions
//   - Healing queue : [Store.EnqueueHealing] (deduplicated by type and entity), [Store.PopHealing]
//
// Writes are upserts keyed by catalog IDs or queue item IDs. Queue claims and pops are single UPDATE/DELETE ... RETURNING statements, so concurrent maintenance ticks never hand the same item to two callers.
// SQLITE_BUSY is retried with exponential backoff; every other failure wraps [shared.ErrPersistence].
//
// Timestamps are stored as fixed-width UTC strings so ordering by column matches chronological order.
package repositories
