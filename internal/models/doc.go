// Package models defines the plain data types passed between the round pipeline, the persistence layer, and the maintenance scheduler.
//
// Types here carry no behavior beyond small helpers:
//   - [ArtistProfile], [Track] : cached catalog metadata keyed by catalog ID
//   - [CandidateSeed] : one entry of a Stage 2 pool, tagged with its [SeedSource]
//   - [ExplorationPhase] : pure function of the round number
//   - [QueueItem] : lazy cache write-back with a [QueueStatus] lifecycle
//   - [HealingAction] : corrective action, deduplicated by (type, entity)
//   - [BackfillMetrics] : monotonic crawler counters
package models
