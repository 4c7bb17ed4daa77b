// Package tasks implements the deadline-bound maintenance scheduler and the queues it drains.
//
// # Tick
//
// [Scheduler.Tick] is the single entry point, invoked once per poll. In order it:
//
//  1. Returns items left processing by a crashed tick to pending
//  2. Claims up to BatchLimit lazy updates and applies them one by one, checking the deadline before each item
//  3. Requeues every claimed item it did not attempt
//  4. Runs one [GenreBackfillCrawler] batch if enough budget remains
//  5. Dispatches a few [SelfHealingQueue] actions if a token is available and budget remains
//
// Nothing is started once the budget is spent, so a tick overruns its deadline by at most one in-flight call.
//
// # Lazy Updates
//
// Items carry the JSON the live pipeline fetched and are upserted as-is; items without a payload are fetched from the catalog.
// Persistence failures send an item back to pending until it has used its attempts. Catalog failures are terminal.
//
// # Healing
//
// [SelfHealingQueue.Dispatch] runs in the background and returns a [HealingTask]. Callers either Wait on it or leave it detached;
// [SelfHealingQueue.Drain] lets a process wait for detached work before exiting.
//
// # Progress Reporting
//
// [ProgressUpdate] values are sent on an optional channel with select/default so reporting never blocks a tick.
package tasks
