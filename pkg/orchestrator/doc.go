// Package orchestrator admits scanned candidates and drives them through
// the download subsystem exactly once.
//
// The orchestrator owns the global dedup decision. Every candidate reduces
// to a dedup key (a normalized URL for remote sources, a payload
// fingerprint for content sources), and each key moves through a small
// state machine:
//
//	absent -> pending -> active -> committed
//
// A key is pending from admission until the download subsystem accepts or
// rejects the request, active while the subsystem works on it, and
// committed once it completes. An interrupted download rolls its key back
// to absent so a later sighting can retry.
//
// Commits are optimistic: the key is written to the durable dedup cache as
// soon as the subsystem accepts the request, and removed again only if the
// download is interrupted. This favors suppressing duplicates over
// guaranteeing that every committed key has a file on disk.
//
// Startup Gate:
//
// Candidates submitted before the durable cache has loaded are held until
// the load finishes. A failed load opens the gate with an empty cache
// rather than blocking forever.
//
// Usage:
//
//	orch := orchestrator.New(pool, cache, records, cfg.Download.QueueSize, log)
//	orch.Start(ctx)
//	defer orch.Stop()
//
//	orch.Submit(candidate)
//
// Stop waits for the subsystem's event feed to close, so shut the
// subsystem down before stopping the orchestrator.
package orchestrator
