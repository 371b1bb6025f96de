// Package store provides the durable key-value backing for dedup state and
// the download record log.
//
// The Store interface models a small persistent map with change
// notification. FileStore is the default implementation: all keys live in a
// single JSON document written atomically with a temp-file rename, and
// watchers receive a signal after every successful write.
//
// On top of Store the package builds two higher-level components:
//
//   - DedupCache holds the sets of committed URLs and payload fingerprints.
//     All mutations are serialized under one mutex and each mutation writes
//     the whole set back, so concurrent writers cannot lose entries.
//   - RecordLog is the append-only log of accepted downloads that the
//     gallery renders from.
//
// Both load lazily and fail open: a missing or unreadable document behaves
// as empty state.
package store
