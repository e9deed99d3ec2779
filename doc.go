// Package cappedstore implements a size/count-bounded record store layered
// on an ordered key-value dictionary, usable both for capped collections
// and, in oplog mode, for an append-only replication log.
//
// # Bounded stores
//
// A CappedRecordStore enforces a byte ceiling (and optionally a record
// count ceiling) by evicting the oldest surviving records immediately after
// any over-limit insert. Eviction is exclusive and best-effort: exactly one
// caller runs the pass at a time, concurrent over-cap callers skip it, and
// the cap is restored eventually by some caller's successful pass.
//
// # Oplog mode
//
// In oplog mode record identity is derived from entry content or from a
// logical timestamp, never assigned by the store, and a visibility tracker
// hides entries whose writing transactions might still abort: forward
// cursors never yield an id at or past the tracker's lowest invisible id,
// and tailing readers resume from VisibleStartingPosition.
//
// # Collaborators
//
// The store consumes, and does not implement, an ordered transactional
// Dictionary (NewMemoryDictionary provides an in-memory reference engine),
// a SizeCache for live size/count accounting (see SizeStorer), and an
// optional DeleteCallback notified before each capped eviction.
package cappedstore
