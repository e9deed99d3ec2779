package cappedstore

// capped_record_store.go implements the size/count-bounded record store:
// capacity checks, oldest-first eviction, delete notification, and the
// oplog insert/lookup paths.

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/ordkv/cappedstore/internal/logging"
)

// CappedRecordStore bounds a record store by total payload bytes and,
// optionally, by record count. Over-limit inserts trigger an eviction pass
// that removes the oldest surviving records.
//
// Eviction is best-effort per call: concurrent over-cap callers skip the
// pass when another caller already holds it, so the cap is restored
// eventually by some caller's successful pass, not necessarily at every
// instant.
type CappedRecordStore struct {
	*RecordStore

	maxSizeBytes int64
	maxDocs      int64
	oplog        bool

	tracker  VisibilityTracker
	deleteCB DeleteCallback

	// evictMu serializes the eviction pass; acquired with TryLock only.
	evictMu sync.Mutex
}

// NewCappedRecordStore opens a capped store over dict. Caps and mode are
// immutable for the store's lifetime.
func NewCappedRecordStore(dict Dictionary, sizes SizeCache, opts Options) (*CappedRecordStore, error) {
	opts = opts.withDefaults()
	base, err := NewRecordStore(dict, sizes, opts)
	if err != nil {
		return nil, err
	}
	return &CappedRecordStore{
		RecordStore:  base,
		maxSizeBytes: opts.MaxSizeBytes,
		maxDocs:      opts.MaxDocs,
		oplog:        opts.Oplog,
		tracker:      newVisibilityTracker(opts.Oplog),
		deleteCB:     opts.DeleteCallback,
	}, nil
}

// MaxSizeBytes returns the configured size ceiling.
func (cs *CappedRecordStore) MaxSizeBytes() int64 { return cs.maxSizeBytes }

// MaxDocs returns the configured count ceiling, zero meaning unlimited.
func (cs *CappedRecordStore) MaxDocs() int64 { return cs.maxDocs }

// IsOplog returns true for replication-log stores.
func (cs *CappedRecordStore) IsOplog() bool { return cs.oplog }

// LowestInvisible returns the store's current visibility boundary.
func (cs *CappedRecordStore) LowestInvisible() RecordID {
	return cs.tracker.LowestInvisible()
}

// Insert stores payload and returns its id. A payload larger than the size
// ceiling is rejected with ErrRecordTooLarge before any mutation. In oplog
// mode the id is derived from the payload; otherwise a fresh id is
// assigned. The insert then registers the id with the visibility tracker
// and runs a best-effort eviction pass.
func (cs *CappedRecordStore) Insert(txn Transaction, payload []byte) (RecordID, error) {
	if int64(len(payload)) > cs.maxSizeBytes {
		return NullRecordID, fmt.Errorf("%w: %d bytes, cap %d", ErrRecordTooLarge, len(payload), cs.maxSizeBytes)
	}

	var id RecordID
	if cs.oplog {
		var err error
		id, err = IDForPayload(payload)
		if err != nil {
			return NullRecordID, err
		}
		if err := cs.insertAt(txn, id, payload); err != nil {
			return NullRecordID, err
		}
	} else {
		var err error
		id, err = cs.RecordStore.Insert(txn, payload)
		if err != nil {
			return NullRecordID, err
		}
	}

	cs.tracker.AddUncommitted(txn, id)

	if err := cs.DeleteAsNeeded(txn); err != nil {
		return NullRecordID, err
	}
	return id, nil
}

// InsertFromWriter materializes w and follows the Insert contract.
func (cs *CappedRecordStore) InsertFromWriter(txn Transaction, w io.WriterTo) (RecordID, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return NullRecordID, fmt.Errorf("cappedstore: materializing writer: %w", err)
	}
	return cs.Insert(txn, buf.Bytes())
}

// NeedsDelete reports whether the store is over either configured cap.
// Pure predicate over live accounting; no side effects.
func (cs *CappedRecordStore) NeedsDelete() bool {
	if cs.DataSize() > cs.maxSizeBytes {
		// .. too many bytes
		return true
	}
	if cs.maxDocs > 0 && cs.NumRecords() > cs.maxDocs {
		// .. too many records
		return true
	}
	return false
}

// DeleteAsNeeded evicts oldest records until the store is back under its
// caps. Only one pass runs per store at a time; when another caller holds
// the pass this returns immediately without error. A callback veto or
// storage error aborts the remaining pass; records already evicted stay
// evicted.
func (cs *CappedRecordStore) DeleteAsNeeded(txn Transaction) error {
	if !cs.NeedsDelete() {
		// nothing to do
		return nil
	}

	// Only one caller evicts at a time; the rest rely on a future pass.
	if !cs.evictMu.TryLock() {
		cs.m.evictsSkipped.Inc()
		return nil
	}
	defer cs.evictMu.Unlock()

	cur, err := cs.Cursor(txn, NullRecordID, Forward)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	// Delete oldest-first while over-full and the cursor has more. The pass
	// ends when under the caps or the cursor is exhausted, so a cap smaller
	// than a single record still terminates.
	evicted := 0
	for cs.NeedsDelete() && cur.Valid() {
		oldest := cur.ID()
		if err := cs.DeleteRecord(txn, oldest); err != nil {
			return err
		}
		evicted++
		cs.m.evicted.Inc()
		cur.Next()
	}
	if err := cur.Err(); err != nil {
		return err
	}

	if evicted > 0 {
		cs.log.Debugf(logging.NSEvict+"store %q evicted %d records", cs.ident, evicted)
	}
	return nil
}

// DeleteRecord removes one record, notifying the delete callback first. A
// callback failure aborts the deletion with ErrDeleteVetoed and the record
// remains present.
func (cs *CappedRecordStore) DeleteRecord(txn Transaction, id RecordID) error {
	if cs.deleteCB != nil {
		// Higher layers must observe the id before it disappears.
		if err := cs.deleteCB.AboutToDeleteCapped(txn, id); err != nil {
			cs.m.deleteVetoes.Inc()
			return fmt.Errorf("%w: %s: %w", ErrDeleteVetoed, id, err)
		}
	}
	return cs.RecordStore.Delete(txn, id)
}

// TruncateAfter deletes every record from end to the newest, each in its
// own committed transaction, rewinding the store to a known boundary. When
// inclusive is false, end itself survives. A crash mid-operation leaves a
// prefix of the truncation applied and the rest untouched.
//
// Not performance-sensitive; meant for maintenance and tests.
func (cs *CappedRecordStore) TruncateAfter(end RecordID, inclusive bool) error {
	cur, err := cs.Cursor(nil, end, Forward)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	for ; cur.Valid(); cur.Next() {
		id := cur.ID()
		if !inclusive && id == end {
			continue
		}
		txn := cs.dict.Begin()
		if err := cs.DeleteRecord(txn, id); err != nil {
			txn.Abort()
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
	}
	return cur.Err()
}

// RegisterOplogEntry derives the id for a logical timestamp and registers
// it with the visibility tracker ahead of the physical write. Oplog stores
// only.
func (cs *CappedRecordStore) RegisterOplogEntry(txn Transaction, ts Timestamp) error {
	if !cs.oplog {
		return fmt.Errorf("cappedstore: store %q is not an oplog", cs.ident)
	}
	id, err := IDForTimestamp(ts)
	if err != nil {
		return err
	}
	cs.tracker.AddUncommitted(txn, id)
	return nil
}

// VisibleStartingPosition returns the largest id p such that p <= from and
// p is strictly below the visibility boundary, or NullRecordID when no such
// record exists. Tailing readers resume from it so they never start on a
// not-yet-committed position. Oplog stores only.
func (cs *CappedRecordStore) VisibleStartingPosition(from RecordID) (RecordID, error) {
	lowest := cs.tracker.LowestInvisible()

	// Backward scans are unrestricted: the search runs through the full key
	// range, including provisionally pending identities.
	cur, err := cs.RecordStore.Cursor(nil, from, Backward)
	if err != nil {
		return NullRecordID, err
	}
	defer func() { _ = cur.Close() }()

	for ; cur.Valid(); cur.Next() {
		id := cur.ID()
		if id <= from && (lowest.IsNull() || id < lowest) {
			return id, nil
		}
	}
	return NullRecordID, cur.Err()
}

// Cursor opens a record cursor. Forward cursors carry the visibility
// tracker's restriction; backward cursors are unrestricted.
func (cs *CappedRecordStore) Cursor(txn Transaction, start RecordID, dir Direction) (*RecordCursor, error) {
	cur, err := cs.RecordStore.Cursor(txn, start, dir)
	if err != nil {
		return nil, err
	}
	if dir == Forward {
		cs.tracker.RestrictForward(cur)
	}
	return cur, nil
}

// AppendStats reports capped configuration followed by the base store's
// statistics. Pure; no interaction with eviction state.
func (cs *CappedRecordStore) AppendStats(sink StatsSink, scale int64) {
	if scale < 1 {
		scale = 1
	}
	sink.Append("capped", true)
	sink.Append("max", cs.maxDocs)
	sink.Append("maxSize", cs.maxSizeBytes/scale)
	cs.RecordStore.AppendStats(sink, scale)
}
