package cappedstore

// visibility.go implements the trackers that hide just-inserted records from
// forward scans until their writing transactions resolve.

import (
	"sync"

	"github.com/google/btree"
)

// VisibilityTracker tracks record ids registered as inserted but not yet
// known committed, and exposes the boundary below which everything is safe
// to read.
//
// LowestInvisible is monotonically non-decreasing from any single
// observer's viewpoint: an id reported visible is never hidden again.
type VisibilityTracker interface {
	// AddUncommitted registers id as pending. Called synchronously at
	// insert/registration time, strictly before txn's outcome is known.
	AddUncommitted(txn Transaction, id RecordID)

	// LowestInvisible returns the smallest pending id, or NullRecordID
	// when nothing is pending.
	LowestInvisible() RecordID

	// RestrictForward installs the tracker's visibility boundary on a
	// forward cursor.
	RestrictForward(c *RecordCursor)
}

// newVisibilityTracker returns the tracker variant for the store mode.
func newVisibilityTracker(oplog bool) VisibilityTracker {
	if oplog {
		return newOplogTracker()
	}
	return plainTracker{}
}

// plainTracker is the variant for ordinary capped stores. Correctness there
// rests entirely on the surrounding transaction isolation, so every
// operation is trivial and the boundary is always "nothing pending".
type plainTracker struct{}

// AddUncommitted implements VisibilityTracker.
func (plainTracker) AddUncommitted(txn Transaction, id RecordID) {}

// LowestInvisible implements VisibilityTracker.
func (plainTracker) LowestInvisible() RecordID { return NullRecordID }

// RestrictForward implements VisibilityTracker.
func (plainTracker) RestrictForward(c *RecordCursor) {}

// oplogTracker is the variant for replication logs: many writers reserve
// ids before commit, many tailing readers must never observe an entry whose
// writer might still abort.
type oplogTracker struct {
	mu      sync.Mutex
	pending *btree.BTreeG[RecordID]
}

func newOplogTracker() *oplogTracker {
	return &oplogTracker{
		pending: btree.NewG(8, func(a, b RecordID) bool { return a < b }),
	}
}

// AddUncommitted implements VisibilityTracker. The id leaves the pending
// set exactly once, when txn's completion signal fires; aborted ids never
// become visible because the aborted write never becomes readable.
func (t *oplogTracker) AddUncommitted(txn Transaction, id RecordID) {
	t.mu.Lock()
	t.pending.ReplaceOrInsert(id)
	t.mu.Unlock()

	txn.OnComplete(func(committed bool) {
		t.resolve(id)
	})
}

func (t *oplogTracker) resolve(id RecordID) {
	t.mu.Lock()
	t.pending.Delete(id)
	t.mu.Unlock()
}

// LowestInvisible implements VisibilityTracker.
func (t *oplogTracker) LowestInvisible() RecordID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if min, ok := t.pending.Min(); ok {
		return min
	}
	return NullRecordID
}

// RestrictForward implements VisibilityTracker. The boundary is evaluated
// dynamically during the scan, not captured at installation.
func (t *oplogTracker) RestrictForward(c *RecordCursor) {
	c.restrict(t.LowestInvisible)
}
