package cappedstore

// memory_dictionary.go implements the in-memory reference Dictionary.
//
// Entries live in a btree keyed by raw bytes. Writes are buffered per
// transaction and applied to the tree on Commit under a commit mutex, which
// also defines the order in which completion hooks fire. Cursors materialize
// their key range at creation time, so concurrent writers and the eviction
// pass never invalidate an open cursor.

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"
)

// memEntry is a key-value pair stored in the tree.
type memEntry struct {
	key   []byte
	value []byte
}

func memEntryLess(a, b memEntry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// memoryDictionary is the btree-backed Dictionary implementation.
type memoryDictionary struct {
	// commitMu serializes Commit so completion hooks observe commit order.
	commitMu sync.Mutex

	mu   sync.RWMutex // guards tree
	tree *btree.BTreeG[memEntry]
}

// NewMemoryDictionary returns an empty in-memory ordered dictionary.
// It is safe for concurrent use.
func NewMemoryDictionary() Dictionary {
	return &memoryDictionary{
		tree: btree.NewG(32, memEntryLess),
	}
}

var errWriteOutsideTxn = errors.New("cappedstore: write outside transaction")

// Begin implements Dictionary.
func (d *memoryDictionary) Begin() Transaction {
	return &memTxn{dict: d}
}

// Get implements Dictionary. With a non-nil transaction, buffered writes of
// that transaction are visible; otherwise committed state is read.
func (d *memoryDictionary) Get(txn Transaction, key []byte) ([]byte, error) {
	if txn != nil {
		t, err := d.own(txn)
		if err != nil {
			return nil, err
		}
		if value, deleted, ok := t.lookup(key); ok {
			if deleted {
				return nil, ErrNotFound
			}
			return value, nil
		}
	}

	d.mu.RLock()
	entry, ok := d.tree.Get(memEntry{key: key})
	d.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Put implements Dictionary.
func (d *memoryDictionary) Put(txn Transaction, key, value []byte) error {
	t, err := d.own(txn)
	if err != nil {
		return err
	}
	return t.buffer(memWrite{key: bytes.Clone(key), value: bytes.Clone(value)})
}

// Delete implements Dictionary.
func (d *memoryDictionary) Delete(txn Transaction, key []byte) error {
	t, err := d.own(txn)
	if err != nil {
		return err
	}
	return t.buffer(memWrite{key: bytes.Clone(key), tombstone: true})
}

// NewCursor implements Dictionary. The cursor observes committed state as of
// this call.
func (d *memoryDictionary) NewCursor(txn Transaction, start []byte, dir Direction) (Cursor, error) {
	c := &memCursor{}
	collect := func(e memEntry) bool {
		c.entries = append(c.entries, e)
		return true
	}

	d.mu.RLock()
	switch {
	case dir == Forward && start == nil:
		d.tree.Ascend(collect)
	case dir == Forward:
		d.tree.AscendGreaterOrEqual(memEntry{key: start}, collect)
	case start == nil:
		d.tree.Descend(collect)
	default:
		d.tree.DescendLessOrEqual(memEntry{key: start}, collect)
	}
	d.mu.RUnlock()
	return c, nil
}

// own checks that txn belongs to this dictionary and is still active.
func (d *memoryDictionary) own(txn Transaction) (*memTxn, error) {
	if txn == nil {
		return nil, errWriteOutsideTxn
	}
	t, ok := txn.(*memTxn)
	if !ok || t.dict != d {
		return nil, fmt.Errorf("cappedstore: transaction belongs to a different dictionary")
	}
	return t, nil
}

// memWrite is one buffered operation.
type memWrite struct {
	key       []byte
	value     []byte
	tombstone bool
}

const (
	txnActive = iota
	txnCommitted
	txnAborted
)

// memTxn buffers writes until Commit applies them to the tree.
type memTxn struct {
	dict *memoryDictionary

	mu     sync.Mutex
	writes []memWrite
	hooks  []func(committed bool)
	state  int
}

func (t *memTxn) buffer(w memWrite) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txnActive {
		return errors.New("cappedstore: transaction already completed")
	}
	t.writes = append(t.writes, w)
	return nil
}

// lookup reports the transaction-local view of key: the last buffered write
// wins. ok is false when the transaction has no write for key.
func (t *memTxn) lookup(key []byte) (value []byte, deleted bool, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.writes) - 1; i >= 0; i-- {
		if bytes.Equal(t.writes[i].key, key) {
			return t.writes[i].value, t.writes[i].tombstone, true
		}
	}
	return nil, false, false
}

// Commit implements Transaction.
func (t *memTxn) Commit() error {
	t.dict.commitMu.Lock()
	defer t.dict.commitMu.Unlock()

	t.mu.Lock()
	if t.state != txnActive {
		t.mu.Unlock()
		panic("cappedstore: Commit on completed transaction")
	}
	writes := t.writes
	t.state = txnCommitted
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	d := t.dict
	d.mu.Lock()
	for _, w := range writes {
		if w.tombstone {
			d.tree.Delete(memEntry{key: w.key})
		} else {
			d.tree.ReplaceOrInsert(memEntry{key: w.key, value: w.value})
		}
	}
	d.mu.Unlock()

	// Still under commitMu: hooks across transactions fire in commit order.
	for _, fn := range hooks {
		fn(true)
	}
	return nil
}

// Abort implements Transaction. Abort after completion is a no-op.
func (t *memTxn) Abort() {
	t.mu.Lock()
	if t.state != txnActive {
		t.mu.Unlock()
		return
	}
	t.state = txnAborted
	t.writes = nil
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(false)
	}
}

// OnComplete implements Transaction.
func (t *memTxn) OnComplete(fn func(committed bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txnActive {
		panic("cappedstore: OnComplete on completed transaction")
	}
	t.hooks = append(t.hooks, fn)
}

// memCursor walks a materialized key range.
type memCursor struct {
	entries []memEntry
	pos     int
	closed  bool
}

// Valid implements Cursor.
func (c *memCursor) Valid() bool {
	return !c.closed && c.pos < len(c.entries)
}

// Next implements Cursor.
func (c *memCursor) Next() {
	if !c.closed {
		c.pos++
	}
}

// Key implements Cursor.
func (c *memCursor) Key() []byte {
	return c.entries[c.pos].key
}

// Value implements Cursor.
func (c *memCursor) Value() []byte {
	return c.entries[c.pos].value
}

// Err implements Cursor.
func (c *memCursor) Err() error {
	return nil
}

// Close implements Cursor.
func (c *memCursor) Close() error {
	c.closed = true
	c.entries = nil
	return nil
}
