package cappedstore

// dictionary.go defines the ordered key-value dictionary capability the
// record store is built on. Implementations provide point operations,
// range cursors, and transactional scopes with completion signals.
//
// NewMemoryDictionary returns the in-memory reference implementation; any
// ordered transactional engine can be adapted behind these interfaces.

// Direction selects the iteration direction of a cursor.
type Direction int

const (
	// Forward iterates in ascending key order.
	Forward Direction = iota
	// Backward iterates in descending key order.
	Backward
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "unknown"
	}
}

// Transaction is a group of dictionary operations that commits or aborts
// atomically.
//
// OnComplete registers a completion hook fired exactly once when the
// transaction's outcome is known, with committed=true on Commit and
// committed=false on Abort. Hooks fire in commit order across transactions.
// Registering a hook after completion is a programming error and may panic.
type Transaction interface {
	// Commit atomically applies the transaction's writes. Hooks fire with
	// committed=true. Commit on an already-completed transaction panics.
	Commit() error

	// Abort discards the transaction's writes. Hooks fire with
	// committed=false. Abort after completion is a no-op.
	Abort()

	// OnComplete registers fn to run when the transaction completes.
	OnComplete(fn func(committed bool))
}

// Cursor iterates over dictionary entries in a fixed direction. A cursor
// observes the committed state as of its creation; writes buffered in any
// open transaction are not visible to it.
type Cursor interface {
	// Valid returns true if the cursor is positioned at an entry.
	Valid() bool

	// Next advances the cursor in its direction.
	// REQUIRES: Valid()
	Next()

	// Key returns the key at the current position.
	// REQUIRES: Valid()
	Key() []byte

	// Value returns the value at the current position.
	// REQUIRES: Valid()
	Value() []byte

	// Err returns any error that occurred during iteration.
	Err() error

	// Close releases resources associated with the cursor.
	Close() error
}

// Dictionary is an ordered key-value store with transactional scopes.
//
// Get returns ErrNotFound (possibly wrapped) when the key is absent; reads
// within a transaction observe that transaction's buffered writes. Delete of
// an absent key is a no-op. Cursors start at the first key >= start
// (Forward) or the last key <= start (Backward); a nil start means the first
// or last key respectively.
type Dictionary interface {
	// Begin opens a new transaction.
	Begin() Transaction

	// Get returns the value stored under key.
	Get(txn Transaction, key []byte) ([]byte, error)

	// Put stores value under key, overwriting any previous value.
	Put(txn Transaction, key, value []byte) error

	// Delete removes the entry stored under key, if any.
	Delete(txn Transaction, key []byte) error

	// NewCursor opens a cursor positioned at start in the given direction.
	NewCursor(txn Transaction, start []byte, dir Direction) (Cursor, error)
}
