package cappedstore

// cursor.go implements the record cursor, including the visibility
// restriction applied to forward cursors of oplog stores.

import "fmt"

// RecordCursor iterates over the records of a store in a fixed direction,
// decoding each stored value as it goes.
//
// A restricted forward cursor additionally stops before the visibility
// boundary: it never yields a record whose id is at or past the tracker's
// lowest invisible id, re-evaluated at every positioning step so records
// that commit during a long scan still become visible before the scan
// reaches them.
type RecordCursor struct {
	store *RecordStore
	cur   Cursor

	// bound reports the current lowest invisible id; nil means the cursor
	// is unrestricted.
	bound func() RecordID

	id    RecordID
	data  []byte
	err   error
	valid bool
}

// restrict installs a visibility boundary on the cursor. Installed at
// construction time by the store; the boundary only applies from the next
// positioning step onward, so it is re-applied to the current position.
func (c *RecordCursor) restrict(bound func() RecordID) {
	c.bound = bound
	if c.valid {
		c.valid = false
		c.position()
	}
}

// position decodes the underlying cursor's current entry, applying the
// visibility boundary if one is installed.
func (c *RecordCursor) position() {
	c.valid = false
	c.id = NullRecordID
	c.data = nil
	if c.err != nil {
		return
	}

	if !c.cur.Valid() {
		c.err = c.cur.Err()
		return
	}

	id, err := RecordIDFromKey(c.cur.Key())
	if err != nil {
		c.err = err
		return
	}

	if c.bound != nil {
		// Keys ascend on restricted (forward) cursors, so reaching the
		// boundary ends the scan rather than skipping an entry.
		if b := c.bound(); !b.IsNull() && id >= b {
			return
		}
	}

	data, _, err := c.store.decode(c.cur.Value())
	if err != nil {
		c.err = fmt.Errorf("record %s: %w", id, err)
		return
	}

	c.id = id
	c.data = data
	c.valid = true
}

// Valid returns true if the cursor is positioned at a record.
func (c *RecordCursor) Valid() bool {
	return c.valid
}

// Next advances the cursor.
// REQUIRES: Valid()
func (c *RecordCursor) Next() {
	c.cur.Next()
	c.position()
}

// ID returns the record id at the current position.
// REQUIRES: Valid()
func (c *RecordCursor) ID() RecordID {
	return c.id
}

// Data returns the payload at the current position.
// REQUIRES: Valid()
func (c *RecordCursor) Data() []byte {
	return c.data
}

// Record returns the record at the current position.
// REQUIRES: Valid()
func (c *RecordCursor) Record() Record {
	return Record{ID: c.id, Data: c.data}
}

// Err returns any error that occurred during iteration.
func (c *RecordCursor) Err() error {
	return c.err
}

// Close releases the underlying dictionary cursor.
func (c *RecordCursor) Close() error {
	c.valid = false
	return c.cur.Close()
}
