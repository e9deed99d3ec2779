package cappedstore

// record_id.go defines the record identity type and its key encoding.

import (
	"fmt"
	"math"

	"github.com/ordkv/cappedstore/internal/encoding"
)

// RecordID is the totally ordered identity of a stored record.
//
// Ids are strictly positive. The zero value is NullRecordID, the "no record"
// sentinel. For regular stores ids are assigned from a per-store counter; for
// oplog stores they are derived from the entry's timestamp (see IDForPayload
// and IDForTimestamp) and are never assigned by the store.
type RecordID int64

// NullRecordID is the "no record" sentinel.
const NullRecordID RecordID = 0

// maxRecordID is the largest representable id.
const maxRecordID RecordID = math.MaxInt64

// IsNull returns true if the id is the null sentinel (or otherwise invalid).
func (id RecordID) IsNull() bool {
	return id <= 0
}

// Key returns the dictionary key for the id: a big-endian fixed64, so that
// bytewise key order equals numeric id order.
func (id RecordID) Key() []byte {
	return encoding.AppendKey64(nil, uint64(id))
}

// String implements fmt.Stringer.
func (id RecordID) String() string {
	if id.IsNull() {
		return "RecordID(null)"
	}
	return fmt.Sprintf("RecordID(%d)", int64(id))
}

// RecordIDFromKey decodes a dictionary key back into a RecordID.
func RecordIDFromKey(key []byte) (RecordID, error) {
	if len(key) != 8 {
		return NullRecordID, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}
	v := encoding.DecodeKey64(key)
	if v == 0 || v > uint64(maxRecordID) {
		return NullRecordID, fmt.Errorf("%w: value %d out of range", ErrInvalidKey, v)
	}
	return RecordID(v), nil
}

// Record is a payload stored under a RecordID.
type Record struct {
	ID   RecordID
	Data []byte
}
