package cappedstore

// oplog_keys.go implements oplog record identity: ids are a pure function
// of the entry's logical timestamp, never assigned by the store, so that
// ascending id order equals commit order.
//
// Oplog entry wire header:
//
//	magic    : 4 bytes  "OPL1"
//	seconds  : fixed32 little-endian
//	sequence : fixed32 little-endian
//	body     : opaque
//
// The id packs the timestamp as (seconds << 32) | sequence.

import (
	"bytes"
	"fmt"

	"github.com/ordkv/cappedstore/internal/encoding"
)

// Timestamp is the logical time of an oplog entry. The zero value is
// invalid as an identity.
type Timestamp struct {
	Seconds  uint32
	Sequence uint32
}

// IsZero returns true for the zero timestamp.
func (ts Timestamp) IsZero() bool {
	return ts.Seconds == 0 && ts.Sequence == 0
}

// String implements fmt.Stringer.
func (ts Timestamp) String() string {
	return fmt.Sprintf("%d:%d", ts.Seconds, ts.Sequence)
}

var oplogMagic = []byte("OPL1")

// OplogHeaderLen is the length of the oplog entry wire header.
const OplogHeaderLen = 12

// AppendOplogHeader appends the wire header for ts to dst and returns the
// extended slice. Producers prepend this to their entry body.
func AppendOplogHeader(dst []byte, ts Timestamp) []byte {
	dst = append(dst, oplogMagic...)
	dst = encoding.AppendFixed32(dst, ts.Seconds)
	return encoding.AppendFixed32(dst, ts.Sequence)
}

// IDForTimestamp derives the record id for a logical timestamp.
// Fails with ErrInvalidTimestamp for the zero timestamp and for timestamps
// whose packed form does not fit a valid id.
func IDForTimestamp(ts Timestamp) (RecordID, error) {
	if ts.IsZero() {
		return NullRecordID, fmt.Errorf("%w: zero timestamp", ErrInvalidTimestamp)
	}
	packed := uint64(ts.Seconds)<<32 | uint64(ts.Sequence)
	if packed > uint64(maxRecordID) {
		return NullRecordID, fmt.Errorf("%w: %s out of range", ErrInvalidTimestamp, ts)
	}
	return RecordID(packed), nil
}

// IDForPayload derives the record id from an oplog entry's wire header.
// Fails with ErrInvalidOplogPayload when the payload carries no extractable
// identity.
func IDForPayload(payload []byte) (RecordID, error) {
	if len(payload) < OplogHeaderLen {
		return NullRecordID, fmt.Errorf("%w: %d-byte payload", ErrInvalidOplogPayload, len(payload))
	}
	if !bytes.Equal(payload[:4], oplogMagic) {
		return NullRecordID, fmt.Errorf("%w: bad magic", ErrInvalidOplogPayload)
	}
	ts := Timestamp{
		Seconds:  encoding.DecodeFixed32(payload[4:]),
		Sequence: encoding.DecodeFixed32(payload[8:]),
	}
	id, err := IDForTimestamp(ts)
	if err != nil {
		return NullRecordID, fmt.Errorf("%w: %w", ErrInvalidOplogPayload, err)
	}
	return id, nil
}

// Timestamp unpacks the logical timestamp an oplog id was derived from.
func (id RecordID) Timestamp() Timestamp {
	return Timestamp{
		Seconds:  uint32(uint64(id) >> 32),
		Sequence: uint32(uint64(id)),
	}
}
