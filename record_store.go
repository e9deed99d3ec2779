package cappedstore

// record_store.go implements the generic record store over an ordered
// dictionary: append-with-fresh-id inserts, point reads, deletes, range
// cursors, and size/count accounting through the SizeCache.
//
// Stored value envelope:
//
//	compression : 1 byte  (compression.Type)
//	checksum    : 1 byte  (checksum.Type)
//	rawLen      : varint  (uncompressed payload length)
//	digest      : fixed64 (only when checksum != none; over the body)
//	body        : payload, possibly compressed
//
// rawLen is in the header so deletes can account payload bytes without
// decompressing the body.

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ordkv/cappedstore/internal/checksum"
	"github.com/ordkv/cappedstore/internal/compression"
	"github.com/ordkv/cappedstore/internal/encoding"
	"github.com/ordkv/cappedstore/internal/logging"
)

// RecordStore is a generic record store over an ordered dictionary. Records
// are stored under monotonically increasing ids assigned at insert time.
// It is safe for concurrent use; blocking behavior is that of the
// underlying dictionary.
type RecordStore struct {
	dict  Dictionary
	sizes SizeCache
	ident string
	log   Logger

	comp  compression.Type
	cksum checksum.Type

	// nextID is the next id handed out by Insert.
	nextID atomic.Int64

	m *storeMetrics
}

// NewRecordStore opens a record store over dict. The dictionary is shared,
// not owned; its lifetime must outlive the store. The id counter resumes
// after the largest existing record.
func NewRecordStore(dict Dictionary, sizes SizeCache, opts Options) (*RecordStore, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	cksum := checksum.TypeXXH3
	if opts.DisableChecksum {
		cksum = checksum.TypeNone
	}
	rs := &RecordStore{
		dict:  dict,
		sizes: sizes,
		ident: opts.Ident,
		log:   opts.Logger,
		comp:  opts.Compression,
		cksum: cksum,
		m:     newStoreMetrics(opts.Ident),
	}

	cur, err := dict.NewCursor(nil, nil, Backward)
	if err != nil {
		return nil, fmt.Errorf("cappedstore: opening store %q: %w", rs.ident, err)
	}
	defer func() { _ = cur.Close() }()
	next := int64(1)
	if cur.Valid() {
		last, err := RecordIDFromKey(cur.Key())
		if err != nil {
			return nil, fmt.Errorf("cappedstore: opening store %q: %w", rs.ident, err)
		}
		next = int64(last) + 1
	}
	rs.nextID.Store(next)

	rs.log.Debugf(logging.NSStore+"opened store %q, next id %d", rs.ident, next)
	return rs, nil
}

// Ident returns the store's identifier.
func (rs *RecordStore) Ident() string {
	return rs.ident
}

// DataSize returns the tracked total payload bytes.
func (rs *RecordStore) DataSize() int64 {
	return rs.sizes.DataSize(rs.ident)
}

// NumRecords returns the tracked record count.
func (rs *RecordStore) NumRecords() int64 {
	return rs.sizes.NumRecords(rs.ident)
}

// Insert stores payload under a fresh id and returns it.
func (rs *RecordStore) Insert(txn Transaction, payload []byte) (RecordID, error) {
	id := RecordID(rs.nextID.Add(1) - 1)
	if err := rs.insertAt(txn, id, payload); err != nil {
		return NullRecordID, err
	}
	return id, nil
}

// InsertFromWriter materializes w and follows the Insert contract.
func (rs *RecordStore) InsertFromWriter(txn Transaction, w io.WriterTo) (RecordID, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return NullRecordID, fmt.Errorf("cappedstore: materializing writer: %w", err)
	}
	return rs.Insert(txn, buf.Bytes())
}

// insertAt writes payload under an explicit id within txn's scope.
func (rs *RecordStore) insertAt(txn Transaction, id RecordID, payload []byte) error {
	value, err := rs.encode(payload)
	if err != nil {
		return err
	}
	if err := rs.dict.Put(txn, id.Key(), value); err != nil {
		return fmt.Errorf("cappedstore: inserting %s: %w", id, err)
	}
	rs.applySizeDelta(txn, int64(len(payload)), 1)
	rs.m.inserts.Inc()
	return nil
}

// Get returns the payload stored under id.
func (rs *RecordStore) Get(txn Transaction, id RecordID) ([]byte, error) {
	value, err := rs.dict.Get(txn, id.Key())
	if err != nil {
		return nil, err
	}
	payload, _, err := rs.decode(value)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}
	return payload, nil
}

// Update replaces the payload stored under id.
func (rs *RecordStore) Update(txn Transaction, id RecordID, payload []byte) error {
	old, err := rs.dict.Get(txn, id.Key())
	if err != nil {
		return err
	}
	oldLen, err := rs.decodeRawLen(old)
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	value, err := rs.encode(payload)
	if err != nil {
		return err
	}
	if err := rs.dict.Put(txn, id.Key(), value); err != nil {
		return fmt.Errorf("cappedstore: updating %s: %w", id, err)
	}
	rs.applySizeDelta(txn, int64(len(payload))-oldLen, 0)
	return nil
}

// Delete removes the record stored under id.
func (rs *RecordStore) Delete(txn Transaction, id RecordID) error {
	value, err := rs.dict.Get(txn, id.Key())
	if err != nil {
		return err
	}
	rawLen, err := rs.decodeRawLen(value)
	if err != nil {
		return fmt.Errorf("record %s: %w", id, err)
	}
	if err := rs.dict.Delete(txn, id.Key()); err != nil {
		return fmt.Errorf("cappedstore: deleting %s: %w", id, err)
	}
	rs.applySizeDelta(txn, -rawLen, -1)
	rs.m.deletes.Inc()
	return nil
}

// Cursor opens a record cursor starting at start (inclusive) in the given
// direction. A null start means the first or last record respectively.
// Cursors observe committed state as of this call.
func (rs *RecordStore) Cursor(txn Transaction, start RecordID, dir Direction) (*RecordCursor, error) {
	var startKey []byte
	if !start.IsNull() {
		startKey = start.Key()
	}
	cur, err := rs.dict.NewCursor(txn, startKey, dir)
	if err != nil {
		return nil, fmt.Errorf("cappedstore: opening cursor on %q: %w", rs.ident, err)
	}
	rc := &RecordCursor{store: rs, cur: cur}
	rc.position()
	return rc, nil
}

// AppendStats reports the store's statistics into sink. Byte figures are
// divided by scale (values < 1 are treated as 1).
func (rs *RecordStore) AppendStats(sink StatsSink, scale int64) {
	if scale < 1 {
		scale = 1
	}
	sink.Append("ident", rs.ident)
	sink.Append("size", rs.DataSize()/scale)
	sink.Append("count", rs.NumRecords())
}

// applySizeDelta updates the size cache immediately and registers a
// compensating hook so an abort rolls the accounting back.
func (rs *RecordStore) applySizeDelta(txn Transaction, deltaBytes, deltaRecords int64) {
	rs.sizes.Apply(rs.ident, deltaBytes, deltaRecords)
	txn.OnComplete(func(committed bool) {
		if !committed {
			rs.sizes.Apply(rs.ident, -deltaBytes, -deltaRecords)
		}
	})
}

// encode builds the stored value envelope for payload.
func (rs *RecordStore) encode(payload []byte) ([]byte, error) {
	body, err := compression.Compress(rs.comp, payload)
	if err != nil {
		return nil, fmt.Errorf("cappedstore: compressing payload: %w", err)
	}

	value := make([]byte, 0, 2+encoding.MaxVarint64Length+8+len(body))
	value = append(value, byte(rs.comp), byte(rs.cksum))
	value = encoding.AppendVarint64(value, uint64(len(payload)))
	if rs.cksum != checksum.TypeNone {
		value = encoding.AppendFixed64(value, checksum.Sum(body))
	}
	return append(value, body...), nil
}

// decode unpacks a stored value envelope, verifying the checksum and
// decompressing the body. Returns the payload and its raw length.
func (rs *RecordStore) decode(value []byte) ([]byte, int64, error) {
	comp, cksum, rawLen, rest, err := decodeEnvelopeHeader(value)
	if err != nil {
		return nil, 0, err
	}

	if cksum != checksum.TypeNone {
		if len(rest) < 8 {
			return nil, 0, fmt.Errorf("%w: truncated digest", ErrCorruptRecord)
		}
		digest := encoding.DecodeFixed64(rest)
		rest = rest[8:]
		if err := checksum.Verify(cksum, rest, digest); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
	}

	payload, err := compression.Decompress(comp, rest)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if int64(len(payload)) != rawLen {
		return nil, 0, fmt.Errorf("%w: length %d, header says %d", ErrCorruptRecord, len(payload), rawLen)
	}
	return payload, rawLen, nil
}

// decodeRawLen reads only the envelope header, for size accounting.
func (rs *RecordStore) decodeRawLen(value []byte) (int64, error) {
	_, _, rawLen, _, err := decodeEnvelopeHeader(value)
	return rawLen, err
}

func decodeEnvelopeHeader(value []byte) (compression.Type, checksum.Type, int64, []byte, error) {
	if len(value) < 3 {
		return 0, 0, 0, nil, fmt.Errorf("%w: %d-byte value", ErrCorruptRecord, len(value))
	}
	comp := compression.Type(value[0])
	cksum := checksum.Type(value[1])
	if !comp.IsSupported() || !cksum.IsValid() {
		return 0, 0, 0, nil, fmt.Errorf("%w: bad envelope header", ErrCorruptRecord)
	}
	rawLen, n, err := encoding.DecodeVarint64(value[2:])
	if err != nil {
		return 0, 0, 0, nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return comp, cksum, int64(rawLen), value[2+n:], nil
}
