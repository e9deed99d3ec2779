package cappedstore

// errors.go defines the sentinel errors returned by the record store.
// Use errors.Is to classify; storage errors from the underlying dictionary
// are wrapped with %w and never swallowed.

import "errors"

var (
	// ErrRecordTooLarge is returned when a single record exceeds the
	// configured capped max size. The store is not mutated.
	ErrRecordTooLarge = errors.New("cappedstore: record exceeds capped max size")

	// ErrInvalidOplogPayload is returned when an oplog payload carries no
	// extractable timestamp. The store is not mutated.
	ErrInvalidOplogPayload = errors.New("cappedstore: oplog payload carries no valid timestamp")

	// ErrInvalidTimestamp is returned when a timestamp cannot be encoded
	// as a valid record id.
	ErrInvalidTimestamp = errors.New("cappedstore: timestamp cannot be encoded as a record id")

	// ErrDeleteVetoed is returned when the delete-notification callback
	// rejects a pending capped deletion. The record remains present and the
	// surrounding eviction pass is aborted.
	ErrDeleteVetoed = errors.New("cappedstore: capped delete vetoed by callback")

	// ErrNotFound is returned when a record id has no stored record.
	ErrNotFound = errors.New("cappedstore: record not found")

	// ErrInvalidKey is returned when a dictionary key cannot be decoded
	// into a record id.
	ErrInvalidKey = errors.New("cappedstore: malformed record key")

	// ErrCorruptRecord is returned when a stored value fails envelope
	// decoding or checksum verification.
	ErrCorruptRecord = errors.New("cappedstore: corrupt record value")

	// ErrStoreClosed is returned by operations on a closed size storer.
	ErrStoreClosed = errors.New("cappedstore: store is closed")
)
