package cappedstore

// options.go defines the configuration surface for record stores.

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ordkv/cappedstore/internal/compression"
	"github.com/ordkv/cappedstore/internal/logging"
)

// Logger is an alias for the logging.Logger interface.
// See the internal/logging package for the default implementations.
type Logger = logging.Logger

// CompressionType is an alias for the compression.Type enum.
type CompressionType = compression.Type

// Compression types for Options.Compression.
const (
	// NoCompression stores payloads uncompressed.
	NoCompression = compression.None
	// SnappyCompression uses Google Snappy.
	SnappyCompression = compression.Snappy
	// LZ4Compression uses LZ4 frame compression.
	LZ4Compression = compression.LZ4
	// ZstdCompression uses Zstandard.
	ZstdCompression = compression.Zstd
)

// DefaultCappedMaxSize is the capped size ceiling applied when a capped
// store is configured without one.
const DefaultCappedMaxSize = 4096

// DeleteCallback is notified before a capped record is physically removed.
// A non-nil error vetoes the deletion: the record remains present and the
// eviction pass is aborted with ErrDeleteVetoed.
type DeleteCallback interface {
	AboutToDeleteCapped(txn Transaction, id RecordID) error
}

// Options configures a record store. The zero value is usable: an ident is
// generated, capped stores get DefaultCappedMaxSize, payloads are stored
// uncompressed with checksums on.
type Options struct {
	// Ident identifies the store in the size cache and in stats.
	// A random ident is generated when empty.
	Ident string

	// MaxSizeBytes is the capped total payload ceiling. Values <= 0 mean
	// DefaultCappedMaxSize. Ignored by plain (non-capped) stores.
	MaxSizeBytes int64

	// MaxDocs is the capped record-count ceiling. Zero means unlimited.
	MaxDocs int64

	// Oplog marks the store as a replication log: record ids are derived
	// from entry timestamps and uncommitted entries are hidden from forward
	// scans. Resolved by the caller from the collection's identity, fixed
	// at construction.
	Oplog bool

	// Compression is applied to payloads at rest.
	Compression CompressionType

	// DisableChecksum turns off payload checksums.
	DisableChecksum bool

	// DeleteCallback, when set, is invoked before every capped eviction.
	// The store does not own the callback.
	DeleteCallback DeleteCallback

	// Logger receives store diagnostics. Defaults to a WARN-level logger.
	Logger Logger
}

// withDefaults returns a copy of o with unset fields defaulted.
func (o Options) withDefaults() Options {
	if o.Ident == "" {
		o.Ident = uuid.NewString()
	}
	if o.MaxSizeBytes <= 0 {
		o.MaxSizeBytes = DefaultCappedMaxSize
	}
	o.Logger = logging.OrDefault(o.Logger)
	return o
}

// validate rejects configurations the store cannot honor.
func (o Options) validate() error {
	if !o.Compression.IsSupported() {
		return fmt.Errorf("cappedstore: unsupported compression type %s", o.Compression)
	}
	if o.MaxDocs < 0 {
		return fmt.Errorf("cappedstore: negative MaxDocs %d", o.MaxDocs)
	}
	return nil
}
