package cappedstore

// size_storer.go implements the size/count cache consulted by capacity
// checks.
//
// Record stores never recompute their size by scanning. Each operation
// applies its delta to the cache immediately so NeedsDelete sees live
// accounting within the operation's own transaction, and registers a
// compensating hook that undoes the delta if the transaction aborts.
//
// The cache is persisted into a metadata dictionary: one entry per store
// ident holding varint-encoded data size and record count, written by a
// background flush loop and a final flush on Close. Counts restored after a
// crash are approximate by design.

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ordkv/cappedstore/internal/encoding"
	"github.com/ordkv/cappedstore/internal/logging"
)

// SizeCache is the size/count accounting capability consumed by record
// stores. Implementations must be safe for concurrent use.
type SizeCache interface {
	// DataSize returns the tracked payload bytes for ident.
	DataSize(ident string) int64

	// NumRecords returns the tracked record count for ident.
	NumRecords(ident string) int64

	// Apply adjusts the tracked totals for ident.
	Apply(ident string, deltaBytes, deltaRecords int64)
}

// SizeStorerOptions configures a SizeStorer.
type SizeStorerOptions struct {
	// FlushInterval is how often dirty entries are persisted.
	// Zero means DefaultFlushInterval; negative disables the flush loop.
	FlushInterval time.Duration

	// Logger receives flush diagnostics. Defaults to a WARN-level logger.
	Logger Logger
}

// DefaultFlushInterval is the default persistence interval.
const DefaultFlushInterval = 10 * time.Second

// sizeEntry holds the live totals for one store ident.
type sizeEntry struct {
	dataSize   atomic.Int64
	numRecords atomic.Int64
	dirty      atomic.Bool
}

// SizeStorer is the persistent SizeCache implementation.
type SizeStorer struct {
	dict     Dictionary // nil disables persistence
	log      Logger
	interval time.Duration

	entries *xsync.MapOf[string, *sizeEntry]

	closeOnce sync.Once
	closed    atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// NewSizeStorer creates a size storer persisted into dict. Existing entries
// are loaded before it returns. A nil dict yields a purely in-memory cache.
func NewSizeStorer(dict Dictionary, opts SizeStorerOptions) (*SizeStorer, error) {
	if opts.FlushInterval == 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	s := &SizeStorer{
		dict:     dict,
		log:      logging.OrDefault(opts.Logger),
		interval: opts.FlushInterval,
		entries:  xsync.NewMapOf[string, *sizeEntry](),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if dict != nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("cappedstore: loading size storer: %w", err)
		}
	}

	if dict != nil && s.interval > 0 {
		go s.flushLoop()
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *SizeStorer) entry(ident string) *sizeEntry {
	e, _ := s.entries.LoadOrCompute(ident, func() *sizeEntry {
		return &sizeEntry{}
	})
	return e
}

// DataSize implements SizeCache.
func (s *SizeStorer) DataSize(ident string) int64 {
	return s.entry(ident).dataSize.Load()
}

// NumRecords implements SizeCache.
func (s *SizeStorer) NumRecords(ident string) int64 {
	return s.entry(ident).numRecords.Load()
}

// Apply implements SizeCache.
func (s *SizeStorer) Apply(ident string, deltaBytes, deltaRecords int64) {
	e := s.entry(ident)
	e.dataSize.Add(deltaBytes)
	e.numRecords.Add(deltaRecords)
	e.dirty.Store(true)
}

// Flush persists all dirty entries in one transaction.
func (s *SizeStorer) Flush() error {
	if s.dict == nil {
		return nil
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return s.flush()
}

func (s *SizeStorer) flush() error {
	type pending struct {
		ident string
		entry *sizeEntry
	}
	var dirty []pending
	s.entries.Range(func(ident string, e *sizeEntry) bool {
		if e.dirty.CompareAndSwap(true, false) {
			dirty = append(dirty, pending{ident, e})
		}
		return true
	})
	if len(dirty) == 0 {
		return nil
	}

	txn := s.dict.Begin()
	for _, p := range dirty {
		value := encoding.AppendVarint64(nil, clampNonNegative(p.entry.dataSize.Load()))
		value = encoding.AppendVarint64(value, clampNonNegative(p.entry.numRecords.Load()))
		if err := s.dict.Put(txn, []byte(p.ident), value); err != nil {
			txn.Abort()
			// Leave the entries marked dirty so the next flush retries them.
			for _, q := range dirty {
				q.entry.dirty.Store(true)
			}
			return err
		}
	}
	if err := txn.Commit(); err != nil {
		for _, q := range dirty {
			q.entry.dirty.Store(true)
		}
		return err
	}
	return nil
}

func (s *SizeStorer) load() error {
	cur, err := s.dict.NewCursor(nil, nil, Forward)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close() }()

	for ; cur.Valid(); cur.Next() {
		ident := string(cur.Key())
		value := cur.Value()
		size, n, err := encoding.DecodeVarint64(value)
		if err != nil {
			return fmt.Errorf("entry %q: %w", ident, err)
		}
		count, _, err := encoding.DecodeVarint64(value[n:])
		if err != nil {
			return fmt.Errorf("entry %q: %w", ident, err)
		}
		e := s.entry(ident)
		e.dataSize.Store(int64(size))
		e.numRecords.Store(int64(count))
	}
	return cur.Err()
}

func (s *SizeStorer) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.flush(); err != nil {
				s.log.Warnf(logging.NSSizeCache+"periodic flush failed: %v", err)
			}
		case <-s.stop:
			return
		}
	}
}

// Close stops the flush loop and persists a final snapshot.
func (s *SizeStorer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.closed.Store(true)
		if s.dict != nil {
			err = s.flush()
		}
	})
	return err
}

func clampNonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
