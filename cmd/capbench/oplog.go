package main

// oplog.go implements the oplog scenario: concurrent writers appending
// timestamped entries while a tailing reader follows the visibility
// boundary.

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/ordkv/cappedstore"
	"github.com/ordkv/cappedstore/internal/logging"
)

var (
	oplogWriters  int
	oplogEntries  int
	oplogMaxSize  int64
	oplogBodySize int
)

var oplogCmd = &cobra.Command{
	Use:   "oplog",
	Short: "Run concurrent oplog writers with a tailing reader",
	RunE:  runOplog,
}

func init() {
	oplogCmd.Flags().IntVar(&oplogWriters, "writers", 4, "number of concurrent writers")
	oplogCmd.Flags().IntVar(&oplogEntries, "entries", 2000, "entries per writer")
	oplogCmd.Flags().Int64Var(&oplogMaxSize, "max-size", 1<<20, "oplog max size in bytes")
	oplogCmd.Flags().IntVar(&oplogBodySize, "body-size", 64, "entry body size in bytes")
}

func runOplog(cmd *cobra.Command, args []string) error {
	log := logging.NewDefaultLogger(logging.LevelInfo)
	dict := cappedstore.NewMemoryDictionary()
	sizes, err := cappedstore.NewSizeStorer(nil, cappedstore.SizeStorerOptions{Logger: log})
	if err != nil {
		return err
	}
	defer func() { _ = sizes.Close() }()

	store, err := cappedstore.NewCappedRecordStore(dict, sizes, cappedstore.Options{
		Ident:        "capbench.oplog",
		MaxSizeBytes: oplogMaxSize,
		Oplog:        true,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	var seq atomic.Uint32
	body := make([]byte, oplogBodySize)
	nowSec := uint32(time.Now().Unix())

	var wg sync.WaitGroup
	for w := 0; w < oplogWriters; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < oplogEntries; i++ {
				ts := cappedstore.Timestamp{Seconds: nowSec, Sequence: seq.Add(1)}
				entry := cappedstore.AppendOplogHeader(nil, ts)
				entry = append(entry, body...)

				txn := dict.Begin()
				if _, err := store.Insert(txn, entry); err != nil {
					txn.Abort()
					log.Errorf(logging.NSBench+"oplog insert: %v", err)
					return
				}
				if err := txn.Commit(); err != nil {
					log.Errorf(logging.NSBench+"oplog commit: %v", err)
					return
				}
			}
		}()
	}

	// Tail until the writers finish, resuming from the visible position.
	writersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(writersDone)
	}()

	var read int
	pos := cappedstore.NullRecordID
	for done := false; !done; {
		select {
		case <-writersDone:
			done = true
		default:
			time.Sleep(10 * time.Millisecond)
		}

		start := pos
		if start.IsNull() {
			start = cappedstore.NullRecordID
		} else {
			resumed, err := store.VisibleStartingPosition(start)
			if err != nil {
				return err
			}
			if resumed.IsNull() {
				continue
			}
			start = resumed
		}

		cur, err := store.Cursor(nil, start, cappedstore.Forward)
		if err != nil {
			return err
		}
		for ; cur.Valid(); cur.Next() {
			if cur.ID() > pos {
				pos = cur.ID()
				read++
			}
		}
		if err := cur.Err(); err != nil {
			_ = cur.Close()
			return err
		}
		_ = cur.Close()
	}

	log.Infof(logging.NSBench+"writers appended %d entries, reader tailed %d, boundary %s",
		oplogWriters*oplogEntries, read, store.LowestInvisible())

	sink := cappedstore.NewMapStatsSink()
	store.AppendStats(sink, 1)
	for name, value := range sink.Values {
		log.Infof(logging.NSBench+"stat %s = %v", name, value)
	}
	return nil
}
