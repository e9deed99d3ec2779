package main

// insert.go implements the capped insert workload.

import (
	"crypto/rand"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ordkv/cappedstore"
	"github.com/ordkv/cappedstore/internal/logging"
)

var (
	insertRecords     int
	insertRecordSize  int
	insertMaxSize     int64
	insertMaxDocs     int64
	insertCompression string
	insertShowMetrics bool
)

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Run a capped insert workload and report eviction stats",
	RunE:  runInsert,
}

func init() {
	insertCmd.Flags().IntVar(&insertRecords, "records", 10000, "number of records to insert")
	insertCmd.Flags().IntVar(&insertRecordSize, "record-size", 256, "payload size in bytes")
	insertCmd.Flags().Int64Var(&insertMaxSize, "max-size", 1<<20, "capped max size in bytes")
	insertCmd.Flags().Int64Var(&insertMaxDocs, "max-docs", 0, "capped max record count (0 = unlimited)")
	insertCmd.Flags().StringVar(&insertCompression, "compression", "none", "payload compression: none, snappy, lz4, zstd")
	insertCmd.Flags().BoolVar(&insertShowMetrics, "metrics", false, "dump Prometheus metrics after the run")
}

func compressionFromName(name string) (cappedstore.CompressionType, error) {
	switch name {
	case "none":
		return cappedstore.NoCompression, nil
	case "snappy":
		return cappedstore.SnappyCompression, nil
	case "lz4":
		return cappedstore.LZ4Compression, nil
	case "zstd":
		return cappedstore.ZstdCompression, nil
	default:
		return cappedstore.NoCompression, fmt.Errorf("unknown compression %q", name)
	}
}

func runInsert(cmd *cobra.Command, args []string) error {
	comp, err := compressionFromName(insertCompression)
	if err != nil {
		return err
	}

	log := logging.NewDefaultLogger(logging.LevelInfo)
	dict := cappedstore.NewMemoryDictionary()
	sizes, err := cappedstore.NewSizeStorer(nil, cappedstore.SizeStorerOptions{Logger: log})
	if err != nil {
		return err
	}
	defer func() { _ = sizes.Close() }()

	store, err := cappedstore.NewCappedRecordStore(dict, sizes, cappedstore.Options{
		Ident:        "capbench.insert",
		MaxSizeBytes: insertMaxSize,
		MaxDocs:      insertMaxDocs,
		Compression:  comp,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	payload := make([]byte, insertRecordSize)
	if _, err := rand.Read(payload); err != nil {
		return err
	}

	start := time.Now()
	for i := 0; i < insertRecords; i++ {
		txn := dict.Begin()
		if _, err := store.Insert(txn, payload); err != nil {
			txn.Abort()
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	sink := cappedstore.NewMapStatsSink()
	store.AppendStats(sink, 1)
	log.Infof(logging.NSBench+"inserted %d records of %d bytes in %s (%.0f/s)",
		insertRecords, insertRecordSize, elapsed,
		float64(insertRecords)/elapsed.Seconds())
	for name, value := range sink.Values {
		log.Infof(logging.NSBench+"stat %s = %v", name, value)
	}

	if insertShowMetrics {
		cappedstore.WriteMetrics(os.Stdout)
	}
	return nil
}
