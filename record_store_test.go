package cappedstore

// record_store_test.go tests the generic record store: id assignment,
// accounting, envelope round trips, corruption detection, and cursors.

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ordkv/cappedstore/internal/logging"
)

func newTestRecordStore(t *testing.T, opts Options) (*RecordStore, Dictionary) {
	t.Helper()
	dict := NewMemoryDictionary()
	sizes := newTestSizeStorer(t, nil)
	if opts.Logger == nil {
		opts.Logger = logging.Discard
	}
	rs, err := NewRecordStore(dict, sizes, opts)
	if err != nil {
		t.Fatalf("NewRecordStore failed: %v", err)
	}
	return rs, dict
}

// commitInsert inserts payload in its own committed transaction.
func commitInsert(t *testing.T, dict Dictionary, insert func(Transaction) (RecordID, error)) RecordID {
	t.Helper()
	txn := dict.Begin()
	id, err := insert(txn)
	if err != nil {
		txn.Abort()
		t.Fatalf("insert failed: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	return id
}

func TestRecordStore_InsertAssignsAscendingIDs(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.ids"})

	var prev RecordID
	for i := 0; i < 10; i++ {
		payload := fmt.Appendf(nil, "record-%d", i)
		id := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
			return rs.Insert(txn, payload)
		})
		if id.IsNull() {
			t.Fatal("Insert returned null id")
		}
		if id <= prev {
			t.Fatalf("id %s not greater than previous %s", id, prev)
		}
		prev = id

		got, err := rs.Get(nil, id)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", id, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("Get(%s) = %q, want %q", id, got, payload)
		}
	}

	if rs.NumRecords() != 10 {
		t.Errorf("NumRecords = %d, want 10", rs.NumRecords())
	}
}

func TestRecordStore_IDCounterResumesAfterReopen(t *testing.T) {
	dict := NewMemoryDictionary()
	sizes := newTestSizeStorer(t, nil)

	rs, err := NewRecordStore(dict, sizes, Options{Ident: "base.reopen", Logger: logging.Discard})
	if err != nil {
		t.Fatal(err)
	}
	last := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
		return rs.Insert(txn, []byte("one"))
	})

	reopened, err := NewRecordStore(dict, sizes, Options{Ident: "base.reopen", Logger: logging.Discard})
	if err != nil {
		t.Fatal(err)
	}
	next := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
		return reopened.Insert(txn, []byte("two"))
	})
	if next <= last {
		t.Fatalf("reopened store assigned %s, not after %s", next, last)
	}
}

func TestRecordStore_AbortRollsBackAccounting(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.abort"})

	txn := dict.Begin()
	if _, err := rs.Insert(txn, []byte("doomed")); err != nil {
		t.Fatal(err)
	}
	// Live accounting reflects the pending insert.
	if rs.DataSize() != 6 || rs.NumRecords() != 1 {
		t.Fatalf("pending accounting = (%d, %d)", rs.DataSize(), rs.NumRecords())
	}
	txn.Abort()

	if rs.DataSize() != 0 || rs.NumRecords() != 0 {
		t.Errorf("accounting after abort = (%d, %d), want (0, 0)", rs.DataSize(), rs.NumRecords())
	}
}

func TestRecordStore_DeleteAdjustsAccounting(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.delete"})

	id := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
		return rs.Insert(txn, []byte("0123456789"))
	})

	txn := dict.Begin()
	if err := rs.Delete(txn, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	if rs.DataSize() != 0 || rs.NumRecords() != 0 {
		t.Errorf("accounting after delete = (%d, %d), want (0, 0)", rs.DataSize(), rs.NumRecords())
	}
	if _, err := rs.Get(nil, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestRecordStore_UpdateAdjustsSizeOnly(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.update"})

	id := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
		return rs.Insert(txn, []byte("short"))
	})

	txn := dict.Begin()
	if err := rs.Update(txn, id, []byte("considerably longer payload")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	if got := rs.DataSize(); got != 27 {
		t.Errorf("DataSize after update = %d, want 27", got)
	}
	if got := rs.NumRecords(); got != 1 {
		t.Errorf("NumRecords after update = %d, want 1", got)
	}
	payload, err := rs.Get(nil, id)
	if err != nil || string(payload) != "considerably longer payload" {
		t.Errorf("Get after update = (%q, %v)", payload, err)
	}
}

func TestRecordStore_CompressionRoundTripThroughStore(t *testing.T) {
	for _, comp := range []CompressionType{NoCompression, SnappyCompression, LZ4Compression, ZstdCompression} {
		rs, dict := newTestRecordStore(t, Options{
			Ident:       fmt.Sprintf("base.comp.%s", comp),
			Compression: comp,
		})
		payload := []byte(strings.Repeat("payload ", 128))
		id := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
			return rs.Insert(txn, payload)
		})
		got, err := rs.Get(nil, id)
		if err != nil {
			t.Fatalf("%s: Get failed: %v", comp, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("%s: round trip mismatch", comp)
		}
		// Accounting counts raw payload bytes regardless of compression.
		if rs.DataSize() != int64(len(payload)) {
			t.Errorf("%s: DataSize = %d, want %d", comp, rs.DataSize(), len(payload))
		}
	}
}

func TestRecordStore_ChecksumDetectsCorruption(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.corrupt"})

	id := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
		return rs.Insert(txn, []byte("pristine data"))
	})

	// Flip a payload bit behind the store's back.
	raw, err := dict.Get(nil, id.Key())
	if err != nil {
		t.Fatal(err)
	}
	corrupt := bytes.Clone(raw)
	corrupt[len(corrupt)-1] ^= 0x01
	txn := dict.Begin()
	if err := dict.Put(txn, id.Key(), corrupt); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := rs.Get(nil, id); !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("Get of corrupted record = %v, want ErrCorruptRecord", err)
	}
}

func TestRecordStore_CursorBothDirections(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.cursor"})

	var ids []RecordID
	for i := 0; i < 5; i++ {
		payload := fmt.Appendf(nil, "rec%d", i)
		ids = append(ids, commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
			return rs.Insert(txn, payload)
		}))
	}

	cur, err := rs.Cursor(nil, NullRecordID, Forward)
	if err != nil {
		t.Fatal(err)
	}
	var forward []RecordID
	for ; cur.Valid(); cur.Next() {
		forward = append(forward, cur.ID())
	}
	if err := cur.Err(); err != nil {
		t.Fatal(err)
	}
	_ = cur.Close()
	if len(forward) != 5 || forward[0] != ids[0] || forward[4] != ids[4] {
		t.Fatalf("forward ids = %v, want %v", forward, ids)
	}

	cur, err = rs.Cursor(nil, ids[2], Backward)
	if err != nil {
		t.Fatal(err)
	}
	var backward []RecordID
	for ; cur.Valid(); cur.Next() {
		backward = append(backward, cur.ID())
	}
	_ = cur.Close()
	if len(backward) != 3 || backward[0] != ids[2] || backward[2] != ids[0] {
		t.Fatalf("backward ids from %s = %v", ids[2], backward)
	}
}

func TestRecordStore_InsertFromWriter(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.writer"})

	id := commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
		return rs.InsertFromWriter(txn, bytes.NewBufferString("written through a writer"))
	})
	got, err := rs.Get(nil, id)
	if err != nil || string(got) != "written through a writer" {
		t.Fatalf("Get = (%q, %v)", got, err)
	}
}

func TestRecordStore_AppendStats(t *testing.T) {
	rs, dict := newTestRecordStore(t, Options{Ident: "base.stats"})
	commitInsert(t, dict, func(txn Transaction) (RecordID, error) {
		return rs.Insert(txn, bytes.Repeat([]byte("x"), 1000))
	})

	sink := NewMapStatsSink()
	rs.AppendStats(sink, 10)
	if sink.Values["ident"] != "base.stats" {
		t.Errorf("ident stat = %v", sink.Values["ident"])
	}
	if sink.Values["size"] != int64(100) {
		t.Errorf("size stat = %v, want 100", sink.Values["size"])
	}
	if sink.Values["count"] != int64(1) {
		t.Errorf("count stat = %v, want 1", sink.Values["count"])
	}
}
