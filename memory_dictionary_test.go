package cappedstore

// memory_dictionary_test.go tests the in-memory reference dictionary:
// transaction atomicity, read-your-writes, completion hooks, and the
// cursor contract.

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryDictionary_CommitMakesWritesVisible(t *testing.T) {
	dict := NewMemoryDictionary()

	txn := dict.Begin()
	if err := dict.Put(txn, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Not visible outside the transaction before commit.
	if _, err := dict.Get(nil, []byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before commit = %v, want ErrNotFound", err)
	}

	// Visible inside the transaction (read-your-writes).
	if v, err := dict.Get(txn, []byte("a")); err != nil || !bytes.Equal(v, []byte("1")) {
		t.Fatalf("Get in txn = (%q, %v)", v, err)
	}

	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if v, err := dict.Get(nil, []byte("a")); err != nil || !bytes.Equal(v, []byte("1")) {
		t.Fatalf("Get after commit = (%q, %v)", v, err)
	}
}

func TestMemoryDictionary_AbortDiscardsWrites(t *testing.T) {
	dict := NewMemoryDictionary()

	txn := dict.Begin()
	if err := dict.Put(txn, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	txn.Abort()

	if _, err := dict.Get(nil, []byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after abort = %v, want ErrNotFound", err)
	}

	// Abort is idempotent.
	txn.Abort()
}

func TestMemoryDictionary_DeleteInTransaction(t *testing.T) {
	dict := NewMemoryDictionary()

	txn := dict.Begin()
	if err := dict.Put(txn, []byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	txn = dict.Begin()
	if err := dict.Delete(txn, []byte("a")); err != nil {
		t.Fatal(err)
	}
	// Buffered delete hides the key from the deleting transaction.
	if _, err := dict.Get(txn, []byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get of buffered delete = %v, want ErrNotFound", err)
	}
	// Still present for everyone else.
	if _, err := dict.Get(nil, []byte("a")); err != nil {
		t.Fatalf("Get outside txn = %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := dict.Get(nil, []byte("a")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after committed delete = %v, want ErrNotFound", err)
	}

	// Delete of an absent key is a no-op.
	txn = dict.Begin()
	if err := dict.Delete(txn, []byte("missing")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryDictionary_WriteOutsideTransaction(t *testing.T) {
	dict := NewMemoryDictionary()
	if err := dict.Put(nil, []byte("a"), []byte("1")); err == nil {
		t.Fatal("Put(nil txn) = nil error")
	}
	if err := dict.Delete(nil, []byte("a")); err == nil {
		t.Fatal("Delete(nil txn) = nil error")
	}
}

func TestMemoryDictionary_HooksFireOnceWithOutcome(t *testing.T) {
	dict := NewMemoryDictionary()

	var committed, aborted int
	txn := dict.Begin()
	txn.OnComplete(func(ok bool) {
		if ok {
			committed++
		} else {
			aborted++
		}
	})
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	txn.Abort() // no-op after commit
	if committed != 1 || aborted != 0 {
		t.Fatalf("hooks after commit: committed=%d aborted=%d", committed, aborted)
	}

	txn = dict.Begin()
	txn.OnComplete(func(ok bool) {
		if !ok {
			aborted++
		}
	})
	txn.Abort()
	txn.Abort()
	if aborted != 1 {
		t.Fatalf("hooks after abort: aborted=%d", aborted)
	}
}

func TestMemoryDictionary_HooksObserveCommitOrder(t *testing.T) {
	dict := NewMemoryDictionary()

	var mu sync.Mutex
	var order []int

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			txn := dict.Begin()
			txn.OnComplete(func(ok bool) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
			if err := txn.Commit(); err != nil {
				t.Errorf("Commit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(order) != n {
		t.Fatalf("hooks fired %d times, want %d", len(order), n)
	}
}

func TestMemoryDictionary_CursorContract(t *testing.T) {
	dict := NewMemoryDictionary()

	txn := dict.Begin()
	for i := 0; i < 5; i++ {
		key := fmt.Appendf(nil, "key%d", i)
		if err := dict.Put(txn, key, []byte("value")); err != nil {
			t.Fatal(err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	// Forward from nil yields ascending keys.
	cur, err := dict.NewCursor(nil, nil, Forward)
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for ; cur.Valid(); cur.Next() {
		keys = append(keys, string(cur.Key()))
	}
	if err := cur.Err(); err != nil {
		t.Fatal(err)
	}
	_ = cur.Close()
	if len(keys) != 5 || keys[0] != "key0" || keys[4] != "key4" {
		t.Fatalf("forward keys = %v", keys)
	}

	// Backward from a pivot starts at the last key <= pivot.
	cur, err = dict.NewCursor(nil, []byte("key3"), Backward)
	if err != nil {
		t.Fatal(err)
	}
	keys = keys[:0]
	for ; cur.Valid(); cur.Next() {
		keys = append(keys, string(cur.Key()))
	}
	_ = cur.Close()
	want := []string{"key3", "key2", "key1", "key0"}
	if len(keys) != len(want) {
		t.Fatalf("backward keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("backward keys = %v, want %v", keys, want)
		}
	}

	// Cursor after Close is invalid.
	cur, err = dict.NewCursor(nil, nil, Forward)
	if err != nil {
		t.Fatal(err)
	}
	_ = cur.Close()
	if cur.Valid() {
		t.Fatal("cursor valid after Close")
	}
}

func TestMemoryDictionary_CursorIsSnapshot(t *testing.T) {
	dict := NewMemoryDictionary()

	txn := dict.Begin()
	if err := dict.Put(txn, []byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	cur, err := dict.NewCursor(nil, nil, Forward)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cur.Close() }()

	// A write committed after cursor creation is not observed.
	txn = dict.Begin()
	if err := dict.Put(txn, []byte("b"), []byte("2")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	var count int
	for ; cur.Valid(); cur.Next() {
		count++
	}
	if count != 1 {
		t.Fatalf("snapshot cursor saw %d entries, want 1", count)
	}
}
