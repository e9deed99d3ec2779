package cappedstore

// record_id_test.go tests record identity and its key encoding.

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestRecordID_KeyRoundTrip(t *testing.T) {
	for _, id := range []RecordID{1, 2, 255, 256, 1 << 20, math.MaxInt64} {
		key := id.Key()
		if len(key) != 8 {
			t.Fatalf("Key(%s) is %d bytes", id, len(key))
		}
		got, err := RecordIDFromKey(key)
		if err != nil {
			t.Fatalf("RecordIDFromKey(%s) failed: %v", id, err)
		}
		if got != id {
			t.Fatalf("round trip %s -> %s", id, got)
		}
	}
}

func TestRecordID_KeyOrderMatchesIDOrder(t *testing.T) {
	ids := []RecordID{1, 2, 255, 256, 257, 1 << 16, 1 << 32, math.MaxInt64}
	for i := 1; i < len(ids); i++ {
		a, b := ids[i-1].Key(), ids[i].Key()
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("Key(%s) not below Key(%s)", ids[i-1], ids[i])
		}
	}
}

func TestRecordIDFromKey_Errors(t *testing.T) {
	if _, err := RecordIDFromKey([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key = %v, want ErrInvalidKey", err)
	}
	if _, err := RecordIDFromKey(make([]byte, 8)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("zero key = %v, want ErrInvalidKey", err)
	}
	top := bytes.Repeat([]byte{0xff}, 8)
	if _, err := RecordIDFromKey(top); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("out-of-range key = %v, want ErrInvalidKey", err)
	}
}

func TestRecordID_IsNull(t *testing.T) {
	if !NullRecordID.IsNull() {
		t.Error("NullRecordID not IsNull")
	}
	if !RecordID(-1).IsNull() {
		t.Error("negative id not IsNull")
	}
	if RecordID(1).IsNull() {
		t.Error("positive id reported IsNull")
	}
}
