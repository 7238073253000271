package formats

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestObjectIDsRoundTrip(t *testing.T) {
	ids := []uint16{0, 1, 10, 7, 0xFFFF}

	var buf bytes.Buffer
	if err := WriteObjectIDs(&buf, ids); err != nil {
		t.Fatalf("WriteObjectIDs failed: %v", err)
	}
	if buf.Len() != 10 {
		t.Fatalf("expected 10 bytes, got %d", buf.Len())
	}
	// little endian
	if !bytes.Equal(buf.Bytes()[4:6], []byte{0x0A, 0x00}) {
		t.Errorf("expected 0a 00 for id 10, got % x", buf.Bytes()[4:6])
	}

	got, err := ReadObjectIDs(&buf)
	if err != nil {
		t.Fatalf("ReadObjectIDs failed: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("expected %d ids, got %d", len(ids), len(got))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Errorf("id %d: expected %d, got %d", i, ids[i], got[i])
		}
	}
}

func TestParseObjectIDs_Odd(t *testing.T) {
	_, err := ParseObjectIDs([]byte{1, 0, 2})
	if !errors.Is(err, ErrTruncatedObjectIDs) {
		t.Errorf("expected ErrTruncatedObjectIDs, got %v", err)
	}
}

func TestReadObjectIDsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.bin")
	if err := os.WriteFile(path, []byte{3, 0, 4, 0}, 0644); err != nil {
		t.Fatalf("failed to write ids: %v", err)
	}

	ids, err := ReadObjectIDsFile(path)
	if err != nil {
		t.Fatalf("ReadObjectIDsFile failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 4 {
		t.Errorf("expected [3 4], got %v", ids)
	}

	if _, err := ReadObjectIDsFile(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}
