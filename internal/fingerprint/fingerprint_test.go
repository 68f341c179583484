package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOfReservedFloor(t *testing.T) {
	if got := Of(0, time.Unix(0, 0)); got != reservedFloor {
		t.Errorf("Of(0, epoch) = %d, want reserved floor %d", got, reservedFloor)
	}
}

func TestOfDeterministic(t *testing.T) {
	mtime := time.Unix(1_700_000_000, 0)
	a := Of(4096, mtime)
	b := Of(4096, mtime)
	if a != b {
		t.Errorf("Of not deterministic: %d != %d", a, b)
	}
	if c := Of(4097, mtime); c == a {
		t.Errorf("Of should differ when size differs")
	}
	if d := Of(4096, mtime.Add(time.Second)); d == a {
		t.Errorf("Of should differ when mtime differs")
	}
}

func TestFileTagChangesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("a"), 0666); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	first, err := FileTag(path)
	if err != nil {
		t.Fatalf("FileTag: %v", err)
	}

	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if err := os.WriteFile(path, []byte("ab"), 0666); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	second, err := FileTag(path)
	if err != nil {
		t.Fatalf("FileTag: %v", err)
	}
	if first == second {
		t.Errorf("FileTag did not change after size/mtime changed")
	}
}

func TestFileTagMissing(t *testing.T) {
	if _, err := FileTag(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
