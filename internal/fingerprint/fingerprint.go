// Package fingerprint computes the shallow file Tag used by the
// freshness oracle: a 64-bit value composed from a file's size and
// modification time. Tag equality, not content hashing, is the sole
// definition of freshness.
package fingerprint

import (
	"os"
	"time"
)

// Tag is a 64-bit shallow file fingerprint. Values below 256 are
// reserved; 0 denotes "absent / invalid".
type Tag uint64

const reservedFloor = 256

// Of composes a Tag from a file's size and modification time.
func Of(size int64, mtime time.Time) Tag {
	t := Tag(uint64(uint32(size)) | (uint64(uint32(mtime.Unix())) << 32))
	if t < reservedFloor {
		t = reservedFloor
	}
	return t
}

// FileTag stats path and returns its Tag.
func FileTag(path string) (Tag, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return Of(info.Size(), info.ModTime()), nil
}
