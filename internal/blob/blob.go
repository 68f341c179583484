// Package blob implements the growable byte buffer that backs the
// indexed containers and the dependency sidecars, with a file
// load/save round-trip.
package blob

import "os"

// Blob is a growable, append-only byte buffer.
type Blob struct {
	data []byte
}

// New returns an empty Blob.
func New() *Blob {
	return &Blob{}
}

// FromBytes wraps an existing byte slice without copying it.
func FromBytes(b []byte) *Blob {
	return &Blob{data: b}
}

// Bytes returns the current contents.
func (b *Blob) Bytes() []byte {
	return b.data
}

// Len reports the number of bytes currently held.
func (b *Blob) Len() int {
	return len(b.data)
}

// Append grows the blob by appending p and returns the offset p now
// starts at.
func (b *Blob) Append(p []byte) int {
	offset := len(b.data)
	b.data = append(b.data, p...)
	return offset
}

// Reset empties the blob without releasing its backing array.
func (b *Blob) Reset() {
	b.data = b.data[:0]
}

// Load reads an entire file into a fresh Blob.
func Load(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Blob{data: data}, nil
}

// Save writes the blob's contents to path, truncating any existing file.
func (b *Blob) Save(path string) error {
	return os.WriteFile(path, b.data, 0666)
}
