// Package container implements the contiguous indexed-container family
// that backs both the in-memory dependency caches and the persisted
// ".deps" sidecars: a single blob, variable-length records, an
// append-only insertion-ordered list, and an open-addressing-free
// chained hash index over it. The hash index is never persisted; it is
// always rebuilt from the list on load.
package container

import (
	"encoding/binary"
	"fmt"

	"github.com/vladshiryaev/cx/internal/blob"
	"github.com/vladshiryaev/cx/internal/fingerprint"
)

// Tag is a file fingerprint, re-exported here for entries keyed by it.
type Tag = fingerprint.Tag

// HashBytes computes the rolling string hash used throughout cx for
// both dict bucket placement and option-list fingerprints.
func HashBytes(b []byte) uint32 {
	h := uint32(len(b))
	for _, c := range b {
		h = h*101 + uint32(c)
	}
	return h * 0x9e3779b9
}

// HashStringList combines the hashes of a list of strings into one
// fingerprint, used for cOptionsTag/cxxOptionsTag/linkerOptionsTag.
func HashStringList(items []string) uint32 {
	var h uint32
	for _, s := range items {
		h = h*3 + HashBytes([]byte(s))
	}
	return h
}

func align(n, to int) int {
	if r := n % to; r != 0 {
		n += to - r
	}
	return n
}

// StringList is an append-only, insertion-ordered list of raw strings.
// On-disk record layout: u16 length, bytes, NUL, padded to a 2-byte
// boundary.
type StringList struct {
	entries []string
}

// Add appends s and returns its index.
func (l *StringList) Add(s string) int {
	l.entries = append(l.entries, s)
	return len(l.entries) - 1
}

// Count returns the number of entries.
func (l *StringList) Count() int { return len(l.entries) }

// Strings returns the entries in insertion order. The caller must not
// mutate the returned slice.
func (l *StringList) Strings() []string { return l.entries }

// Marshal serializes the list to its on-disk record form, built up on a
// blob.Blob (the same growable-buffer primitive the ".deps" sidecar
// format uses for the whole file).
func (l *StringList) Marshal() []byte {
	b := blob.New()
	for _, s := range l.entries {
		rec := stringRecordSize(len(s))
		buf := make([]byte, rec)
		binary.LittleEndian.PutUint16(buf, uint16(len(s)))
		copy(buf[2:], s)
		// NUL and padding bytes are already zero.
		b.Append(buf)
	}
	return b.Bytes()
}

func stringRecordSize(length int) int {
	return align(2+length+1, 2)
}

// UnmarshalStringList parses a blob previously produced by Marshal.
func UnmarshalStringList(data []byte) (*StringList, error) {
	l := &StringList{}
	off := 0
	for off < len(data) {
		if off+2 > len(data) {
			return nil, fmt.Errorf("container: truncated string list at offset %d", off)
		}
		length := int(binary.LittleEndian.Uint16(data[off:]))
		start := off + 2
		if start+length > len(data) {
			return nil, fmt.Errorf("container: truncated string record at offset %d", off)
		}
		l.entries = append(l.entries, string(data[start:start+length]))
		off += stringRecordSize(length)
	}
	return l, nil
}

// FileStateEntry is a single tagged record: a Tag plus the byte string
// it was derived from.
type FileStateEntry struct {
	Tag  Tag
	Name string
}

// FileStateList is an append-only, insertion-ordered list of tagged
// entries. On-disk record layout: u64 tag, u16 length, bytes, NUL,
// padded to an 8-byte boundary. A FileStateList is the persisted form
// of Dependencies' body (the header occupies the first HeaderSize bytes
// of the same blob, handled by the deps package).
type FileStateList struct {
	entries []FileStateEntry
}

// Add appends a tagged entry and returns its index.
func (l *FileStateList) Add(tag Tag, name string) int {
	l.entries = append(l.entries, FileStateEntry{Tag: tag, Name: name})
	return len(l.entries) - 1
}

// Count returns the number of entries.
func (l *FileStateList) Count() int { return len(l.entries) }

// At returns the entry at index i.
func (l *FileStateList) At(i int) FileStateEntry { return l.entries[i] }

// Entries returns all entries in insertion order. The caller must not
// mutate the returned slice.
func (l *FileStateList) Entries() []FileStateEntry { return l.entries }

func fileStateRecordSize(length int) int {
	return align(8+2+length+1, 8)
}

// Marshal serializes the list's entries (without any header) to their
// on-disk record form, built up on a blob.Blob.
func (l *FileStateList) Marshal() []byte {
	b := blob.New()
	for _, e := range l.entries {
		rec := fileStateRecordSize(len(e.Name))
		buf := make([]byte, rec)
		binary.LittleEndian.PutUint64(buf, uint64(e.Tag))
		binary.LittleEndian.PutUint16(buf[8:], uint16(len(e.Name)))
		copy(buf[10:], e.Name)
		b.Append(buf)
	}
	return b.Bytes()
}

// UnmarshalFileStateList parses entry records (with no header present)
// from data.
func UnmarshalFileStateList(data []byte) (*FileStateList, error) {
	l := &FileStateList{}
	off := 0
	for off < len(data) {
		if off+10 > len(data) {
			return nil, fmt.Errorf("container: truncated file-state record at offset %d", off)
		}
		tag := Tag(binary.LittleEndian.Uint64(data[off:]))
		length := int(binary.LittleEndian.Uint16(data[off+8:]))
		start := off + 10
		if start+length > len(data) {
			return nil, fmt.Errorf("container: truncated file-state name at offset %d", off)
		}
		l.entries = append(l.entries, FileStateEntry{Tag: tag, Name: string(data[start : start+length])})
		off += fileStateRecordSize(length)
	}
	return l, nil
}

const initialTableBits = 6 // table size starts at 64

// FileStateDict adds a memory-only chained hash index on top of a
// FileStateList, giving O(1) average lookup by name while preserving
// insertion-order iteration of the underlying list. Growth doubles the
// table and re-buckets existing entries using their already-computed
// hash (only the top log2(tableSize) bits are re-taken; no string is
// re-hashed).
type FileStateDict struct {
	list      FileStateList
	buckets   []int32
	next      []int32
	hashes    []uint32
	tableBits uint
}

// NewFileStateDict returns an empty dict with the default initial table size.
func NewFileStateDict() *FileStateDict {
	d := &FileStateDict{tableBits: initialTableBits}
	d.buckets = emptyBuckets(1 << initialTableBits)
	return d
}

func emptyBuckets(n int) []int32 {
	b := make([]int32, n)
	for i := range b {
		b[i] = -1
	}
	return b
}

func (d *FileStateDict) bucketFor(h uint32) int {
	return int(h >> (32 - d.tableBits))
}

// Count returns the number of entries.
func (d *FileStateDict) Count() int { return d.list.Count() }

// Entries returns all entries in insertion order.
func (d *FileStateDict) Entries() []FileStateEntry { return d.list.Entries() }

// Find looks up name, returning its tag and whether it was present.
func (d *FileStateDict) Find(name string) (Tag, bool) {
	h := HashBytes([]byte(name))
	for i := d.buckets[d.bucketFor(h)]; i != -1; i = d.next[i] {
		if d.hashes[i] == h && d.list.entries[i].Name == name {
			return d.list.entries[i].Tag, true
		}
	}
	return 0, false
}

// Add unconditionally appends a new entry, even if name is already present.
func (d *FileStateDict) Add(tag Tag, name string) {
	idx := d.list.Add(tag, name)
	h := HashBytes([]byte(name))
	d.link(idx, h)
	if d.list.Count() > (1<<d.tableBits)/2 {
		d.grow()
	}
}

// Put adds name if absent, or updates its tag in place if already present.
func (d *FileStateDict) Put(tag Tag, name string) {
	h := HashBytes([]byte(name))
	for i := d.buckets[d.bucketFor(h)]; i != -1; i = d.next[i] {
		if d.hashes[i] == h && d.list.entries[i].Name == name {
			d.list.entries[i].Tag = tag
			return
		}
	}
	d.Add(tag, name)
}

func (d *FileStateDict) link(idx int, h uint32) {
	d.hashes = append(d.hashes, h)
	d.next = append(d.next, d.buckets[d.bucketFor(h)])
	d.buckets[d.bucketFor(h)] = int32(idx)
}

func (d *FileStateDict) grow() {
	d.tableBits++
	d.buckets = emptyBuckets(1 << d.tableBits)
	for i := range d.next {
		d.next[i] = -1
	}
	for i, h := range d.hashes {
		b := d.bucketFor(h)
		d.next[i] = d.buckets[b]
		d.buckets[b] = int32(i)
	}
}

// LoadFileStateDict rebuilds a dict by walking a previously persisted
// list of entries.
func LoadFileStateDict(entries []FileStateEntry) *FileStateDict {
	d := NewFileStateDict()
	for _, e := range entries {
		d.Add(e.Tag, e.Name)
	}
	return d
}
