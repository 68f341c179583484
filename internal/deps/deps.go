// Package deps implements the dependency sidecar (".deps") format: a
// fixed 32-byte header plus, for object files, a FileStateList of
// input-file tags. It also implements the two freshness checks that
// the unit builder drives from it.
package deps

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/vladshiryaev/cx/internal/blob"
	"github.com/vladshiryaev/cx/internal/container"
)

// Magic identifies a valid deps sidecar.
const Magic uint32 = 0x000055FF

// HeaderSize is the fixed size of Header on disk.
const HeaderSize = 32

// HasMain bit within Header.Flags.
const FlagHasMain uint8 = 1 << 0

// Header is the fixed-layout sidecar header, byte-identical to the
// first 32 bytes of every .deps file.
type Header struct {
	Magic     uint32
	ToolTag   uint32
	OptTag    uint32
	Flags     uint8
	InputsTag uint64
}

// HasMain reports whether the FlagHasMain bit is set.
func (h Header) HasMain() bool { return h.Flags&FlagHasMain != 0 }

// Encode serializes h to its 32-byte on-disk form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.ToolTag)
	binary.LittleEndian.PutUint32(buf[8:], h.OptTag)
	buf[12] = h.Flags
	// bytes 13-15 reserved, left zero
	binary.LittleEndian.PutUint64(buf[16:], h.InputsTag)
	// bytes 24-31 trailing zeroed u64, left zero
	return buf
}

// DecodeHeader parses the fixed 32-byte header from the front of data.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("deps: truncated header (%d bytes)", len(data))
	}
	h := Header{
		Magic:     binary.LittleEndian.Uint32(data[0:]),
		ToolTag:   binary.LittleEndian.Uint32(data[4:]),
		OptTag:    binary.LittleEndian.Uint32(data[8:]),
		Flags:     data[12],
		InputsTag: binary.LittleEndian.Uint64(data[16:]),
	}
	return h, nil
}

// Dependencies is a persisted sidecar: a Header plus, for object
// sidecars, the list of input-file tags.
type Dependencies struct {
	Header Header
	Files  container.FileStateList
}

// Marshal serializes the sidecar to its on-disk blob: the fixed header
// followed by the file-state list's records, on one growable buffer.
func (d *Dependencies) Marshal() []byte {
	b := blob.New()
	b.Append(d.Header.Encode())
	b.Append(d.Files.Marshal())
	return b.Bytes()
}

// Save writes the sidecar to path.
func (d *Dependencies) Save(path string) error {
	return blob.FromBytes(d.Marshal()).Save(path)
}

// Load reads and parses a full sidecar, including its file-state list.
func Load(path string) (*Dependencies, error) {
	blb, err := blob.Load(path)
	if err != nil {
		return nil, err
	}
	data := blb.Bytes()
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("deps: %s is too short to be a sidecar", path)
	}
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("deps: %s has bad magic", path)
	}
	files, err := container.UnmarshalFileStateList(data[HeaderSize:])
	if err != nil {
		return nil, err
	}
	return &Dependencies{Header: h, Files: *files}, nil
}

// LoadHeader reads only the fixed header, for the summary freshness check.
func LoadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	buf := make([]byte, HeaderSize)
	if _, err := f.Read(buf); err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf)
}

// Delete removes a sidecar, ignoring a not-exist error. Builders call
// this whenever the artifact the sidecar describes failed to build, so
// the next run treats it as stale.
func Delete(path string) {
	_ = os.Remove(path)
}

// FullCheck is the freshness check used for object files, whose input
// set is the translation unit and its transitive headers: it requires
// the artifact to exist, the sidecar's magic, tool tag and option tag
// to match (flags and inputs tag are not compared), and every
// recorded input's current tag (as resolved by lookup) to match what
// was recorded.
func FullCheck(sidecarPath, artifactPath string, toolTag, optTag uint32, lookup func(name string) (container.Tag, bool)) (fresh bool, sidecar *Dependencies) {
	if _, err := os.Stat(artifactPath); err != nil {
		return false, nil
	}
	d, err := Load(sidecarPath)
	if err != nil {
		return false, nil
	}
	if d.Header.Magic != Magic || d.Header.ToolTag != toolTag || d.Header.OptTag != optTag {
		return false, nil
	}
	for _, e := range d.Files.Entries() {
		tag, ok := lookup(e.Name)
		if !ok || tag != e.Tag {
			return false, nil
		}
	}
	return true, d
}

// SummaryCheck is the freshness check used for library and executable
// artifacts, whose inputs are themselves artifacts just produced: it
// only inspects the fixed header, comparing it against the supplied
// expected tags.
func SummaryCheck(sidecarPath, artifactPath string, toolTag, optTag uint32, inputsTag container.Tag) bool {
	if _, err := os.Stat(artifactPath); err != nil {
		return false
	}
	h, err := LoadHeader(sidecarPath)
	if err != nil {
		return false
	}
	return h.Magic == Magic && h.ToolTag == toolTag && h.OptTag == optTag && h.InputsTag == uint64(inputsTag)
}
