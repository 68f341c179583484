package deps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladshiryaev/cx/internal/container"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{Magic: Magic, ToolTag: 0xAABBCCDD, OptTag: 42, Flags: FlagHasMain, InputsTag: 123456789}
	got, err := DecodeHeader(h.Encode())
	require.NoError(t, err)
	require.Equal(t, h, got)
	require.True(t, got.HasMain())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	d := &Dependencies{Header: Header{Magic: Magic, ToolTag: 1, OptTag: 2}}
	d.Files.Add(container.Tag(10), "main.cpp")
	d.Files.Add(container.Tag(20), "util.h")

	path := filepath.Join(t.TempDir(), "main.cpp.o.deps")
	require.NoError(t, d.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(1), got.Header.ToolTag)
	require.Equal(t, uint32(2), got.Header.OptTag)
	require.Equal(t, 2, got.Files.Count())
}

func writeArtifactAndSidecar(t *testing.T, dir string, h Header, files map[string]container.Tag) (artifact, sidecar string) {
	t.Helper()
	artifact = filepath.Join(dir, "main.o")
	require.NoError(t, os.WriteFile(artifact, []byte("object"), 0666))

	d := &Dependencies{Header: h}
	for name, tag := range files {
		d.Files.Add(tag, name)
	}
	sidecar = artifact + ".deps"
	require.NoError(t, d.Save(sidecar))
	return artifact, sidecar
}

func TestFullCheckFreshThenStaleOnInputChange(t *testing.T) {
	dir := t.TempDir()
	artifact, sidecar := writeArtifactAndSidecar(t, dir,
		Header{Magic: Magic, ToolTag: 5, OptTag: 7},
		map[string]container.Tag{"main.cpp": 100, "util.h": 200})

	current := map[string]container.Tag{"main.cpp": 100, "util.h": 200}
	lookup := func(name string) (container.Tag, bool) { tag, ok := current[name]; return tag, ok }

	fresh, sc := FullCheck(sidecar, artifact, 5, 7, lookup)
	require.True(t, fresh)
	require.NotNil(t, sc)

	current["util.h"] = 201
	fresh, _ = FullCheck(sidecar, artifact, 5, 7, lookup)
	require.False(t, fresh, "expected stale after input tag changed")
}

func TestFullCheckStaleOnOptTagChange(t *testing.T) {
	dir := t.TempDir()
	artifact, sidecar := writeArtifactAndSidecar(t, dir,
		Header{Magic: Magic, ToolTag: 5, OptTag: 7},
		map[string]container.Tag{"main.cpp": 100})
	lookup := func(name string) (container.Tag, bool) { return 100, name == "main.cpp" }

	fresh, _ := FullCheck(sidecar, artifact, 5, 8, lookup)
	require.False(t, fresh, "expected stale when optTag differs")
}

func TestFullCheckMissingArtifactIsAlwaysStale(t *testing.T) {
	dir := t.TempDir()
	sidecar := filepath.Join(dir, "missing.o.deps")
	d := &Dependencies{Header: Header{Magic: Magic, ToolTag: 1, OptTag: 1}}
	require.NoError(t, d.Save(sidecar))

	fresh, _ := FullCheck(sidecar, filepath.Join(dir, "missing.o"), 1, 1, func(string) (container.Tag, bool) { return 0, true })
	require.False(t, fresh, "expected stale when artifact does not exist")
}

func TestSummaryCheck(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "libfoo.a")
	require.NoError(t, os.WriteFile(artifact, []byte("archive"), 0666))

	sidecar := artifact + ".deps"
	d := &Dependencies{Header: Header{Magic: Magic, ToolTag: 3, OptTag: 9, InputsTag: 555}}
	require.NoError(t, d.Save(sidecar))

	require.True(t, SummaryCheck(sidecar, artifact, 3, 9, container.Tag(555)))
	require.False(t, SummaryCheck(sidecar, artifact, 3, 9, container.Tag(556)), "expected stale when inputsTag differs")
	require.False(t, SummaryCheck(sidecar, filepath.Join(dir, "nope.a"), 3, 9, container.Tag(555)), "expected stale when artifact missing")
}
