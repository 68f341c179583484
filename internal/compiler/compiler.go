// Package compiler implements the GCC-compatible compiler backend: it
// drives the C/C++ compiler with -MMD, converts the resulting
// make-style .d file into cx's internal dependency list, detects
// whether an object defines main via the symbol lister, archives
// static libraries and links executables.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/vladshiryaev/cx/internal/config"
	"github.com/vladshiryaev/cx/internal/container"
	"github.com/vladshiryaev/cx/internal/deps"
	"github.com/vladshiryaev/cx/internal/fingerprint"
	"github.com/vladshiryaev/cx/internal/msg"
	"github.com/vladshiryaev/cx/internal/paths"
	"github.com/vladshiryaev/cx/internal/runner"
)

// forbidden user-supplied options: these are owned by the driver logic.
var forbidden = map[string]bool{"-c": true, "-o": true, "-S": true, "-E": true}

func filterForbidden(opts []string) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if !forbidden[o] {
			out = append(out, o)
		}
	}
	return out
}

// DetectToolTag runs "<cc> -dumpfullversion" and folds the compiler's
// path and reported version into a single 32-bit identity tag, used as
// DepsHeader.ToolTag.
func DetectToolTag(ccPath string) (uint32, error) {
	r := runner.New(ccPath, "-dumpfullversion")
	ok, err := r.Run()
	if err != nil {
		return 0, err
	}
	version := strings.Join(r.Output, "\n")
	if !ok || r.ExitCode != 0 {
		version = ""
	}
	return container.HashBytes([]byte(ccPath + "|" + version)), nil
}

// Result is the outcome of one Compile invocation.
type Result struct {
	OK      bool
	HasMain bool
	ObjPath string
	Deps    *deps.Dependencies
}

// Compile invokes the driver on sourcePath (relative to unitDir),
// writing its object and make-deps file under cacheDir. It forbids the
// option-file from supplying -c/-o/-S/-E.
func Compile(cfg *config.Config, unitDir, sourcePath, cacheDir string, isCxx bool, keepDeps bool) Result {
	base := strings.TrimSuffix(sourcePath, paths.GetSuffix(sourcePath))
	objPath := paths.Cat(cacheDir, base+paths.GetSuffix(sourcePath)+".o")
	dPath := paths.Cat(cacheDir, base+paths.GetSuffix(sourcePath)+".d")

	driver := cfg.Profile.CC
	opts := filterForbidden(cfg.CCOptions)
	if isCxx {
		driver = cfg.Profile.CXX
		opts = filterForbidden(cfg.CXXOptions)
	}
	if driver == "" {
		return Result{OK: false}
	}

	args := []string{driver, "-fdiagnostics-color=always", "-MMD"}
	for _, p := range cfg.IncludePath {
		args = append(args, "-I"+p)
	}
	args = append(args, "-I..", "-I../..", "-I../../..", "-I../../../..")
	args = append(args, opts...)
	// The driver runs in unitDir, so its source and output paths are
	// given relative to unitDir.
	relObj, err := filepath.Rel(unitDir, objPath)
	if err != nil {
		relObj = objPath
	}
	args = append(args, "-c", sourcePath, "-o", relObj)

	previousD, _ := os.ReadFile(dPath)

	r := runner.New(args...)
	r.Dir = unitDir
	ok, err := r.Run()
	if err != nil || !ok || r.ExitCode != 0 {
		header := fmt.Sprintf("While compiling %s", sourcePath)
		reportFailure(header, r)
		deps.Delete(objPath + ".deps")
		return Result{OK: false}
	}

	if keepDeps && previousD != nil {
		logDFileDiff(sourcePath, previousD, dPath)
	}

	hasMain, err := containsMain(cfg.Profile.NM, objPath)
	if err != nil {
		reportFailure(fmt.Sprintf("While scanning symbols of %s", objPath), nil)
		return Result{OK: false}
	}

	d, err := convertGccDeps(dPath, unitDir)
	if err != nil {
		reportFailure(fmt.Sprintf("While reading dependency output for %s", sourcePath), nil)
		deps.Delete(objPath + ".deps")
		return Result{OK: false}
	}
	if !keepDeps {
		_ = os.Remove(dPath)
	}

	optTag := cfg.COptionsTag
	if isCxx {
		optTag = cfg.CXXOptionsTag
	}
	flags := uint8(0)
	if hasMain {
		flags |= deps.FlagHasMain
	}
	d.Header = deps.Header{Magic: deps.Magic, OptTag: optTag, Flags: flags}
	return Result{OK: true, HasMain: hasMain, ObjPath: objPath, Deps: d}
}

func containsMain(nmPath, objPath string) (bool, error) {
	if nmPath == "" {
		nmPath = "nm"
	}
	r := runner.New(nmPath, "--no-sort", "--defined-only", "--portability", objPath)
	ok, err := r.Run()
	if err != nil {
		return false, err
	}
	if !ok || r.ExitCode != 0 {
		return false, fmt.Errorf("compiler: %s failed on %s", nmPath, objPath)
	}
	for _, line := range r.Output {
		if strings.HasPrefix(line, "main T ") || strings.HasPrefix(line, "_main T ") {
			return true, nil
		}
	}
	return false, nil
}

// convertGccDeps parses a make-style .d file into an internal
// FileStateList: each dependency path is rebased against unitDir,
// fingerprinted, and stored in its original unit-relative form.
func convertGccDeps(dPath, unitDir string) (*deps.Dependencies, error) {
	data, err := os.ReadFile(dPath)
	if err != nil {
		return nil, err
	}
	names := parseMakeDeps(data)
	list := &container.FileStateList{}
	for _, name := range names {
		tag, err := fingerprintOf(paths.Rebase(unitDir, name))
		if err != nil {
			return nil, err
		}
		list.Add(tag, name)
	}
	return &deps.Dependencies{Files: *list}, nil
}

// parseMakeDeps tokenizes the prerequisite list of a make-style rule,
// handling "\"-line continuations and "\ "-escaped embedded spaces.
func parseMakeDeps(data []byte) []string {
	s := string(data)
	s = strings.ReplaceAll(s, "\\\r\n", " ")
	s = strings.ReplaceAll(s, "\\\n", " ")
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return nil
	}
	rest := s[colon+1:]
	var names []string
	var cur strings.Builder
	i, n := 0, len(rest)
	for i < n {
		c := rest[i]
		switch {
		case c == '\\' && i+1 < n && rest[i+1] == ' ':
			cur.WriteByte(' ')
			i += 2
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if cur.Len() > 0 {
				names = append(names, cur.String())
				cur.Reset()
			}
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if cur.Len() > 0 {
		names = append(names, cur.String())
	}
	return names
}

// MakeLibrary archives objs into a static library at libPath, deleting
// any stale artifact first.
func MakeLibrary(arPath, libPath string, objs []string) error {
	if arPath == "" {
		arPath = "ar"
	}
	_ = os.Remove(libPath)
	args := append([]string{arPath, "crs", libPath}, objs...)
	r := runner.New(args...)
	ok, err := r.Run()
	if err != nil {
		return err
	}
	if !ok || r.ExitCode != 0 {
		reportFailure(fmt.Sprintf("While packaging %s", libPath), r)
		return fmt.Errorf("compiler: archiving %s failed", libPath)
	}
	return nil
}

// Link invokes the linker, wrapping any libs in -Wl,--start-group/--end-group
// and appending -lpthread. On failure the stale executable is deleted.
func Link(cfg *config.Config, linker, exePath string, mainObj string, libs []string) error {
	if linker == "" {
		linker = cfg.Profile.Linker
	}
	if linker == "" {
		linker = cfg.Profile.CXX
	}
	args := []string{linker, mainObj}
	if len(libs) > 0 {
		args = append(args, "-Wl,--start-group")
		args = append(args, libs...)
		args = append(args, "-Wl,--end-group")
	}
	args = append(args, filterForbidden(cfg.LDOptions)...)
	args = append(args, cfg.ExternalLibs...)
	args = append(args, "-lpthread")
	args = append(args, "-o", exePath)

	r := runner.New(args...)
	ok, err := r.Run()
	if err != nil || !ok || r.ExitCode != 0 {
		reportFailure(fmt.Sprintf("While linking %s", exePath), r)
		_ = os.Remove(exePath)
		return fmt.Errorf("compiler: link of %s failed", exePath)
	}
	return nil
}

// logDFileDiff reports, at Trace level, a colored inline diff (not a
// unified diff) between a translation unit's previous and newly
// generated make-deps output —
// a debugging aid for understanding why a header set changed.
func logDFileDiff(sourcePath string, previous []byte, dPath string) {
	current, err := os.ReadFile(dPath)
	if err != nil {
		return
	}
	if string(previous) == string(current) {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(previous), string(current), false)
	msg.Trace("%s: dependency set changed:\n%s", sourcePath, dmp.DiffPrettyText(diffs))
}

func fingerprintOf(path string) (container.Tag, error) {
	return fingerprint.FileTag(path)
}

func reportFailure(header string, r *runner.Runner) {
	if r == nil {
		msg.DelayedError("%s", header)
		return
	}
	msg.DelayedError("%s\n%s", header, strings.Join(r.Output, "\n"))
}
