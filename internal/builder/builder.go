// Package builder implements the unit builder (C10): the core
// two-phase control loop that scans a directory, compiles its sources
// in parallel, packages non-main objects into a static library,
// transitively discovers sibling units from compiler-emitted include
// graphs, links main-bearing objects and finally execs the selected
// executable.
package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/vladshiryaev/cx/internal/compiler"
	"github.com/vladshiryaev/cx/internal/config"
	"github.com/vladshiryaev/cx/internal/container"
	"github.com/vladshiryaev/cx/internal/deps"
	"github.com/vladshiryaev/cx/internal/fingerprint"
	"github.com/vladshiryaev/cx/internal/lockfile"
	"github.com/vladshiryaev/cx/internal/msg"
	"github.com/vladshiryaev/cx/internal/paths"
	"github.com/vladshiryaev/cx/internal/runner"
	"github.com/vladshiryaev/cx/internal/sched"
)

// Options controls one Build invocation, mirroring the CLI surface.
type Options struct {
	Force       bool
	KeepDeps    bool
	SkipRunning bool
	SkipLinking bool
	RunArgs     []string
}

type mainObject struct {
	srcName string
	objPath string
	tag     container.Tag
	exePath string
}

// Builder is one unit's worth of build state. The master Builder (the
// one a Build(path) call constructs) owns the shared Context; every
// transitively discovered sibling unit gets its own child Builder that
// borrows the master's profile, compiler identity and cache root.
type Builder struct {
	ctx     *Context
	master  *Builder // nil for the master itself
	options Options

	unitDir     string
	sourceToRun string
	cacheDir    string

	config *config.Config
	batch  *sched.Batch

	sources []sourceFile

	tagMu    sync.Mutex
	tagCache *container.FileStateDict

	skipDepsCheck bool

	objList     []string
	objListMain []mainObject
	objTag      container.Tag
}

type sourceFile struct {
	name string
	kind sourceKind
}

// NewMaster constructs the root builder for one Build(path) invocation.
func NewMaster(ctx *Context, options Options) *Builder {
	return &Builder{
		ctx:      ctx,
		options:  options,
		tagCache: container.NewFileStateDict(),
	}
}

func (b *Builder) isMaster() bool { return b.master == nil }

func (b *Builder) root() *Builder {
	r := b
	for r.master != nil {
		r = r.master
	}
	return r
}

// Build runs phase 1 then phase 2 for path, the CLI's positional NAME
// argument ("" means the current directory, run-suppressed).
func (b *Builder) Build(path string) bool {
	if !b.buildPhase1(path) {
		return false
	}
	return b.buildPhase2()
}

func newChild(master *Builder, unitDir string) *Builder {
	return &Builder{
		ctx:      master.ctx,
		master:   master,
		options:  master.options,
		tagCache: container.NewFileStateDict(),
	}
}

// buildPhase1 resolves the target, loads the profile/config, scans the
// unit directory and queues one CompileJob per source. It returns
// immediately after queueing; it never waits for a job to finish.
func (b *Builder) buildPhase1(path string) bool {
	unitDir, sourceToRun, skipRunning, err := processPath(path)
	if err != nil {
		msg.Error("%s", err)
		return false
	}
	if skipRunning {
		b.options.SkipRunning = true
	}
	b.unitDir = unitDir
	b.sourceToRun = sourceToRun

	if b.isMaster() {
		if err := b.loadProfile(); err != nil {
			msg.Error("loading profile: %s", err)
			return false
		}
	}
	if err := b.loadUnitConfig(); err != nil {
		msg.Error("loading %s/cx.unit: %s", b.unitDir, err)
		return false
	}

	if err := b.scanDirectory(); err != nil {
		msg.Error("scanning %s: %s", b.unitDir, err)
		return false
	}

	b.cacheDir = filepath.Join(b.unitDir, ".cx.cache", b.ctx.ConfigID)
	created, err := ensureCacheDir(b.cacheDir)
	if err != nil {
		msg.Error("creating cache dir %s: %s", b.cacheDir, err)
		return false
	}
	if created {
		b.skipDepsCheck = true
	}

	b.ctx.claimUnit(normalizedUnitKey(b.unitDir))

	b.batch = b.ctx.Pool.NewBatch()
	for _, src := range b.sources {
		if src.kind != kindC && src.kind != kindCxx {
			continue
		}
		b.batch.Send(&CompileJob{
			cfg:      b.config,
			unitDir:  b.unitDir,
			cacheDir: b.cacheDir,
			src:      src,
			force:    b.options.Force || b.skipDepsCheck,
			keepDeps: b.options.KeepDeps,
			toolTag:  b.ctx.profileTag,
			lookup:   b.lookupFileTag,
		})
	}
	return true
}

func normalizedUnitKey(unitDir string) string {
	abs, err := filepath.Abs(unitDir)
	if err != nil {
		return paths.Normalize(unitDir)
	}
	return abs
}

// buildPhase2 drains the batch, assembles the unit's library, and (for
// the master only) links and execs.
func (b *Builder) buildPhase2() bool {
	failed := false
	for {
		j := b.batch.Receive()
		if j == nil {
			break
		}
		switch job := j.(type) {
		case *CompileJob:
			if !job.ok {
				failed = true
				continue
			}
			b.onCompileDone(job)
		case *LibraryAssemblyJob:
			b.onLibraryAssemblyDone(job)
		}
	}
	b.batch.Close()
	if failed {
		return false
	}

	if len(b.objList) > 0 {
		libPath := filepath.Join(b.cacheDir, "library")
		sidecarPath := libPath + ".deps"
		fresh := !b.options.Force && deps.SummaryCheck(sidecarPath, libPath, b.ctx.profileTag, 0, b.objTag)
		if !fresh {
			if err := compiler.MakeLibrary(b.ctx.profile.AR, libPath, b.objList); err != nil {
				deps.Delete(sidecarPath)
				return false
			}
			d := &deps.Dependencies{Header: deps.Header{Magic: deps.Magic, ToolTag: b.ctx.profileTag, InputsTag: uint64(b.objTag)}}
			if err := d.Save(sidecarPath); err != nil {
				msg.Error("writing %s: %s", sidecarPath, err)
				return false
			}
		}
	}

	if !b.isMaster() {
		return true
	}

	if b.options.SkipLinking || len(b.objListMain) == 0 {
		return true
	}
	return b.linkAndRun()
}

func (b *Builder) onCompileDone(job *CompileJob) {
	d := job.deps
	objPath := job.objPath
	if job.hasMain {
		tag, err := fingerprint.FileTag(objPath)
		if err != nil {
			tag = 0
		}
		b.objListMain = append(b.objListMain, mainObject{srcName: job.src.name, objPath: objPath, tag: tag})
	} else {
		b.objList = append(b.objList, objPath)
		if tag, err := fingerprint.FileTag(objPath); err == nil {
			b.objTag += tag
		}
	}

	for _, e := range d.Files.Entries() {
		dir := paths.GetDirectory(e.Name)
		if dir == "" {
			continue
		}
		dir = paths.Normalize(dir)
		if dir == "" {
			continue
		}
		childUnit := filepath.Join(b.unitDir, dir)
		key := normalizedUnitKey(childUnit)
		if !b.ctx.claimUnit(key) {
			continue
		}
		child := newChild(b.root(), childUnit+"/")
		if !child.buildPhase1(childUnit + "/") {
			continue
		}
		b.batch.Send(&LibraryAssemblyJob{builder: child})
	}
}

func (b *Builder) onLibraryAssemblyDone(job *LibraryAssemblyJob) {
	if !job.ok {
		return
	}
	child := job.builder
	libPath := filepath.Join(child.cacheDir, "library")
	if _, err := os.Stat(libPath); err != nil {
		return
	}
	tag, err := fingerprint.FileTag(libPath)
	if err != nil {
		return
	}
	b.ctx.markAvailable(normalizedUnitKey(child.unitDir), libPath, tag)
}

func (b *Builder) linkAndRun() bool {
	candidates := b.objListMain
	if b.sourceToRun != "" {
		var filtered []mainObject
		for _, m := range candidates {
			if m.srcName == b.sourceToRun {
				filtered = append(filtered, m)
			}
		}
		candidates = filtered
	}

	libs := b.discoveredLibraryPaths()
	libsTag := b.ctx.snapshotLibsTag()

	linkCfg := *b.config
	linkCfg.ExternalLibs = b.ctx.snapshotExternalLibs()

	for i := range candidates {
		m := &candidates[i]
		m.exePath = m.objPath + ".exe"
		sidecarPath := m.exePath + ".deps"
		execTag := m.tag + libsTag
		fresh := !b.options.Force && deps.SummaryCheck(sidecarPath, m.exePath, b.ctx.profileTag, b.config.LDOptionsTag, execTag)
		if fresh {
			continue
		}
		if err := compiler.Link(&linkCfg, b.ctx.profile.Linker, m.exePath, m.objPath, libs); err != nil {
			deps.Delete(sidecarPath)
			return false
		}
		d := &deps.Dependencies{Header: deps.Header{Magic: deps.Magic, ToolTag: b.ctx.profileTag, OptTag: b.config.LDOptionsTag, InputsTag: uint64(execTag)}}
		if err := d.Save(sidecarPath); err != nil {
			msg.Error("writing %s: %s", sidecarPath, err)
			return false
		}
	}

	if b.options.SkipRunning {
		return true
	}
	switch len(candidates) {
	case 0:
		msg.Error("no matching executable to run in %s", b.unitDir)
		return false
	case 1:
		return b.exec(candidates[0].exePath)
	default:
		msg.Error("ambiguous: multiple executables in %s, specify a source", b.unitDir)
		return false
	}
}

func (b *Builder) discoveredLibraryPaths() []string {
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	out := make([]string, 0, len(b.ctx.libPaths))
	for _, p := range b.ctx.libPaths {
		out = append(out, p)
	}
	return out
}

func (b *Builder) exec(exePath string) bool {
	if os.Getenv("EXECUTED_BY_CX") != "" {
		msg.Error("refusing to run %s: recursive cx invocation (EXECUTED_BY_CX already set)", exePath)
		return false
	}
	abs, err := filepath.Abs(exePath)
	if err != nil {
		msg.Error("resolving %s: %s", exePath, err)
		return false
	}
	if err := os.Setenv("EXECUTED_BY_CX", "1"); err != nil {
		msg.Error("%s", err)
		return false
	}
	r := runner.New(append([]string{abs}, b.options.RunArgs...)...)
	if err := r.Exec(); err != nil {
		msg.Error("exec %s: %s", abs, err)
		return false
	}
	return true // unreachable on success; kept for callers expecting a bool
}

func (b *Builder) scanDirectory() error {
	if b.config != nil && b.config.SourceGlob != "" {
		return b.scanDirectoryGlob(b.config.SourceGlob)
	}
	entries, err := os.ReadDir(b.unitDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		kind := classify(e.Name())
		if kind == kindOther {
			continue
		}
		b.sources = append(b.sources, sourceFile{name: e.Name(), kind: kind})
	}

	// Seed the tag cache by stat-ing every scanned entry concurrently:
	// on a large unit directory this overlaps many syscalls, bounded to
	// one in flight per core.
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, src := range b.sources {
		name := src.name
		g.Go(func() error {
			if info, err := os.Stat(filepath.Join(b.unitDir, name)); err == nil {
				b.tagMu.Lock()
				b.tagCache.Put(fingerprint.Of(info.Size(), info.ModTime()), name)
				b.tagMu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return nil
}

// scanDirectoryGlob replaces the plain directory listing with a
// doublestar pattern match, for units whose cx.unit declares
// source_glob. Matches are still restricted to the unit's own
// directory entries (no recursion into sibling units).
func (b *Builder) scanDirectoryGlob(pattern string) error {
	matches, err := doublestar.Glob(os.DirFS(b.unitDir), pattern)
	if err != nil {
		return err
	}
	for _, name := range matches {
		if strings.Contains(name, "/") {
			continue
		}
		kind := classify(name)
		if kind == kindOther {
			continue
		}
		b.sources = append(b.sources, sourceFile{name: name, kind: kind})
		if tag, err := fingerprint.FileTag(filepath.Join(b.unitDir, name)); err == nil {
			b.tagCache.Put(tag, name)
		}
	}
	return nil
}

func (b *Builder) lookupFileTag(name string) (container.Tag, bool) {
	b.tagMu.Lock()
	defer b.tagMu.Unlock()
	if t, ok := b.tagCache.Find(name); ok {
		return t, true
	}
	tag, err := fingerprint.FileTag(filepath.Join(b.unitDir, name))
	if err != nil {
		return 0, false
	}
	b.tagCache.Put(tag, name)
	return tag, true
}

func ensureCacheDir(dir string) (created bool, err error) {
	if _, statErr := os.Stat(dir); statErr == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return false, err
	}
	return true, nil
}

func findUpward(startDir, filename string) (dir string, ok bool) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, filename)); err == nil {
			return abs, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

func (b *Builder) loadProfile() error {
	topDir, ok := findUpward(b.unitDir, "cx.top")
	var f *config.File
	if ok {
		data, err := os.ReadFile(filepath.Join(topDir, "cx.top"))
		if err != nil {
			return err
		}
		f, err = config.Parse(data, topDir, true)
		if err != nil {
			return err
		}
	} else {
		f = &config.File{}
	}
	p := f.Profile
	if p.CC == "" {
		p.CC = "gcc"
	}
	if p.CXX == "" {
		p.CXX = "g++"
	}
	if p.Linker == "" {
		p.Linker = p.CXX
	}
	if p.AR == "" {
		p.AR = "ar"
	}
	if p.NM == "" {
		p.NM = "nm"
	}
	tag, err := compiler.DetectToolTag(p.CC)
	if err != nil {
		return err
	}
	b.ctx.profile = p
	b.ctx.profileTag = tag
	b.ctx.commonCfg = f.Resolve(b.ctx.ConfigID)

	lockDir := topDir
	if !ok {
		lockDir = b.unitDir
	}
	lock, err := lockfile.Load(lockDir)
	if err != nil {
		return err
	}
	lockCfg, err := lock.Resolve()
	if err != nil {
		return err
	}
	b.ctx.lockCfg = lockCfg
	return nil
}

func (b *Builder) loadUnitConfig() error {
	var sec *config.Section
	data, err := os.ReadFile(filepath.Join(b.unitDir, "cx.unit"))
	if err == nil {
		f, perr := config.Parse(data, b.unitDir, false)
		if perr != nil {
			return perr
		}
		sec = f.Resolve(b.ctx.ConfigID)
	} else {
		sec = &config.Section{}
	}
	common := b.ctx.commonCfg
	if common == nil {
		common = &config.Section{}
	}
	b.config = config.Merge(b.ctx.profile, b.ctx.lockCfg, common, sec)
	b.ctx.addExternalLibs(b.config.ExternalLibs)
	return nil
}

// processPath resolves the CLI's NAME argument into (unitDir,
// sourceToRun, skipRunning).
func processPath(path string) (unitDir, sourceToRun string, skipRunning bool, err error) {
	if path == "" {
		return "./", "", true, nil
	}
	_, name, ok := paths.SplitPath(path)
	if !ok {
		name = path
	}
	if isSource(name) {
		dir, src, ok := paths.SplitPath(path)
		if !ok {
			dir, src = "./", path
		}
		if dir == "" {
			dir = "./"
		}
		return dir, src, false, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", false, fmt.Errorf("%s: %w", path, err)
	}
	unitDir = path
	if !strings.HasSuffix(unitDir, "/") {
		unitDir += "/"
	}
	return unitDir, "", false, nil
}

// Clean removes every .cx.cache directory under path (or, if configID
// is non-empty, only the matching .cx.cache/<configID> subtree).
func Clean(path, configID string) error {
	if path == "" {
		path = "."
	}
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || info.Name() != ".cx.cache" {
			return nil
		}
		target := p
		if configID != "" {
			target = filepath.Join(p, configID)
		}
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		if configID == "" {
			return filepath.SkipDir
		}
		return nil
	})
}
