package builder

import (
	"strings"

	"github.com/vladshiryaev/cx/internal/compiler"
	"github.com/vladshiryaev/cx/internal/config"
	"github.com/vladshiryaev/cx/internal/container"
	"github.com/vladshiryaev/cx/internal/deps"
	"github.com/vladshiryaev/cx/internal/msg"
	"github.com/vladshiryaev/cx/internal/paths"
)

// CompileJob compiles one translation unit, consulting its sidecar's
// full freshness check before actually invoking the compiler. It
// implements sched.Job; the scheduler's worker pool calls Run on a
// worker goroutine, and the owning Builder reads the (unexported) result
// fields back after Batch.Receive hands the job back.
type CompileJob struct {
	cfg      *config.Config
	unitDir  string
	cacheDir string
	src      sourceFile
	force    bool
	keepDeps bool
	toolTag  uint32
	lookup   func(name string) (container.Tag, bool)

	ok      bool
	hasMain bool
	objPath string
	deps    *deps.Dependencies
}

// Run satisfies sched.Job.
func (j *CompileJob) Run() {
	isCxx := j.src.kind == kindCxx
	base := strings.TrimSuffix(j.src.name, paths.GetSuffix(j.src.name))
	objPath := paths.Cat(j.cacheDir, base+paths.GetSuffix(j.src.name)+".o")
	sidecarPath := objPath + ".deps"

	optTag := j.cfg.COptionsTag
	if isCxx {
		optTag = j.cfg.CXXOptionsTag
	}

	if !j.force {
		if fresh, sidecar := deps.FullCheck(sidecarPath, objPath, j.toolTag, optTag, j.lookup); fresh {
			j.ok = true
			j.hasMain = sidecar.Header.HasMain()
			j.objPath = objPath
			j.deps = sidecar
			return
		}
	}

	res := compiler.Compile(j.cfg, j.unitDir, j.src.name, j.cacheDir, isCxx, j.keepDeps)
	if !res.OK {
		j.ok = false
		return
	}

	res.Deps.Header.ToolTag = j.toolTag
	var sum container.Tag
	for _, e := range res.Deps.Files.Entries() {
		sum += e.Tag
	}
	res.Deps.Header.InputsTag = uint64(sum)
	if err := res.Deps.Save(sidecarPath); err != nil {
		msg.Error("writing %s: %s", sidecarPath, err)
		j.ok = false
		return
	}

	j.ok = true
	j.hasMain = res.HasMain
	j.objPath = res.ObjPath
	j.deps = res.Deps
}

// LibraryAssemblyJob wraps a transitively discovered child unit
// builder: its Run drives the child's phase 2 (draining its own
// compile batch, archiving its library) on a worker goroutine, so
// sibling units assemble concurrently with their parent's own
// compilation.
type LibraryAssemblyJob struct {
	builder *Builder
	ok      bool
}

// Run satisfies sched.Job.
func (j *LibraryAssemblyJob) Run() {
	j.ok = j.builder.buildPhase2()
}
