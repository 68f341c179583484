// Package lockfile implements cx's optional "cx.lock.toml" companion
// manifest: a TOML sidecar, parsed with pelletier/go-toml/v2, whose
// [[profile]] entries carry an expr-lang/expr boolean guard selecting
// extra option lists by host platform. It is entirely optional — a
// project with no cx.lock.toml builds exactly as spec.md describes,
// driven only by cx.top/cx.unit.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"

	"github.com/vladshiryaev/cx/internal/config"
)

// Env is the evaluation environment exposed to a profile's When guard.
type Env struct {
	TargetOS   string `expr:"target_os"`
	TargetArch string `expr:"target_arch"`
}

// Profile is one [[profile]] entry.
type Profile struct {
	When         string   `toml:"when"`
	CCOptions    []string `toml:"cc_options"`
	CXXOptions   []string `toml:"cxx_options"`
	LDOptions    []string `toml:"ld_options"`
	IncludePath  []string `toml:"include_path"`
	ExternalLibs []string `toml:"external_libs"`
}

// File is the parsed cx.lock.toml document.
type File struct {
	Profile []Profile `toml:"profile"`
}

// Load reads and parses dir/cx.lock.toml. It returns (nil, nil) if the
// file does not exist — the manifest is optional.
func Load(dir string) (*File, error) {
	data, err := os.ReadFile(filepath.Join(dir, "cx.lock.toml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("lockfile: %w", err)
	}
	return &f, nil
}

func defaultEnv() Env {
	return Env{TargetOS: runtime.GOOS, TargetArch: runtime.GOARCH}
}

// Resolve evaluates every profile's When guard against the current
// host environment and merges every matching profile's option lists,
// in file order, into a fresh config.Section.
func (f *File) Resolve() (*config.Section, error) {
	out := &config.Section{}
	if f == nil {
		return out, nil
	}
	env := defaultEnv()
	for i, p := range f.Profile {
		matched := true
		if p.When != "" {
			program, err := expr.Compile(p.When, expr.Env(env), expr.AsBool())
			if err != nil {
				return nil, fmt.Errorf("lockfile: profile %d: %w", i, err)
			}
			result, err := expr.Run(program, env)
			if err != nil {
				return nil, fmt.Errorf("lockfile: profile %d: %w", i, err)
			}
			matched, _ = result.(bool)
		}
		if !matched {
			continue
		}
		out.CCOptions = append(out.CCOptions, p.CCOptions...)
		out.CXXOptions = append(out.CXXOptions, p.CXXOptions...)
		out.LDOptions = append(out.LDOptions, p.LDOptions...)
		out.IncludePath = append(out.IncludePath, p.IncludePath...)
		out.ExternalLibs = append(out.ExternalLibs, p.ExternalLibs...)
	}
	return out, nil
}
