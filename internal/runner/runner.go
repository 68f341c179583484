// Package runner builds argument vectors and either captures a
// subprocess's output or exec-replaces the current process with it.
package runner

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/vladshiryaev/cx/internal/msg"
)

// Runner holds one subprocess invocation.
type Runner struct {
	Dir      string
	Args     []string
	Output   []string
	ExitCode int
}

// New builds a Runner for args, with no working-directory override.
func New(args ...string) *Runner {
	return &Runner{Args: args}
}

func haveDir(dir string) bool {
	return dir != "" && dir != "." && dir != "./"
}

func logArgs(args []string, dir string) {
	if dir != "" && haveDir(dir) {
		msg.Trace("running in %s: %s", dir, strings.Join(args, " "))
	} else {
		msg.Trace("running: %s", strings.Join(args, " "))
	}
}

// Run forks the subprocess, captures its combined stdout/stderr split
// into lines (trailing newline stripped per line) and waits for it to
// exit. It reports false only if the process could not be started at
// all; a nonzero exit is reflected in ExitCode, not the return value.
func (r *Runner) Run() (bool, error) {
	if len(r.Args) == 0 {
		return false, nil
	}
	logArgs(r.Args, r.Dir)
	cmd := exec.Command(r.Args[0], r.Args[1:]...)
	if haveDir(r.Dir) {
		cmd.Dir = r.Dir
	}
	out, err := cmd.CombinedOutput()
	r.Output = splitLines(out)
	if exitErr, ok := err.(*exec.ExitError); ok {
		r.ExitCode = exitErr.ExitCode()
		return true, nil
	}
	if err != nil {
		return false, err
	}
	r.ExitCode = 0
	return true, nil
}

func splitLines(out []byte) []string {
	text := strings.TrimRight(string(out), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Exec replaces the current process image with the subprocess, after
// an optional chdir. It never returns on success.
func (r *Runner) Exec() error {
	if haveDir(r.Dir) {
		if err := os.Chdir(r.Dir); err != nil {
			return err
		}
	}
	path, err := exec.LookPath(r.Args[0])
	if err != nil {
		return err
	}
	logArgs(r.Args, r.Dir)
	return syscall.Exec(path, r.Args, os.Environ())
}
