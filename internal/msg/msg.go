// Package msg implements cx's leveled, optionally ANSI-colored output
// and its deferred error buffer: subprocess failures are coalesced
// here under one mutex and flushed exactly once, at process exit.
package msg

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Level selects how much gets printed.
type Level int

const (
	LevelError Level = iota
	LevelInfo
	LevelDebug
)

// ColorMode controls whether ANSI color is emitted.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorNever
	ColorAlways
)

// deferredCap bounds the deferred error buffer, matching the source's
// 1 MiB cap.
const deferredCap = 1 << 20

var (
	mu        sync.Mutex
	level     = LevelInfo
	colorMode = ColorAuto
	deferred  []byte
)

// SetLevel changes the active log level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetColor changes the color mode.
func SetColor(m ColorMode) {
	mu.Lock()
	defer mu.Unlock()
	colorMode = m
}

func colorEnabled() bool {
	switch colorMode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
}

func prefixFor(l Level) (string, *color.Color) {
	switch l {
	case LevelError:
		return "error", color.New(color.FgHiRed)
	case LevelDebug:
		return "trace", color.New(color.FgHiBlack)
	default:
		return "info", color.New(color.FgHiGreen)
	}
}

func say(l Level, format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l > level {
		return
	}
	prefix, c := prefixFor(l)
	text := fmt.Sprintf(format, a...)
	if colorEnabled() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", c.Sprint(prefix), text)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, text)
	}
}

// Error prints an error-level message.
func Error(format string, a ...any) { say(LevelError, format, a...) }

// Info prints an info-level message.
func Info(format string, a ...any) { say(LevelInfo, format, a...) }

// Trace prints a debug-level message.
func Trace(format string, a ...any) { say(LevelDebug, format, a...) }

// Fatal prints an error-level message, flushes the deferred buffer and
// exits the process with status 1. The CLI calls it when --sanity,
// --clean or --sync-profile fails.
func Fatal(format string, a ...any) {
	Error(format, a...)
	Flush()
	os.Exit(1)
}

// DelayedError appends to the deferred error buffer, dropping the
// message if the buffer is already at capacity.
func DelayedError(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	text := fmt.Sprintf(format, a...)
	if len(deferred)+len(text)+1 >= deferredCap {
		return
	}
	deferred = append(deferred, text...)
	deferred = append(deferred, '\n')
}

// Flush prints and clears the deferred error buffer. Called exactly
// once, at program exit.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	if len(deferred) == 0 {
		return
	}
	if colorEnabled() {
		fmt.Fprint(os.Stderr, color.HiRedString(string(deferred)))
	} else {
		fmt.Fprint(os.Stderr, string(deferred))
	}
	deferred = deferred[:0]
}

// IndentWriter prefixes every line written to it with Indent, used to
// nest subprocess or child-builder output under a parent's log line.
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			w.W.Write([]byte(w.Indent))
			w.didIndent = true
		}
		w.W.Write([]byte{c})
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return len(p), nil
}
