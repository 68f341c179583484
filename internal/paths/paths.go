// Package paths implements the path utilities used throughout cx: join,
// split, normalize, rebase and suffix handling. Every function treats
// "/" as the only separator regardless of host OS, matching the
// cx.top/cx.unit path grammar and the compiler's include-path handling.
package paths

import "strings"

// IsAbs reports whether p is an absolute path.
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// Normalize collapses "." and ".." components. It never touches the
// filesystem. Normalize is idempotent: Normalize(Normalize(p)) == Normalize(p).
func Normalize(p string) string {
	abs := IsAbs(p)
	parts := strings.Split(p, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			// drop
		case "..":
			if n := len(stack); n > 0 && stack[n-1] != ".." {
				stack = stack[:n-1]
			} else if !abs {
				stack = append(stack, "..")
			}
			// absolute paths silently discard a ".." above root
		default:
			stack = append(stack, part)
		}
	}
	joined := strings.Join(stack, "/")
	if abs {
		return "/" + joined
	}
	return joined
}

// Cat joins two path segments with a single separating slash.
func Cat(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case strings.HasSuffix(a, "/"):
		return a + b
	default:
		return a + "/" + b
	}
}

// Rebase resolves path relative to base. If path is already absolute it
// is returned unchanged.
func Rebase(base, path string) string {
	if IsAbs(path) {
		return path
	}
	return Normalize(Cat(base, path))
}

// SplitPath splits p into its directory part (including a trailing
// slash) and its final component. It fails if p has no directory part.
func SplitPath(p string) (dir, name string, ok bool) {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return "", "", false
	}
	return p[:idx+1], p[idx+1:], true
}

// GetDirectory returns the directory component of p (including a
// trailing slash), or "" if p has none.
func GetDirectory(p string) string {
	dir, _, ok := SplitPath(p)
	if !ok {
		return ""
	}
	return dir
}

// AddSuffix appends suffix to path verbatim, e.g. AddSuffix("main.cpp", ".o").
func AddSuffix(path, suffix string) string {
	return path + suffix
}

// GetSuffix returns the extension (including the leading dot) of the
// final path component, or "" if there is none.
func GetSuffix(p string) string {
	_, name, _ := SplitPath(p)
	if name == "" {
		name = p
	}
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return ""
	}
	return name[idx:]
}

// StripBasePath removes a leading base from path if present. Not used by
// the core build control loop; kept for callers that need to render
// cache paths relative to a unit directory for diagnostics.
func StripBasePath(base, path string) string {
	if base == "" {
		return path
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if strings.HasPrefix(path, base) {
		return path[len(base):]
	}
	return path
}
