// Package config implements the cx.top / cx.unit option-file grammar:
// line-oriented, with "#"-to-end-of-line comments, backslash line
// continuations, "[section]" switches and shell-like quoted/escaped
// value tokens. It is deliberately not TOML — cx.top predates any
// structured-document ambitions and a hand-rolled scanner is the
// correct fit for its grammar.
package config

import (
	"fmt"
	"strings"

	"github.com/vladshiryaev/cx/internal/container"
	"github.com/vladshiryaev/cx/internal/paths"
)

// AllSections is the section name that always applies, regardless of
// the selected configuration id.
const AllSections = "*"

// Profile holds the toolchain paths that may only be set in cx.top.
type Profile struct {
	CC     string
	CXX    string
	AR     string
	NM     string
	Linker string
}

// Section holds the option lists that any ("*" or named) section may carry.
type Section struct {
	CCOptions    []string
	CXXOptions   []string
	LDOptions    []string
	IncludePath  []string
	ExternalLibs []string

	// SourceGlob is the optional, additive "source_glob" directive: a
	// doublestar pattern (cx.unit-scoped only) that widens or narrows
	// which files in the unit directory are scanned as sources. Unset
	// (""), the default directory listing applies unchanged.
	SourceGlob string
}

func (s *Section) merge(o *Section) {
	s.CCOptions = append(s.CCOptions, o.CCOptions...)
	s.CXXOptions = append(s.CXXOptions, o.CXXOptions...)
	s.LDOptions = append(s.LDOptions, o.LDOptions...)
	s.IncludePath = append(s.IncludePath, o.IncludePath...)
	s.ExternalLibs = append(s.ExternalLibs, o.ExternalLibs...)
	if o.SourceGlob != "" {
		s.SourceGlob = o.SourceGlob
	}
}

// File is a parsed cx.top or cx.unit: an optional Profile (only ever
// populated for cx.top) plus any number of named sections.
type File struct {
	Profile  Profile
	Sections map[string]*Section
}

func (f *File) section(name string) *Section {
	if f.Sections == nil {
		f.Sections = map[string]*Section{}
	}
	s, ok := f.Sections[name]
	if !ok {
		s = &Section{}
		f.Sections[name] = s
	}
	return s
}

// Resolve merges the "*" section with the named configId section,
// producing the Section that applies for that configuration.
func (f *File) Resolve(configID string) *Section {
	out := &Section{}
	if s, ok := f.Sections[AllSections]; ok {
		out.merge(s)
	}
	if configID != AllSections {
		if s, ok := f.Sections[configID]; ok {
			out.merge(s)
		}
	}
	return out
}

// Parse parses the text of a cx.top (allowProfile=true) or cx.unit
// (allowProfile=false) file. baseDir rebases include_path entries
// against the file's own directory.
func Parse(data []byte, baseDir string, allowProfile bool) (*File, error) {
	f := &File{}
	section := AllSections
	for lineNo, line := range joinContinuations(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			end := strings.IndexByte(line, ']')
			if end < 0 {
				return nil, fmt.Errorf("config: %d: unterminated section header", lineNo+1)
			}
			name := strings.TrimSpace(line[1:end])
			if name == "" {
				name = AllSections
			}
			section = name
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, fmt.Errorf("config: %d: expected 'key: value'", lineNo+1)
		}
		key := strings.TrimSpace(line[:colon])
		values := tokenizeValues(line[colon+1:])
		if err := f.apply(key, values, section, baseDir, allowProfile); err != nil {
			return nil, fmt.Errorf("config: %d: %w", lineNo+1, err)
		}
	}
	return f, nil
}

func (f *File) apply(key string, values []string, section, baseDir string, allowProfile bool) error {
	switch key {
	case "gcc":
		if !allowProfile {
			return fmt.Errorf("%q is only valid in cx.top", key)
		}
		if len(values) > 0 {
			f.Profile.CC = values[0]
		}
	case "g++":
		if !allowProfile {
			return fmt.Errorf("%q is only valid in cx.top", key)
		}
		if len(values) > 0 {
			f.Profile.CXX = values[0]
			f.Profile.Linker = values[0]
		}
	case "ar":
		if !allowProfile {
			return fmt.Errorf("%q is only valid in cx.top", key)
		}
		if len(values) > 0 {
			f.Profile.AR = values[0]
		}
	case "nm":
		if !allowProfile {
			return fmt.Errorf("%q is only valid in cx.top", key)
		}
		if len(values) > 0 {
			f.Profile.NM = values[0]
		}
	case "cc_options":
		s := f.section(section)
		s.CCOptions = append(s.CCOptions, values...)
		s.CXXOptions = append(s.CXXOptions, values...)
	case "c_options":
		f.section(section).CCOptions = append(f.section(section).CCOptions, values...)
	case "cxx_options":
		f.section(section).CXXOptions = append(f.section(section).CXXOptions, values...)
	case "ld_options":
		f.section(section).LDOptions = append(f.section(section).LDOptions, values...)
	case "include_path":
		s := f.section(section)
		for _, v := range values {
			s.IncludePath = append(s.IncludePath, paths.Rebase(baseDir, v))
		}
	case "external_libs":
		f.section(section).ExternalLibs = append(f.section(section).ExternalLibs, values...)
	case "source_glob":
		if !allowProfile {
			if len(values) > 0 {
				f.section(section).SourceGlob = values[0]
			}
			return nil
		}
		return fmt.Errorf("%q is only valid in cx.unit", key)
	default:
		return fmt.Errorf("unknown directive %q", key)
	}
	return nil
}

// joinContinuations splits text into logical lines, joining any line
// ending in an unescaped backslash with the line that follows it.
func joinContinuations(text string) []string {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	raw := strings.Split(text, "\n")
	var logical []string
	var cur strings.Builder
	have := false
	for _, line := range raw {
		if trailing := len(line) - len(strings.TrimRight(line, "\\")); trailing%2 == 1 {
			cur.WriteString(line[:len(line)-1])
			have = true
			continue
		}
		if have {
			cur.WriteString(line)
			logical = append(logical, cur.String())
			cur.Reset()
			have = false
		} else {
			logical = append(logical, line)
		}
	}
	if have {
		logical = append(logical, cur.String())
	}
	return logical
}

// tokenizeValues splits a value list into shell-like tokens: bare
// words, '"'- or '\''-quoted strings (switchable mid-token), and
// backslash escapes for embedded spaces or literal quote characters.
// An unquoted '#' ends the token list (comment to end of line).
func tokenizeValues(s string) []string {
	var tokens []string
	var cur strings.Builder
	inToken := false
	i, n := 0, len(s)
	for i < n {
		c := s[i]
		switch {
		case c == '#':
			i = n
		case c == ' ' || c == '\t':
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
			i++
		case c == '"' || c == '\'':
			quote := c
			i++
			inToken = true
			for i < n && s[i] != quote {
				if s[i] == '\\' && i+1 < n {
					cur.WriteByte(s[i+1])
					i += 2
				} else {
					cur.WriteByte(s[i])
					i++
				}
			}
			if i < n {
				i++ // skip closing quote
			}
		case c == '\\' && i+1 < n:
			cur.WriteByte(s[i+1])
			inToken = true
			i += 2
		default:
			cur.WriteByte(c)
			inToken = true
			i++
		}
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// Config is the fully resolved, merged configuration a builder compiles
// and links against: the profile plus one Section's worth of options,
// with their rolling-hash fingerprints precomputed.
type Config struct {
	Profile       Profile
	Section
	COptionsTag   uint32
	CXXOptionsTag uint32
	LDOptionsTag  uint32
}

// ComputeTags (re)computes the three derived option-list fingerprints.
func (c *Config) ComputeTags() {
	c.COptionsTag = container.HashStringList(c.CCOptions)
	c.CXXOptionsTag = container.HashStringList(c.CXXOptions)
	c.LDOptionsTag = container.HashStringList(c.LDOptions)
}

// Merge returns a new Config combining each section's lists, in the
// order given (e.g. lockfile-resolved platform options, then common,
// then unit-local overlay), keeping profile as the toolchain identity.
func Merge(profile Profile, sections ...*Section) *Config {
	c := &Config{Profile: profile}
	for _, s := range sections {
		if s != nil {
			c.Section.merge(s)
		}
	}
	c.ComputeTags()
	return c
}
