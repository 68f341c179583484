package config

import "testing"

func TestParseTopProfileAndSections(t *testing.T) {
	data := []byte(`
gcc: /usr/bin/gcc-12
g++: /usr/bin/g++-12
ar: /usr/bin/ar

cc_options: -Wall -O2

[debug]
cxx_options: -g -DDEBUG
include_path: ../shared/include
`)
	f, err := Parse(data, "/proj/top", true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Profile.CC != "/usr/bin/gcc-12" || f.Profile.CXX != "/usr/bin/g++-12" {
		t.Fatalf("profile = %+v", f.Profile)
	}
	if f.Profile.Linker != "/usr/bin/g++-12" {
		t.Errorf("linker should default to g++, got %q", f.Profile.Linker)
	}

	common := f.Resolve(AllSections)
	if len(common.CCOptions) != 2 || common.CCOptions[0] != "-Wall" {
		t.Errorf("common CCOptions = %v", common.CCOptions)
	}
	if len(common.CXXOptions) != 2 {
		t.Errorf("cc_options should also feed CXXOptions, got %v", common.CXXOptions)
	}

	debug := f.Resolve("debug")
	if len(debug.CXXOptions) != 4 {
		t.Errorf("debug CXXOptions should include both cc_options and cxx_options entries, got %v", debug.CXXOptions)
	}
	if len(debug.IncludePath) != 1 || debug.IncludePath[0] != "/proj/shared/include" {
		t.Errorf("include_path not rebased correctly: %v", debug.IncludePath)
	}
}

func TestParseUnitRejectsProfileDirectives(t *testing.T) {
	data := []byte("gcc: /usr/bin/gcc\n")
	if _, err := Parse(data, "/proj/unit", false); err == nil {
		t.Fatalf("expected error for gcc directive in cx.unit")
	}
}

func TestParseTopRejectsSourceGlob(t *testing.T) {
	data := []byte("source_glob: *.cpp\n")
	if _, err := Parse(data, "/proj", true); err == nil {
		t.Fatalf("expected error for source_glob in cx.top")
	}
}

func TestParseUnitSourceGlob(t *testing.T) {
	data := []byte("source_glob: src/**/*.cpp\n")
	f, err := Parse(data, "/proj/unit", false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := f.Resolve(AllSections).SourceGlob; got != "src/**/*.cpp" {
		t.Errorf("SourceGlob = %q", got)
	}
}

func TestTokenizeValuesQuotingAndComments(t *testing.T) {
	got := tokenizeValues(` -DFOO="bar baz" 'single quoted' plain # trailing comment`)
	want := []string{"-DFOO=bar baz", "single quoted", "plain"}
	if len(got) != len(want) {
		t.Fatalf("tokenizeValues = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestJoinContinuations(t *testing.T) {
	lines := joinContinuations("cc_options: -Wall \\\n  -O2\nld_options: -lm\n")
	if len(lines) != 2 {
		t.Fatalf("joinContinuations produced %d lines, want 2: %v", len(lines), lines)
	}
}

func TestMergeVariadicOrderAndNil(t *testing.T) {
	lock := &Section{CCOptions: []string{"-DLOCK"}}
	common := &Section{CCOptions: []string{"-DCOMMON"}}
	unit := &Section{CCOptions: []string{"-DUNIT"}}

	cfg := Merge(Profile{CC: "gcc"}, lock, nil, common, unit)
	want := []string{"-DLOCK", "-DCOMMON", "-DUNIT"}
	if len(cfg.CCOptions) != len(want) {
		t.Fatalf("CCOptions = %v, want %v", cfg.CCOptions, want)
	}
	for i := range want {
		if cfg.CCOptions[i] != want[i] {
			t.Errorf("CCOptions[%d] = %q, want %q", i, cfg.CCOptions[i], want[i])
		}
	}
	if cfg.COptionsTag == 0 {
		t.Errorf("ComputeTags should have populated COptionsTag")
	}
}

func TestMergeSourceGlobLastNonEmptyWins(t *testing.T) {
	common := &Section{SourceGlob: "*.cpp"}
	unit := &Section{}
	cfg := Merge(Profile{}, common, unit)
	if cfg.SourceGlob != "*.cpp" {
		t.Errorf("empty overlay should not clear SourceGlob, got %q", cfg.SourceGlob)
	}

	unit2 := &Section{SourceGlob: "src/**/*.cpp"}
	cfg2 := Merge(Profile{}, common, unit2)
	if cfg2.SourceGlob != "src/**/*.cpp" {
		t.Errorf("non-empty overlay should win, got %q", cfg2.SourceGlob)
	}
}
