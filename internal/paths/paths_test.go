package paths

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a/b/c", "a/b/c"},
		{"a/./b", "a/b"},
		{"a/b/../c", "a/c"},
		{"../a", "../a"},
		{"a/../../b", "../b"},
		{"/a/../../b", "/b"},
		{"", ""},
		{".", ""},
		{"/", "/"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"a/b/../c", "../../x/y", "/a/b/c/../../d", "x/./y/./z"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestCat(t *testing.T) {
	cases := []struct{ a, b, want string }{
		{"a", "b", "a/b"},
		{"a/", "b", "a/b"},
		{"", "b", "b"},
		{"a", "", "a"},
	}
	for _, c := range cases {
		if got := Cat(c.a, c.b); got != c.want {
			t.Errorf("Cat(%q, %q) = %q, want %q", c.a, c.b, got, c.want)
		}
	}
}

func TestRebase(t *testing.T) {
	if got := Rebase("/proj/unit", "/abs/inc"); got != "/abs/inc" {
		t.Errorf("Rebase did not preserve absolute path, got %q", got)
	}
	if got := Rebase("/proj/unit", "../shared/inc"); got != "/proj/shared/inc" {
		t.Errorf("Rebase(%q, %q) = %q", "/proj/unit", "../shared/inc", got)
	}
}

func TestSplitPath(t *testing.T) {
	dir, name, ok := SplitPath("a/b/c.cpp")
	if !ok || dir != "a/b/" || name != "c.cpp" {
		t.Errorf("SplitPath = (%q, %q, %v)", dir, name, ok)
	}
	if _, _, ok := SplitPath("c.cpp"); ok {
		t.Errorf("SplitPath should fail for a path with no directory part")
	}
}

func TestGetSuffix(t *testing.T) {
	cases := []struct{ in, want string }{
		{"main.cpp", ".cpp"},
		{"dir/file.tar.gz", ".gz"},
		{"noext", ""},
		{"dir/noext", ""},
	}
	for _, c := range cases {
		if got := GetSuffix(c.in); got != c.want {
			t.Errorf("GetSuffix(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStripBasePath(t *testing.T) {
	if got := StripBasePath("/proj/", "/proj/unit/main.cpp"); got != "unit/main.cpp" {
		t.Errorf("StripBasePath = %q", got)
	}
	if got := StripBasePath("/proj", "/proj/unit/main.cpp"); got != "unit/main.cpp" {
		t.Errorf("StripBasePath without trailing slash = %q", got)
	}
	if got := StripBasePath("/other/", "/proj/unit/main.cpp"); got != "/proj/unit/main.cpp" {
		t.Errorf("StripBasePath should return path unchanged when base does not match, got %q", got)
	}
}
