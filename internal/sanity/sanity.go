// Package sanity implements cx's --sanity self-test suite: a small
// in-process smoke check over the path-utility, container and config
// packages, grounded on original_source/src/tests.cpp's test() entry
// point. It runs compiled-in assertions rather than shelling out to
// "go test".
package sanity

import (
	"fmt"

	"github.com/vladshiryaev/cx/internal/config"
	"github.com/vladshiryaev/cx/internal/container"
	"github.com/vladshiryaev/cx/internal/msg"
	"github.com/vladshiryaev/cx/internal/paths"
	"github.com/vladshiryaev/cx/internal/sched"
)

type check struct {
	name string
	fn   func() error
}

var checks = []check{
	{"paths", testPaths},
	{"stringList", testStringList},
	{"fileStateList", testFileStateList},
	{"fileStateDict", testFileStateDict},
	{"config", testConfig},
	{"scheduler", testScheduler},
}

// Run executes every sanity check in order, stopping at the first
// failure, and reports progress the way the source's RUN() macro did.
func Run() error {
	for _, c := range checks {
		msg.Info("testing %s", c.name)
		if err := c.fn(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

func eq(got, want any) error {
	if fmt.Sprint(got) != fmt.Sprint(want) {
		return fmt.Errorf("got %v, want %v", got, want)
	}
	return nil
}

func testPaths() error {
	cases := []struct {
		got, want string
	}{
		{paths.Cat("d", "f"), "d/f"},
		{paths.Cat("d/", "f"), "d/f"},
		{paths.Cat("", "f"), "f"},
		{paths.Cat("d", ""), "d"},
		{paths.Rebase("d", "f"), "d/f"},
		{paths.Rebase("d", "/f"), "/f"},
		{paths.Rebase("", "f"), "f"},
		{paths.Rebase(".", "f"), "f"},
		{paths.Rebase("./", "f"), "f"},
		{paths.Rebase("d/", "./f"), "d/f"},
		{paths.Rebase("d/", "././f"), "d/f"},
		{paths.Normalize("a/b/../c"), "a/c"},
		{paths.Normalize("a/b/c/../../d"), "a/d"},
		{paths.Normalize("a/b/../../c"), "c"},
		{paths.Normalize("a/b/../../../c"), "../c"},
		{paths.Normalize("../a/b"), "../a/b"},
		{paths.Normalize("/a//b"), "/a/b"},
		{paths.Normalize("/a/../b"), "/b"},
		{paths.Normalize("./"), ""},
		{paths.Normalize("./a"), "a"},
		{paths.Normalize("a/./b"), "a/b"},
		{paths.Normalize("."), ""},
		{paths.Normalize(""), ""},
		{paths.StripBasePath("a/b", "a/b/c"), "c"},
		{paths.StripBasePath("a/b/", "a/b/c"), "c"},
		{paths.StripBasePath("", "a/b/c"), "a/b/c"},
		{paths.StripBasePath("x/y", "a/b/c"), "a/b/c"},
	}
	for i, c := range cases {
		if c.got != c.want {
			return fmt.Errorf("case %d: got %q, want %q", i, c.got, c.want)
		}
	}
	dir, name, ok := paths.SplitPath("d/f")
	if !ok || dir != "d/" || name != "f" {
		return fmt.Errorf("SplitPath(d/f) = %q, %q, %v", dir, name, ok)
	}
	if _, _, ok := paths.SplitPath("d"); ok {
		return fmt.Errorf("SplitPath(d) unexpectedly succeeded")
	}
	return nil
}

func testStringList() error {
	var list container.StringList
	const n = 2000
	for i := 0; i < n; i++ {
		list.Add(fmt.Sprintf("s-%09d-%d", i, i))
	}
	if list.Count() != n {
		return eq(list.Count(), n)
	}
	for i, s := range list.Strings() {
		want := fmt.Sprintf("s-%09d-%d", i, i)
		if s != want {
			return fmt.Errorf("entry %d: got %q, want %q", i, s, want)
		}
	}
	blob := list.Marshal()
	reloaded, err := container.UnmarshalStringList(blob)
	if err != nil {
		return err
	}
	if reloaded.Count() != n {
		return eq(reloaded.Count(), n)
	}
	return nil
}

func testFileStateList() error {
	var list container.FileStateList
	list.Add(1, "f1")
	list.Add(2, "f2longer")
	list.Add(3, "f3evenlonger")
	if list.Count() != 3 {
		return eq(list.Count(), 3)
	}
	blob := list.Marshal()
	reloaded, err := container.UnmarshalFileStateList(blob)
	if err != nil {
		return err
	}
	entries := reloaded.Entries()
	if len(entries) != 3 {
		return eq(len(entries), 3)
	}
	if entries[0].Tag != 1 || entries[0].Name != "f1" {
		return fmt.Errorf("entry 0: %+v", entries[0])
	}
	if entries[1].Tag != 2 || entries[1].Name != "f2longer" {
		return fmt.Errorf("entry 1: %+v", entries[1])
	}
	if entries[2].Tag != 3 || entries[2].Name != "f3evenlonger" {
		return fmt.Errorf("entry 2: %+v", entries[2])
	}
	return nil
}

func testFileStateDict() error {
	dict := container.NewFileStateDict()
	dict.Add(1, "f1")
	dict.Add(2, "f2longer")
	dict.Add(3, "f3evenlonger")
	if dict.Count() != 3 {
		return eq(dict.Count(), 3)
	}
	if tag, ok := dict.Find("f1"); !ok || tag != 1 {
		return fmt.Errorf("find f1: %v, %v", tag, ok)
	}
	if _, ok := dict.Find("xxx"); ok {
		return fmt.Errorf("find xxx unexpectedly succeeded")
	}
	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("key-%09d-%d", i, i)
		dict.Add(container.Tag(i), name)
	}
	if dict.Count() != 1003 {
		return eq(dict.Count(), 1003)
	}
	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("key-%09d-%d", i, i)
		tag, ok := dict.Find(name)
		if !ok || tag != container.Tag(i) {
			return fmt.Errorf("find %s: %v, %v", name, tag, ok)
		}
	}
	return nil
}

func testConfig() error {
	text := "# Comment\n" +
		"c_options:-O2 -Df=\" \" \\\n-O3\n" +
		"cxx_options: \"-Df= \" -Df='\" \"'  -Df=\"' '\"#Tail comment\n" +
		"external_libs : a \"b c\" c\\ d \n" +
		"#"
	f, err := config.Parse([]byte(text), "", false)
	if err != nil {
		return err
	}
	sec := f.Resolve(config.AllSections)
	if err := eqStrings(sec.CCOptions, []string{"-O2", "-Df= ", "-O3"}); err != nil {
		return fmt.Errorf("c_options: %w", err)
	}
	if err := eqStrings(sec.CXXOptions, []string{"-Df= ", "-Df=\" \"", "-Df=' '"}); err != nil {
		return fmt.Errorf("cxx_options: %w", err)
	}
	if err := eqStrings(sec.ExternalLibs, []string{"a", "b c", "c d"}); err != nil {
		return fmt.Errorf("external_libs: %w", err)
	}
	return nil
}

func eqStrings(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			return fmt.Errorf("got %v, want %v", got, want)
		}
	}
	return nil
}

type incJob struct{ count int }

func (j *incJob) Run() {
	for j.count < 10 {
		j.count++
	}
}

func testScheduler() error {
	pool := sched.NewPool(16)
	for round := 0; round < 3; round++ {
		batch := pool.NewBatch()
		jobs := make([]*incJob, 16)
		for i := range jobs {
			jobs[i] = &incJob{}
			batch.Send(jobs[i])
		}
		count := 0
		for {
			j := batch.Receive()
			if j == nil {
				break
			}
			count++
		}
		if count != 16 {
			return eq(count, 16)
		}
		sum := 0
		for _, j := range jobs {
			sum += j.count
		}
		if sum != 160 {
			return eq(sum, 160)
		}
		batch.Close()
	}
	return nil
}
