package container

import (
	"strconv"
	"testing"
)

func TestStringListRoundTrip(t *testing.T) {
	var l StringList
	l.Add("alpha")
	l.Add("")
	l.Add("gamma ray")

	data := l.Marshal()
	got, err := UnmarshalStringList(data)
	if err != nil {
		t.Fatalf("UnmarshalStringList: %v", err)
	}
	if got.Count() != l.Count() {
		t.Fatalf("Count = %d, want %d", got.Count(), l.Count())
	}
	for i, s := range l.Strings() {
		if got.Strings()[i] != s {
			t.Errorf("entry %d = %q, want %q", i, got.Strings()[i], s)
		}
	}
}

func TestFileStateListRoundTrip(t *testing.T) {
	var l FileStateList
	l.Add(Tag(100), "main.cpp")
	l.Add(Tag(200), "util.h")

	data := l.Marshal()
	got, err := UnmarshalFileStateList(data)
	if err != nil {
		t.Fatalf("UnmarshalFileStateList: %v", err)
	}
	if got.Count() != 2 {
		t.Fatalf("Count = %d, want 2", got.Count())
	}
	if got.At(0).Name != "main.cpp" || got.At(0).Tag != 100 {
		t.Errorf("entry 0 = %+v", got.At(0))
	}
	if got.At(1).Name != "util.h" || got.At(1).Tag != 200 {
		t.Errorf("entry 1 = %+v", got.At(1))
	}
}

func TestFileStateDictFindAndPut(t *testing.T) {
	d := NewFileStateDict()
	d.Add(Tag(1), "a.cpp")
	d.Add(Tag(2), "b.cpp")

	if tag, ok := d.Find("a.cpp"); !ok || tag != 1 {
		t.Errorf("Find(a.cpp) = (%v, %v)", tag, ok)
	}
	if _, ok := d.Find("missing.cpp"); ok {
		t.Errorf("Find(missing.cpp) should not be found")
	}

	d.Put(Tag(99), "a.cpp")
	if tag, ok := d.Find("a.cpp"); !ok || tag != 99 {
		t.Errorf("after Put, Find(a.cpp) = (%v, %v), want (99, true)", tag, ok)
	}
	if d.Count() != 2 {
		t.Errorf("Put on existing name should not grow Count, got %d", d.Count())
	}
}

func TestFileStateDictGrowthPreservesLookup(t *testing.T) {
	d := NewFileStateDict()
	const n = 500
	for i := 0; i < n; i++ {
		d.Add(Tag(i), nameFor(i))
	}
	if d.Count() != n {
		t.Fatalf("Count = %d, want %d", d.Count(), n)
	}
	for i := 0; i < n; i++ {
		tag, ok := d.Find(nameFor(i))
		if !ok || tag != Tag(i) {
			t.Fatalf("Find(%q) = (%v, %v), want (%d, true)", nameFor(i), tag, ok, i)
		}
	}
}

func TestLoadFileStateDictRebuildsIndex(t *testing.T) {
	var l FileStateList
	l.Add(Tag(1), "x.cpp")
	l.Add(Tag(2), "y.cpp")

	d := LoadFileStateDict(l.Entries())
	if tag, ok := d.Find("y.cpp"); !ok || tag != 2 {
		t.Errorf("Find(y.cpp) after load = (%v, %v)", tag, ok)
	}
	if len(d.Entries()) != 2 {
		t.Errorf("Entries() length = %d, want 2", len(d.Entries()))
	}
}

func nameFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + strconv.Itoa(i) + "_file.cpp"
}

func TestHashStringListDeterministic(t *testing.T) {
	a := HashStringList([]string{"-O2", "-Wall"})
	b := HashStringList([]string{"-O2", "-Wall"})
	if a != b {
		t.Errorf("HashStringList not deterministic: %d != %d", a, b)
	}
	c := HashStringList([]string{"-Wall", "-O2"})
	if a == c {
		t.Errorf("HashStringList should be order-sensitive")
	}
}
