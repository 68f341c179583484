package builder

import "strings"

type sourceKind int

const (
	kindOther sourceKind = iota
	kindC
	kindCxx
	kindHeader
)

// classify mirrors the original extension table, giving each
// length-class its own switch (the distilled source had a missing
// break between the length-3 and length-4 cases; this keeps them separate).
func classify(name string) sourceKind {
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		ext = name[i:]
	}
	switch len(ext) {
	case 2:
		switch ext {
		case ".c":
			return kindC
		case ".C":
			return kindCxx
		case ".h":
			return kindHeader
		case ".H":
			return kindHeader
		}
	case 3:
		switch ext {
		case ".cc":
			return kindCxx
		case ".cp":
			return kindCxx
		}
	case 4:
		switch ext {
		case ".cpp":
			return kindCxx
		case ".cxx":
			return kindCxx
		case ".c++":
			return kindCxx
		case ".CPP":
			return kindCxx
		case ".hpp":
			return kindHeader
		case ".hxx":
			return kindHeader
		}
	case 5:
		switch ext {
		case ".h++":
			return kindHeader
		}
	}
	return kindOther
}

func isSource(name string) bool {
	k := classify(name)
	return k == kindC || k == kindCxx
}
