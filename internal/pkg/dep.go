package pkg

import "strings"

// Op is a version constraint operator.
type Op string

const (
	OpNone Op = ""
	OpLT   Op = "<"
	OpLE   Op = "<="
	OpEQ   Op = "="
	OpGE   Op = ">="
	OpGT   Op = ">"
)

// Dep is a parsed dependency string such as "python>=3.11".
type Dep struct {
	Name    string
	Op      Op
	Version string
}

// ParseDep splits a dependency string into name, operator and version.
func ParseDep(s string) Dep {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, "<>=")
	if idx == -1 {
		return Dep{Name: s}
	}

	d := Dep{Name: s[:idx]}
	rest := s[idx:]
	for _, op := range []Op{OpLE, OpGE, OpLT, OpGT, OpEQ} {
		if strings.HasPrefix(rest, string(op)) {
			d.Op = op
			d.Version = strings.TrimSpace(rest[len(op):])
			return d
		}
	}
	return d
}

// String renders the dependency back into its declared form.
func (d Dep) String() string {
	if d.Op == OpNone {
		return d.Name
	}
	return d.Name + string(d.Op) + d.Version
}

// StripVersion returns the bare capability name of a dependency string.
func StripVersion(s string) string {
	if idx := strings.IndexAny(s, "<>="); idx != -1 {
		return s[:idx]
	}
	return s
}
