package pkg

import "strings"

// Source records where a descriptor was obtained.
type Source string

const (
	SourceLocal Source = "local"
	SourceRepo  Source = "repo"
	SourceAUR   Source = "aur"
)

// Package describes one package as reported by the local database or the
// remote source directory. It is treated as immutable once fetched.
type Package struct {
	Name        string
	Version     string // e.g. "1:2.4.1-3"
	Base        string // pkgbase, empty when the package is not split
	Description string
	URL         string
	Depends     []string // runtime dependency strings, e.g. "glibc>=2.38"
	MakeDepends []string // build-only dependency strings
	OptDepends  []string
	Provides    []string // e.g. "libfoo.so=1-64"
	Conflicts   []string
	Licenses    []string
	Maintainer  string
	Votes       int
	OutOfDate   bool
	Source      Source
}

// BaseName returns the build unit identifier, falling back to the name.
func (p *Package) BaseName() string {
	if p.Base == "" {
		return p.Name
	}
	return p.Base
}

// AllDepends returns runtime then build-only dependency strings.
func (p *Package) AllDepends() []string {
	all := make([]string, 0, len(p.Depends)+len(p.MakeDepends))
	all = append(all, p.Depends...)
	return append(all, p.MakeDepends...)
}

var vcsSuffixes = []string{"-git", "-svn", "-hg", "-bzr", "-fossil", "-cvs"}

// IsVCS reports whether name follows the naming convention for packages
// built from a live version-control reference.
func IsVCS(name string) bool {
	for _, s := range vcsSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
