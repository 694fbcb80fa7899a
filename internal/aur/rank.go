package aur

import (
	"sort"

	"github.com/sahilm/fuzzy"

	"github.com/frederic-klein/pmt/internal/pkg"
)

type names []*pkg.Package

func (n names) String(i int) string { return n[i].Name }
func (n names) Len() int            { return len(n) }

// Rank orders search results for display: names that fuzzy-match query
// first, best match first, then the rest by votes.
func Rank(query string, pkgs []*pkg.Package) []*pkg.Package {
	matches := fuzzy.FindFrom(query, names(pkgs))

	ranked := make([]*pkg.Package, 0, len(pkgs))
	matched := make(map[int]bool, len(matches))
	for _, m := range matches {
		matched[m.Index] = true
		ranked = append(ranked, pkgs[m.Index])
	}

	var rest []*pkg.Package
	for i, p := range pkgs {
		if !matched[i] {
			rest = append(rest, p)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Votes > rest[j].Votes })
	return append(ranked, rest...)
}
