// Package recipe reads the few build-recipe (PKGBUILD) variables the build
// pipeline needs without sourcing the file in a shell.
package recipe

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// FileName is the name of the build recipe inside a checkout.
const FileName = "PKGBUILD"

// Recipe holds the top-level scalar assignments and function names of a
// build recipe.
type Recipe struct {
	Vars  map[string]string
	Funcs map[string]bool
}

var (
	assignRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)
	funcRe   = regexp.MustCompile(`^\s*(?:function\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(\s*\)\s*\{?`)
)

// Parse scans recipe text. The first non-empty assignment of a variable wins;
// array assignments are ignored.
func Parse(text string) *Recipe {
	r := &Recipe{
		Vars:  make(map[string]string),
		Funcs: make(map[string]bool),
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if matches := funcRe.FindStringSubmatch(line); matches != nil {
			r.Funcs[matches[1]] = true
			continue
		}

		if matches := assignRe.FindStringSubmatch(line); matches != nil {
			name, value := matches[1], strings.TrimSpace(matches[2])
			if strings.HasPrefix(value, "(") {
				continue
			}
			value = unquote(stripComment(value))
			if value != "" && r.Vars[name] == "" {
				r.Vars[name] = value
			}
		}
	}

	return r
}

// ParseFile reads and parses the recipe at path.
func ParseFile(path string) (*Recipe, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading recipe: %w", err)
	}
	text := string(data)
	return Parse(text), text, nil
}

// Version returns [epoch:]pkgver[-pkgrel], or "" when pkgver is missing.
func (r *Recipe) Version() string {
	pkgver := r.Vars["pkgver"]
	if pkgver == "" {
		return ""
	}
	v := pkgver
	if epoch := r.Vars["epoch"]; epoch != "" && epoch != "0" {
		v = epoch + ":" + v
	}
	if pkgrel := r.Vars["pkgrel"]; pkgrel != "" {
		v += "-" + pkgrel
	}
	return v
}

// HasFunc reports whether the recipe defines the shell function name.
func (r *Recipe) HasFunc(name string) bool {
	return r.Funcs[name]
}

// ParseVersion is shorthand for Parse(text).Version().
func ParseVersion(text string) string {
	return Parse(text).Version()
}

// HasPkgverFunc reports whether the recipe computes its version with pkgver().
func HasPkgverFunc(text string) bool {
	return Parse(text).HasFunc("pkgver")
}

func stripComment(s string) string {
	if i := strings.Index(s, " #"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func unquote(s string) string {
	if len(s) > 0 && (s[0] == '\'' || s[0] == '"') {
		s = s[1:]
	}
	if len(s) > 0 && (s[len(s)-1] == '\'' || s[len(s)-1] == '"') {
		s = s[:len(s)-1]
	}
	return s
}
