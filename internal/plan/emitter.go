// Package plan renders a resolved build plan for the operator.
package plan

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/pmt/internal/resolver"
)

const header = "# pmt build plan: version 1\n"

// Format selects the output format.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or yaml)", s)
}

// Document is the YAML form of a plan.
type Document struct {
	Roots     []string `yaml:"roots"`
	Build     []Entry  `yaml:"build"`
	Repo      []string `yaml:"repo_deps,omitempty"`
	Satisfied []string `yaml:"satisfied_deps,omitempty"`
}

// Entry is one build unit of a plan.
type Entry struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Base        string   `yaml:"base,omitempty"`
	Depends     []string `yaml:"depends,omitempty"`
	MakeDepends []string `yaml:"makedepends,omitempty"`
}

// NewDocument converts a resolution result.
func NewDocument(roots []string, res *resolver.Result) Document {
	doc := Document{
		Roots:     roots,
		Build:     make([]Entry, 0, len(res.BuildOrder)),
		Repo:      res.RepoDeps,
		Satisfied: res.SatisfiedDeps,
	}
	for _, p := range res.BuildOrder {
		e := Entry{Name: p.Name, Version: p.Version, Depends: p.Depends, MakeDepends: p.MakeDepends}
		if p.Base != "" && p.Base != p.Name {
			e.Base = p.Base
		}
		doc.Build = append(doc.Build, e)
	}
	return doc
}

// Emitter writes plans.
type Emitter struct {
	w      io.Writer
	format Format
}

// NewEmitter creates an emitter writing format to w.
func NewEmitter(w io.Writer, format Format) *Emitter {
	return &Emitter{w: w, format: format}
}

// Emit writes the plan for roots.
func (e *Emitter) Emit(roots []string, res *resolver.Result) error {
	doc := NewDocument(roots, res)
	if e.format == FormatYAML {
		enc := yaml.NewEncoder(e.w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding plan: %w", err)
		}
		return enc.Close()
	}
	return e.emitText(doc)
}

func (e *Emitter) emitText(doc Document) error {
	if _, err := fmt.Fprint(e.w, header); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "ROOTS %s\n", strings.Join(doc.Roots, " ")); err != nil {
		return err
	}

	if _, err := fmt.Fprint(e.w, "BUILD\n"); err != nil {
		return err
	}
	for i, b := range doc.Build {
		if err := e.emitEntry(i+1, b); err != nil {
			return err
		}
	}

	if err := e.emitSet("REPO", doc.Repo); err != nil {
		return err
	}
	return e.emitSet("SATISFIED", doc.Satisfied)
}

func (e *Emitter) emitEntry(n int, b Entry) error {
	// position and name with 2-space indent
	if _, err := fmt.Fprintf(e.w, "  %d. %s %s\n", n, b.Name, b.Version); err != nil {
		return err
	}
	if b.Base != "" {
		if _, err := fmt.Fprintf(e.w, "    base: %s\n", b.Base); err != nil {
			return err
		}
	}
	if err := e.emitList("depends", b.Depends); err != nil {
		return err
	}
	return e.emitList("makedepends", b.MakeDepends)
}

func (e *Emitter) emitList(label string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(e.w, "    %s:\n", label); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := fmt.Fprintf(e.w, "      %s\n", it); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) emitSet(section string, items []string) error {
	if len(items) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(e.w, "%s\n", section); err != nil {
		return err
	}
	for _, it := range items {
		if _, err := fmt.Fprintf(e.w, "  %s\n", it); err != nil {
			return err
		}
	}
	return nil
}
