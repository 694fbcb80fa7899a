package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/frederic-klein/pmt/internal/aur"
	"github.com/frederic-klein/pmt/internal/pkg"
	"github.com/frederic-klein/pmt/internal/resolver"
)

var (
	searchBy    string
	searchLimit int
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search <query>",
		Aliases: []string{"Ss"},
		Short:   "Search the AUR",
		Args:    cobra.ExactArgs(1),
		RunE:    runSearch,
	}
	cmd.Flags().StringVar(&searchBy, "by", string(aur.ByNameDesc), "Search field: name, name-desc, provides or depends")
	cmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "Show at most this many results (0 for all)")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "info <package>",
		Aliases: []string{"Si"},
		Short:   "Show AUR package details",
		Args:    cobra.ExactArgs(1),
		RunE:    runInfo,
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	results, err := a.aur.Search(ctx, args[0], aur.SearchBy(searchBy))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	installed, err := a.pacman.Installed(ctx)
	if err != nil {
		a.logger.Warn("cannot mark installed packages", "err", err)
	}

	ranked := aur.Rank(args[0], results)
	if searchLimit > 0 && len(ranked) > searchLimit {
		ranked = ranked[:searchLimit]
	}
	for _, p := range ranked {
		fmt.Print(searchLine(p, installed[p.Name]))
	}
	return nil
}

func searchLine(p, local *pkg.Package) string {
	var b strings.Builder
	fmt.Fprintf(&b, "aur/%s %s (+%d)", p.Name, p.Version, p.Votes)
	if p.OutOfDate {
		b.WriteString(" [out of date]")
	}
	if local != nil {
		if local.Version == p.Version {
			b.WriteString(" [installed]")
		} else {
			fmt.Fprintf(&b, " [installed: %s]", local.Version)
		}
	}
	b.WriteString("\n")
	if p.Description != "" {
		b.WriteString("    " + p.Description + "\n")
	}
	return b.String()
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}

	p, err := a.aur.Info(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if p == nil {
		return &resolver.PackageNotFoundError{Name: args[0]}
	}

	out, err := render(describe(p, a.aur.BaseURL()))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// describe formats p as markdown.
func describe(p *pkg.Package, baseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", p.Name, p.Version)
	if p.Description != "" {
		b.WriteString(p.Description + "\n\n")
	}

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", label, value)
		}
	}
	list := func(label string, values []string) {
		field(label, strings.Join(values, ", "))
	}

	if p.Base != "" && p.Base != p.Name {
		field("Package base", p.Base)
	}
	field("Upstream", p.URL)
	field("AUR page", fmt.Sprintf("%s/packages/%s", strings.TrimSuffix(baseURL, "/"), p.Name))
	list("Licenses", p.Licenses)
	list("Provides", p.Provides)
	list("Conflicts", p.Conflicts)
	list("Depends on", p.Depends)
	list("Make deps", p.MakeDepends)
	list("Optional deps", p.OptDepends)
	field("Maintainer", p.Maintainer)
	if p.Maintainer == "" {
		field("Maintainer", "orphan")
	}
	field("Votes", fmt.Sprint(p.Votes))
	if p.OutOfDate {
		field("Out of date", "yes")
	}
	return b.String()
}

// render styles markdown for the terminal, or returns it unchanged when
// stdout is not one.
func render(md string) (string, error) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return md, nil
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(md)
}
