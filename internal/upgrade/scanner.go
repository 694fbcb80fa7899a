// Package upgrade finds installed source-built packages that have a newer
// version available, including VCS packages whose published version lags
// behind their upstream.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/frederic-klein/pmt/internal/pkg"
	"github.com/frederic-klein/pmt/internal/resolver"
)

// Directory looks packages up in the remote source directory.
type Directory interface {
	InfoBatch(ctx context.Context, names []string) ([]*pkg.Package, error)
}

// Local lists foreign packages and orders versions.
type Local interface {
	ListForeign(ctx context.Context) ([]*pkg.Package, error)
	CompareVersions(a, b string) int
}

// Prober computes the version a recipe would build right now.
type Prober interface {
	ProbeVersion(ctx context.Context, p *pkg.Package, log io.Writer) (string, error)
}

// Resolver resolves one root. Rebuild keeps the root in the plan even when
// its published version is installed.
type Resolver interface {
	Resolve(ctx context.Context, root string) (*resolver.Result, error)
	Rebuild(ctx context.Context, root string) (*resolver.Result, error)
}

// Candidate is an installed package with a newer version available.
type Candidate struct {
	Name         string
	Base         string
	LocalVersion string
	NewVersion   string
	VCS          bool // NewVersion was probed from the recipe
}

func (c Candidate) String() string {
	return c.Name + " " + c.LocalVersion + " -> " + c.NewVersion
}

// Report is the outcome of a scan.
type Report struct {
	Foreign    int
	Candidates []Candidate
	NotInAUR   []string
	Skipped    []string // VCS packages whose probe failed
}

// VersionProbeError reports a failed VCS version probe. It never aborts a
// scan.
type VersionProbeError struct {
	Name string
	Err  error
}

func (e *VersionProbeError) Error() string {
	return fmt.Sprintf("probing version of %s: %v", e.Name, e.Err)
}

func (e *VersionProbeError) Unwrap() error { return e.Err }

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithProbeLog sends probe output to w.
func WithProbeLog(w io.Writer) Option {
	return func(s *Scanner) { s.probeLog = w }
}

// Scanner finds upgrade candidates.
type Scanner struct {
	dir      Directory
	local    Local
	prober   Prober
	logger   *slog.Logger
	probeLog io.Writer
	progress Progress
	logDir   string
}

// New creates a Scanner.
func New(dir Directory, local Local, prober Prober, opts ...Option) *Scanner {
	s := &Scanner{
		dir:      dir,
		local:    local,
		prober:   prober,
		logger:   slog.New(slog.DiscardHandler),
		probeLog: io.Discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan lists foreign packages, looks all of them up in one batch and
// returns those with a newer version, one per build unit.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	foreign, err := s.local.ListForeign(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing foreign packages: %w", err)
	}
	report := &Report{Foreign: len(foreign)}
	if len(foreign) == 0 {
		return report, nil
	}

	names := make([]string, len(foreign))
	for i, p := range foreign {
		names[i] = p.Name
	}
	remote, err := s.dir.InfoBatch(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("querying AUR: %w", err)
	}
	byName := make(map[string]*pkg.Package, len(remote))
	for _, p := range remote {
		byName[p.Name] = p
	}

	var upgrades, vcs []Candidate
	var probe []*pkg.Package
	for _, local := range foreign {
		p, ok := byName[local.Name]
		if !ok {
			report.NotInAUR = append(report.NotInAUR, local.Name)
			s.logger.Debug("not in AUR", "package", local.Name)
			continue
		}
		c := Candidate{Name: local.Name, Base: p.BaseName(), LocalVersion: local.Version, NewVersion: p.Version}
		switch {
		case s.local.CompareVersions(p.Version, local.Version) > 0:
			upgrades = append(upgrades, c)
		case pkg.IsVCS(local.Name):
			vcs = append(vcs, c)
			probe = append(probe, p)
		}
	}

	var view *probeView
	if s.progress != nil && len(vcs) > 0 {
		if view, err = openProbeView(s.progress, s.logDir); err != nil {
			s.logger.Warn("showing VCS checks without progress", "error", err)
			view = nil
		} else {
			defer view.close()
		}
	}

	for i, c := range vcs {
		title := fmt.Sprintf("Checking VCS: %s [%d/%d]", c.Name, i+1, len(vcs))
		version, err := s.probe(ctx, probe[i], view, title)
		if err != nil {
			var pe *VersionProbeError
			if errors.As(err, &pe) {
				s.logger.Warn("skipping VCS package", "package", c.Name, "error", pe.Err)
				report.Skipped = append(report.Skipped, c.Name)
				continue
			}
			return nil, err
		}
		if s.local.CompareVersions(version, c.LocalVersion) <= 0 {
			s.logger.Debug("VCS package up to date", "package", c.Name, "version", version)
			continue
		}
		c.NewVersion, c.VCS = version, true
		upgrades = append(upgrades, c)
	}

	if view != nil {
		view.finish(fmt.Sprintf("Checked %d VCS package(s)", len(vcs)))
	}

	seen := make(map[string]bool)
	for _, c := range upgrades {
		if seen[c.Base] {
			continue
		}
		seen[c.Base] = true
		report.Candidates = append(report.Candidates, c)
	}
	return report, nil
}

// probe returns the buildable version of p. Failures other than context
// cancellation come back as *VersionProbeError.
func (s *Scanner) probe(ctx context.Context, p *pkg.Package, view *probeView, title string) (string, error) {
	s.logger.Info("checking VCS package", "package", p.Name)

	var version string
	var err error
	check := func(w io.Writer) {
		fmt.Fprintf(w, "=== Checking %s ===\n", p.Name)
		version, err = s.prober.ProbeVersion(ctx, p, w)
	}
	if view != nil {
		view.run(ctx, title, s.probeLog, check)
	} else {
		check(s.probeLog)
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err == nil && version == "" {
		err = errors.New("no version derived")
	}
	if err != nil {
		return "", &VersionProbeError{Name: p.Name, Err: err}
	}
	return version, nil
}

// Plan resolves every candidate independently and merges the results into
// one build plan. Probed VCS candidates are rebuilt: their published version
// is the installed one.
func Plan(ctx context.Context, r Resolver, candidates []Candidate) (*resolver.Result, error) {
	results := make([]*resolver.Result, 0, len(candidates))
	for _, c := range candidates {
		resolve := r.Resolve
		if c.VCS {
			resolve = r.Rebuild
		}
		res, err := resolve(ctx, c.Name)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", c.Name, err)
		}
		results = append(results, res)
	}
	return resolver.Merge(results...), nil
}

const maxConfirmLines = 15

// ConfirmLines summarises candidates for the confirmation dialog.
func ConfirmLines(candidates []Candidate) []string {
	lines := []string{fmt.Sprintf("%d AUR package(s) to upgrade:", len(candidates))}
	for i, c := range candidates {
		if i == maxConfirmLines {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(candidates)-maxConfirmLines))
			break
		}
		lines = append(lines, "  "+c.String())
	}
	return lines
}
