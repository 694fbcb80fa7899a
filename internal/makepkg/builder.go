// Package makepkg prepares recipe checkouts and drives makepkg to build
// source packages or to compute the real version of VCS packages.
package makepkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/frederic-klein/pmt/internal/downloader"
	"github.com/frederic-klein/pmt/internal/extractor"
	"github.com/frederic-klein/pmt/internal/pkg"
	"github.com/frederic-klein/pmt/internal/recipe"
	"github.com/frederic-klein/pmt/internal/runner"
)

// FetchMethod selects how recipe checkouts are obtained.
type FetchMethod string

const (
	FetchGit      FetchMethod = "git"
	FetchSnapshot FetchMethod = "snapshot"
)

// exitAlreadyBuilt is makepkg's exit status when the package already exists.
const exitAlreadyBuilt = 13

// Config configures a Builder.
type Config struct {
	CacheDir     string // one checkout per build unit below this directory
	AURURL       string
	FetchMethod  FetchMethod
	ProbeTimeout time.Duration
	MakepkgBin   string
	GitBin       string
	Jobs         int    // MAKEFLAGS -j value; 0 uses the CPU count
	Owner        string // chown checkouts to this user when running as root
}

// Builder implements recipe fetch, build and version probing on top of a
// runner.Runner.
type Builder struct {
	cfg    Config
	run    runner.Runner
	dl     *downloader.Downloader
	ext    *extractor.Extractor
	logger *slog.Logger
}

// New creates a Builder.
func New(cfg Config, run runner.Runner, logger *slog.Logger) *Builder {
	if cfg.FetchMethod == "" {
		cfg.FetchMethod = FetchGit
	}
	if cfg.MakepkgBin == "" {
		cfg.MakepkgBin = "makepkg"
	}
	if cfg.GitBin == "" {
		cfg.GitBin = "git"
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 120 * time.Second
	}
	if cfg.Jobs <= 0 {
		cfg.Jobs = runtime.NumCPU()
	}
	cfg.AURURL = strings.TrimSuffix(cfg.AURURL, "/")
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		cfg:    cfg,
		run:    run,
		dl:     downloader.NewDownloader(1, cfg.CacheDir),
		ext:    extractor.NewExtractor(),
		logger: logger,
	}
}

// Dir returns the checkout directory of a build unit.
func (b *Builder) Dir(base string) string {
	return filepath.Join(b.cfg.CacheDir, base)
}

// FetchRecipe makes sure a current checkout of p's build unit exists and
// returns its recipe text.
func (b *Builder) FetchRecipe(ctx context.Context, p *pkg.Package) (string, error) {
	base := p.BaseName()
	if err := b.checkout(ctx, base, io.Discard, false); err != nil {
		return "", fmt.Errorf("fetching recipe for %s: %w", base, err)
	}
	data, err := os.ReadFile(filepath.Join(b.Dir(base), recipe.FileName))
	if err != nil {
		return "", fmt.Errorf("reading recipe for %s: %w", base, err)
	}
	return string(data), nil
}

// Build produces the artifacts of p's build unit and returns their paths.
// Artifacts already carrying the recipe's current version are reused.
func (b *Builder) Build(ctx context.Context, p *pkg.Package, log io.Writer) ([]string, error) {
	base := p.BaseName()
	dir := b.Dir(base)

	logf(log, "Preparing build directory for %s", base)
	if err := b.checkout(ctx, base, log, false); err != nil {
		return nil, err
	}

	rec, _, err := recipe.ParseFile(filepath.Join(dir, recipe.FileName))
	if err != nil {
		return nil, fmt.Errorf("recipe not found for %s: %w", p.Name, err)
	}

	if version := rec.Version(); version != "" {
		cached, err := artifacts(dir, version)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			b.logger.Debug("reusing cached artifacts", "base", base, "version", version, "count", len(cached))
			for _, path := range cached {
				logf(log, "Using cached build: %s", filepath.Base(path))
			}
			return cached, nil
		}
	}

	stale, err := artifacts(dir, "")
	if err != nil {
		return nil, err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing stale artifact: %w", err)
		}
	}

	b.logger.Debug("building", "base", base, "dir", dir, "stale", len(stale))
	logf(log, "Running makepkg -sf --nocheck --noconfirm")
	err = b.run.Run(ctx, runner.Command{
		Dir: dir,
		Env: []string{
			"MAKEFLAGS=-j" + strconv.Itoa(b.cfg.Jobs),
			"PKGDEST=" + dir,
		},
		Name:   b.cfg.MakepkgBin,
		Args:   []string{"-sf", "--nocheck", "--noconfirm"},
		Stdout: log,
	})
	if err != nil {
		return nil, fmt.Errorf("makepkg failed for %s: %w", p.Name, err)
	}

	built, err := artifacts(dir, "")
	if err != nil {
		return nil, err
	}
	if len(built) == 0 {
		return nil, fmt.Errorf("makepkg produced no package for %s", p.Name)
	}
	return built, nil
}

// ProbeVersion updates the checkout of a VCS package and returns the version
// makepkg would build now, without building it.
func (b *Builder) ProbeVersion(ctx context.Context, p *pkg.Package, log io.Writer) (string, error) {
	base := p.BaseName()
	dir := b.Dir(base)

	if err := b.checkout(ctx, base, log, true); err != nil {
		return "", err
	}

	rec, _, err := recipe.ParseFile(filepath.Join(dir, recipe.FileName))
	if err != nil {
		return "", fmt.Errorf("no recipe for %s: %w", base, err)
	}
	if !rec.HasFunc("pkgver") {
		logf(log, "%s: no pkgver() function, using static version", base)
		return nonEmpty(rec.Version(), base)
	}

	logf(log, "Running makepkg --nobuild for %s", base)
	probeCtx, cancel := context.WithTimeout(ctx, b.cfg.ProbeTimeout)
	defer cancel()

	err = b.run.Run(probeCtx, runner.Command{
		Dir:    dir,
		Name:   b.cfg.MakepkgBin,
		Args:   []string{"--nobuild", "--nocheck", "-f"},
		Stdout: log,
	})
	if err != nil && runner.ExitCode(err) != exitAlreadyBuilt {
		b.logger.Debug("version probe failed", "base", base, "exit", runner.ExitCode(err))
		return "", fmt.Errorf("makepkg --nobuild failed for %s (exit %d): %w", base, runner.ExitCode(err), err)
	}

	rec, _, err = recipe.ParseFile(filepath.Join(dir, recipe.FileName))
	if err != nil {
		return "", fmt.Errorf("re-reading recipe for %s: %w", base, err)
	}
	version, err := nonEmpty(rec.Version(), base)
	if err == nil {
		logf(log, "%s: real VCS version is %s", base, version)
	}
	return version, err
}

// checkout creates or refreshes the checkout of base. With reset, local
// modifications (such as a pkgver rewritten by an earlier probe) are
// discarded first.
func (b *Builder) checkout(ctx context.Context, base string, log io.Writer, reset bool) error {
	if err := os.MkdirAll(b.cfg.CacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := b.chown(b.cfg.CacheDir, false); err != nil {
		return err
	}

	var err error
	switch b.cfg.FetchMethod {
	case FetchSnapshot:
		err = b.snapshot(ctx, base, log)
	default:
		err = b.gitCheckout(ctx, base, log, reset)
	}
	if err != nil {
		return err
	}
	return b.chown(b.Dir(base), true)
}

func (b *Builder) gitCheckout(ctx context.Context, base string, log io.Writer, reset bool) error {
	dir := b.Dir(base)

	if exists(filepath.Join(dir, ".git")) {
		if reset {
			logf(log, "Resetting local changes in %s", base)
			// best effort; a failed reset shows up in the pull below
			_ = b.run.Run(ctx, runner.Command{Name: b.cfg.GitBin, Args: []string{"-C", dir, "checkout", "--", "."}, Stdout: log})
		}
		logf(log, "Updating existing clone of %s", base)
		err := b.run.Run(ctx, runner.Command{Name: b.cfg.GitBin, Args: []string{"-C", dir, "pull", "--ff-only"}, Stdout: log})
		if err == nil {
			return nil
		}
		logf(log, "Pull failed, re-cloning %s", base)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing checkout: %w", err)
		}
	} else if exists(dir) {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing checkout: %w", err)
		}
	}

	url := fmt.Sprintf("%s/%s.git", b.cfg.AURURL, base)
	logf(log, "Cloning %s", url)
	err := b.run.Run(ctx, runner.Command{Name: b.cfg.GitBin, Args: []string{"clone", "--depth", "1", url, dir}, Stdout: log})
	if err != nil {
		return fmt.Errorf("cloning %s: %w", base, err)
	}
	return nil
}

func (b *Builder) snapshot(ctx context.Context, base string, log io.Writer) error {
	job := b.dl.SnapshotJob(b.cfg.AURURL, base, true)
	logf(log, "Downloading %s", job.URL)
	results := b.dl.Download(ctx, []downloader.Job{job})
	if err := results[0].Error; err != nil {
		return fmt.Errorf("downloading snapshot of %s: %w", base, err)
	}
	if _, err := b.ext.Extract(job.DestPath, b.cfg.CacheDir); err != nil {
		return fmt.Errorf("extracting snapshot of %s: %w", base, err)
	}
	return nil
}

// chown hands dir to the configured owner when running as root so that
// builds run through sudo can write to it.
func (b *Builder) chown(dir string, recursive bool) error {
	if b.cfg.Owner == "" || os.Geteuid() != 0 {
		return nil
	}
	u, err := user.Lookup(b.cfg.Owner)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", b.cfg.Owner, err)
	}
	uid, _ := strconv.Atoi(u.Uid)
	gid, _ := strconv.Atoi(u.Gid)

	if !recursive {
		return os.Lchown(dir, uid, gid)
	}
	return filepath.WalkDir(dir, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Lchown(path, uid, gid)
	})
}

// artifacts lists built packages in dir whose file name carries version, or
// every built package when version is empty.
func artifacts(dir, version string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.Contains(name, ".pkg.tar") || strings.HasSuffix(name, ".sig") {
			continue
		}
		if version != "" && !strings.Contains(name, "-"+version+"-") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

func nonEmpty(version, base string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("no version in recipe for %s", base)
	}
	return version, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func logf(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "==> "+format+"\n", args...)
}
