// Package pacman answers dependency queries against the local installation
// and the binary repositories, and installs packages, through the pacman CLI.
package pacman

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/frederic-klein/pmt/internal/pkg"
	"github.com/frederic-klein/pmt/internal/runner"
	"github.com/frederic-klein/pmt/internal/vercmp"
)

// exitUnsatisfied is pacman -T's exit status for unsatisfied dependencies.
const exitUnsatisfied = 127

// Config configures a Client.
type Config struct {
	PacmanBin string
	SudoBin   string // prefix for mutating commands; empty when already root
}

// Client is a LocalDB backed by pacman. Query results are memoised until
// Reload is called.
type Client struct {
	cfg    Config
	run    runner.Runner
	logger *slog.Logger

	mu        sync.Mutex
	satisfied map[string]bool
	inRepos   map[string]bool
}

// New creates a Client.
func New(cfg Config, run runner.Runner, logger *slog.Logger) *Client {
	if cfg.PacmanBin == "" {
		cfg.PacmanBin = "pacman"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		cfg:       cfg,
		run:       run,
		logger:    logger,
		satisfied: make(map[string]bool),
		inRepos:   make(map[string]bool),
	}
}

// IsSatisfied reports whether an installed package satisfies dep, which may
// carry a version constraint.
func (c *Client) IsSatisfied(ctx context.Context, dep string) (bool, error) {
	return c.memo(c.satisfied, dep, func() (bool, error) {
		err := c.run.Run(ctx, c.cmd(nil, "-T", dep))
		switch code := runner.ExitCode(err); {
		case err == nil:
			return true, nil
		case code == exitUnsatisfied:
			return false, nil
		default:
			return false, fmt.Errorf("checking %s: %w", dep, err)
		}
	})
}

// InRepos reports whether some binary repository provides dep.
func (c *Client) InRepos(ctx context.Context, dep string) (bool, error) {
	return c.memo(c.inRepos, dep, func() (bool, error) {
		var out bytes.Buffer
		err := c.run.Run(ctx, c.cmd(&out, "-Sp", "--print-format", "%n", dep))
		if err == nil {
			return strings.TrimSpace(out.String()) != "", nil
		}
		if runner.ExitCode(err) > 0 {
			return false, nil
		}
		return false, fmt.Errorf("looking up %s in repos: %w", dep, err)
	})
}

// CompareVersions orders two version strings the way pacman does.
func (c *Client) CompareVersions(a, b string) int {
	return vercmp.Compare(a, b)
}

// InstallBatch installs names from the binary repositories in one
// transaction, optionally marked as installed as dependencies.
func (c *Client) InstallBatch(ctx context.Context, names []string, asDeps bool, log io.Writer) error {
	if len(names) == 0 {
		return nil
	}
	args := []string{"-S", "--needed", "--noconfirm"}
	if asDeps {
		args = append(args, "--asdeps")
	}
	args = append(args, names...)

	c.logger.Info("installing repository packages", "count", len(names), "asdeps", asDeps)
	if err := c.run.Run(ctx, runner.Privileged(c.cfg.SudoBin, c.cmd(log, args...))); err != nil {
		return fmt.Errorf("installing %s: %w", strings.Join(names, " "), err)
	}
	return nil
}

// InstallArtifacts installs built package files in one transaction.
func (c *Client) InstallArtifacts(ctx context.Context, paths []string, overwrite bool, log io.Writer) error {
	if len(paths) == 0 {
		return fmt.Errorf("no package files to install")
	}
	args := []string{"-U", "--noconfirm"}
	if overwrite {
		args = append(args, "--overwrite", "*")
	}
	args = append(args, paths...)

	if err := c.run.Run(ctx, runner.Privileged(c.cfg.SudoBin, c.cmd(log, args...))); err != nil {
		return fmt.Errorf("installing %s: %w", strings.Join(paths, " "), err)
	}
	return nil
}

// Reload drops memoised query results so later queries see the current
// installation.
func (c *Client) Reload(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.satisfied)
	clear(c.inRepos)
	return nil
}

// ListForeign returns installed packages absent from every sync repository.
func (c *Client) ListForeign(ctx context.Context) ([]*pkg.Package, error) {
	pkgs, err := c.query(ctx, "-Qm")
	if err != nil {
		return nil, fmt.Errorf("listing foreign packages: %w", err)
	}
	return pkgs, nil
}

// Installed returns every installed package keyed by name.
func (c *Client) Installed(ctx context.Context) (map[string]*pkg.Package, error) {
	pkgs, err := c.query(ctx, "-Q")
	if err != nil {
		return nil, fmt.Errorf("listing installed packages: %w", err)
	}
	byName := make(map[string]*pkg.Package, len(pkgs))
	for _, p := range pkgs {
		byName[p.Name] = p
	}
	return byName, nil
}

func (c *Client) query(ctx context.Context, flag string) ([]*pkg.Package, error) {
	var out bytes.Buffer
	err := c.run.Run(ctx, c.cmd(&out, flag))
	// -Qm exits 1 when there is nothing to list
	if err != nil && !(runner.ExitCode(err) == 1 && strings.TrimSpace(out.String()) == "") {
		return nil, err
	}
	return parseQuery(&out), nil
}

func parseQuery(r io.Reader) []*pkg.Package {
	var pkgs []*pkg.Package
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || strings.HasSuffix(fields[0], ":") {
			continue
		}
		pkgs = append(pkgs, &pkg.Package{
			Name:    fields[0],
			Version: fields[1],
			Source:  pkg.SourceLocal,
		})
	}
	return pkgs
}

func (c *Client) memo(cache map[string]bool, key string, fn func() (bool, error)) (bool, error) {
	c.mu.Lock()
	v, ok := cache[key]
	c.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := fn()
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	cache[key] = v
	c.mu.Unlock()
	return v, nil
}

func (c *Client) cmd(out io.Writer, args ...string) runner.Command {
	return runner.Command{Name: c.cfg.PacmanBin, Args: args, Stdout: out}
}
