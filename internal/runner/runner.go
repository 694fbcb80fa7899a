// Package runner executes external programs, optionally as another user
// through sudo and optionally attached to a pseudo-terminal.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"
)

// ErrRootBuild is returned when building would run as root without a user to
// drop privileges to.
var ErrRootBuild = errors.New("cannot build as root directly; run through sudo")

// Privileged prefixes c with sudoBin. An empty sudoBin returns c unchanged.
func Privileged(sudoBin string, c Command) Command {
	if sudoBin == "" {
		return c
	}
	c.Args = append([]string{c.Name}, c.Args...)
	c.Name = sudoBin
	return c
}

// SudoBin returns sudo when the process needs it to act as root, and ""
// when it already is root.
func SudoBin(configured string) string {
	if os.Geteuid() == 0 {
		return ""
	}
	if configured == "" {
		return "sudo"
	}
	return configured
}

// Command is one external process invocation.
type Command struct {
	Dir    string
	Env    []string // KEY=VALUE pairs added to the child environment
	Name   string
	Args   []string
	Stdout io.Writer // receives stdout and stderr combined; nil discards
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes commands. Implementations report a non-zero exit through
// an error that has an ExitCode() int method.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitCode extracts the exit status from an error returned by a Runner.
// It returns 0 for a nil error and -1 when no status is available.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	return -1
}

// Exec runs commands on the host.
type Exec struct {
	User    string // run as this user through sudo when set
	SudoBin string
	UsePTY  bool
	Logger  *slog.Logger
}

// BuildUser returns the account builds must run as. Outside of root it is
// empty (run as the current user); as root it is $SUDO_USER.
func BuildUser() (string, error) {
	if os.Geteuid() != 0 {
		return "", nil
	}
	if u := os.Getenv("SUDO_USER"); u != "" && u != "root" {
		return u, nil
	}
	return "", ErrRootBuild
}

// Run implements Runner.
func (r *Exec) Run(ctx context.Context, c Command) error {
	name, args := c.Name, c.Args
	if len(c.Env) > 0 {
		args = append(append(append([]string{}, c.Env...), name), args...)
		name = "env"
	}
	if r.User != "" {
		sudo := r.SudoBin
		if sudo == "" {
			sudo = "sudo"
		}
		args = append([]string{"-H", "-u", r.User, name}, args...)
		name = sudo
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = c.Dir
	out := c.Stdout
	if out == nil {
		out = io.Discard
	}

	if r.Logger != nil {
		r.Logger.Debug("running command", "cmd", c.String(), "dir", c.Dir, "user", r.User)
	}

	if r.UsePTY {
		return runPTY(cmd, out)
	}

	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", c, err)
	}
	return nil
}

// runPTY attaches the child to a pseudo-terminal so build tools line-buffer
// their output for live tailing.
func runPTY(cmd *exec.Cmd, out io.Writer) error {
	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("starting %s: %w", cmd.Path, err)
	}
	defer f.Close()

	_, copyErr := io.Copy(out, f)
	// the master side reports EIO once the child closes its end
	if errors.Is(copyErr, syscall.EIO) {
		copyErr = nil
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", cmd.Path, err)
	}
	return copyErr
}
