// Package ui implements the operator-facing prompts and progress display.
package ui

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Gate asks the operator to confirm, choose and review, and shows build
// progress. Every method blocks until it has an answer.
type Gate interface {
	Confirm(title string, lines []string) bool
	// SelectOne returns the chosen index, or false if nothing was chosen.
	SelectOne(title string, options []string) (int, bool)
	// ReviewRecipe shows newText, as a diff against oldText when oldText is
	// not empty, and reports whether the operator accepted it.
	ReviewRecipe(name, newText, oldText string) bool
	ShowProgress(title string, lines []string, finished bool, elapsed time.Duration)
}

// New returns the interactive gate when stdin and stdout are terminals and
// noConfirm is false, and the automatic gate otherwise.
func New(noConfirm bool, logger *slog.Logger) Gate {
	if noConfirm || !Interactive() {
		return NewAuto(os.Stdout, logger)
	}
	return NewTerminal(os.Stdin, os.Stdout, logger)
}

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return isTTY(os.Stdin) && isTTY(os.Stdout)
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Terminal prompts through huh forms and a bubbletea recipe viewer.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	progress
}

// NewTerminal creates an interactive gate.
func NewTerminal(in io.Reader, out io.Writer, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Terminal{in: in, out: out, logger: logger, progress: newProgress(out, true)}
}

func (t *Terminal) Confirm(title string, lines []string) bool {
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Description(strings.Join(lines, "\n")).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			t.logger.Error("confirmation prompt", "error", err)
		}
		return false
	}
	return ok
}

func (t *Terminal) SelectOne(title string, options []string) (int, bool) {
	if len(options) == 0 {
		return 0, false
	}
	opts := make([]huh.Option[int], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, i)
	}
	idx := 0
	err := huh.NewSelect[int]().
		Title(title).
		Options(opts...).
		Value(&idx).
		Run()
	if err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			t.logger.Error("selection prompt", "error", err)
		}
		return 0, false
	}
	return idx, true
}

func (t *Terminal) ReviewRecipe(name, newText, oldText string) bool {
	p := tea.NewProgram(newReviewModel(name, newText, oldText),
		tea.WithAltScreen(),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)
	final, err := p.Run()
	if err != nil {
		t.logger.Error("recipe review", "package", name, "error", err)
		return false
	}
	return final.(reviewModel).accepted
}

// Auto answers every prompt with yes and prints progress as plain text.
type Auto struct {
	out    io.Writer
	logger *slog.Logger
	progress
}

// NewAuto creates a non-interactive gate.
func NewAuto(out io.Writer, logger *slog.Logger) *Auto {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Auto{out: out, logger: logger, progress: newProgress(out, false)}
}

func (a *Auto) Confirm(title string, lines []string) bool {
	a.logger.Info("confirmed automatically", "prompt", title)
	writeLines(a.out, append([]string{"==> " + title}, lines...))
	return true
}

func (a *Auto) SelectOne(title string, options []string) (int, bool) {
	if len(options) == 0 {
		return 0, false
	}
	a.logger.Info("selected automatically", "prompt", title, "choice", options[0])
	return 0, true
}

func (a *Auto) ReviewRecipe(name, newText, oldText string) bool {
	a.logger.Info("recipe accepted without review", "package", name, "changed", oldText != "" && oldText != newText)
	return true
}

func writeLines(w io.Writer, lines []string) {
	for _, l := range lines {
		io.WriteString(w, l+"\n")
	}
}
