package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// progress prints a growing log incrementally. Lines already printed are not
// repeated; a header is printed whenever the title changes.
type progress struct {
	w       io.Writer
	styled  bool
	width   func() int
	printed int
	title   string
}

func newProgress(w io.Writer, styled bool) progress {
	return progress{w: w, styled: styled, width: terminalWidth}
}

func (p *progress) ShowProgress(title string, lines []string, finished bool, elapsed time.Duration) {
	// a shorter log belongs to a new run
	if len(lines) < p.printed {
		p.printed = 0
	}
	if title != p.title {
		p.title = title
		p.header(title)
	}
	width := p.width()
	for _, l := range lines[p.printed:] {
		if width > 0 {
			l = runewidth.Truncate(l, width, "…")
		}
		fmt.Fprintln(p.w, l)
	}
	p.printed = len(lines)

	if finished {
		msg := fmt.Sprintf("%s (%s)", title, formatElapsed(elapsed))
		if p.styled {
			msg = doneStyle.Render(msg)
		}
		fmt.Fprintln(p.w, msg)
		p.title = ""
	}
}

func (p *progress) header(title string) {
	h := "==> " + title
	if p.styled {
		h = headerStyle.Render(h)
	}
	fmt.Fprintln(p.w, h)
}

func formatElapsed(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}
