package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/frederic-klein/pmt/internal/diff"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	addStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	delStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

const (
	headerLines = 2
	footerLines = 2
)

// reviewModel shows a recipe for acceptance. With a previous version it
// opens on the diff and 'd' switches between diff and full text.
type reviewModel struct {
	name     string
	full     string
	lines    []diff.Line
	hasDiff  bool
	showDiff bool
	added    int
	removed  int

	viewport viewport.Model
	ready    bool
	accepted bool
	quitting bool
}

func newReviewModel(name, newText, oldText string) reviewModel {
	m := reviewModel{name: name, full: newText}
	if oldText != "" {
		m.lines = diff.Lines(oldText, newText)
		m.added, m.removed = diff.Stats(m.lines)
		m.hasDiff, m.showDiff = true, true
	}
	return m
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := max(msg.Height-headerLines-footerLines, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.viewport.YPosition = headerLines
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.viewport.SetContent(m.content())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y", "enter":
			m.accepted, m.quitting = true, true
			return m, tea.Quit
		case "n", "N", "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "d":
			if m.hasDiff {
				m.showDiff = !m.showDiff
				m.viewport.SetContent(m.content())
				m.viewport.GotoTop()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m reviewModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	return m.header() + "\n" + m.viewport.View() + "\n" + m.footer()
}

func (m reviewModel) header() string {
	title := titleStyle.Render("Review PKGBUILD: " + m.name)
	switch {
	case m.hasDiff && m.showDiff:
		title += "  " + statsStyle.Render(fmt.Sprintf("diff +%d -%d", m.added, m.removed))
	case m.hasDiff:
		title += "  " + statsStyle.Render("full file")
	default:
		title += "  " + statsStyle.Render("new")
	}
	return title + "\n" + strings.Repeat("─", max(m.viewport.Width, 1))
}

func (m reviewModel) footer() string {
	help := "y accept • n reject • ↑/↓ scroll"
	if m.hasDiff {
		help += " • d toggle diff"
	}
	return fmt.Sprintf("%s\n%s", strings.Repeat("─", max(m.viewport.Width, 1)),
		helpStyle.Render(fmt.Sprintf("%s  %3.f%%", help, m.viewport.ScrollPercent()*100)))
}

func (m reviewModel) content() string {
	if !m.showDiff {
		return m.full
	}
	var b strings.Builder
	for _, l := range m.lines {
		switch l.Op {
		case diff.Insert:
			b.WriteString(addStyle.Render(l.String()))
		case diff.Delete:
			b.WriteString(delStyle.Render(l.String()))
		default:
			b.WriteString(l.String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
