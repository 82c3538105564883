package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/changegate/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Runner performs the gated run the TUI waits on.
type Runner func() model.RunState

// --- Messages ---
type doneMsg struct {
	model.RunState
}

// --- Model ---
type Model struct {
	run     Runner
	spinner spinner.Model
	state   state
	result  model.RunState
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateCancelled
)

func New(run Runner) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		run:     run,
		spinner: s,
		state:   stateProcessing,
	}
}

// Result is the run state once the program has finished.
func (m Model) Result() (model.RunState, bool) {
	return m.result, m.state == stateSummary
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runGate)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.state = stateCancelled
			return m, tea.Quit
		}

	case doneMsg:
		m.state = stateSummary
		m.result = msg.RunState
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		return fmt.Sprintf("%s Applying changes and checking the plan...", m.spinner.View())
	case stateCancelled:
		return faintStyle.Render("Cancelled.") + "\n"
	case stateSummary:
		return Render(m.result)
	default:
		return ""
	}
}

// Render formats a finished run.
func Render(st model.RunState) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Run " + st.RunID))
	b.WriteString("\n\n")

	for _, g := range []struct {
		name string
		ok   bool
	}{
		{"validated", st.Validated},
		{"applied", st.AppliedOK},
		{"coverage", st.CoverageOK},
		{"criteria", st.CriteriaOK},
	} {
		if g.ok {
			b.WriteString(successStyle.Render("  ✓ " + g.name))
		} else {
			b.WriteString(errorStyle.Render("  ✗ " + g.name))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	section := func(title string, style lipgloss.Style, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString(style.Render(title + ":"))
		b.WriteString("\n")
		for _, item := range items {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(item)))
		}
	}
	section("Changed", successStyle, st.ChangedFiles)
	section("Warnings", warningStyle, st.Warnings)
	section("Errors", errorStyle, st.Errors)
	if st.Coverage != nil {
		section("Missing functions", errorStyle, st.Coverage.Missing.Functions)
		section("Missing selectors", errorStyle, st.Coverage.Missing.CSSSelectors)
		section("Missing test files", errorStyle, st.Coverage.Missing.TestFiles)
		section("Missing files", errorStyle, st.Coverage.Missing.RequiredFiles)
	}
	section("Unsatisfied criteria", errorStyle, st.UnsatisfiedCriteria)

	if st.CanCommit() {
		b.WriteString(successStyle.Render("Ready to commit."))
	} else {
		b.WriteString(errorStyle.Render("Not ready to commit."))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) runGate() tea.Msg {
	return doneMsg{RunState: m.run()}
}
