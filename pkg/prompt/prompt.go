// Package prompt asks the user for confirmation in the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrNotInteractive is returned when no terminal is attached to ask on.
var ErrNotInteractive = errors.New("not running in a terminal")

var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	hintStyle     = lipgloss.NewStyle().Faint(true)
	yesStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	noStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int.
}

// ConfirmModel is a yes/no question.
type ConfirmModel struct {
	question string
	def      bool
	answer   bool
	done     bool
}

// NewConfirmModel creates the question with a default for plain Enter.
func NewConfirmModel(question string, def bool) ConfirmModel {
	return ConfirmModel{question: question, def: def}
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "y", "Y":
		m.answer = true
	case "n", "N", "q", "esc", "ctrl+c":
		m.answer = false
	case "enter":
		m.answer = m.def
	default:
		return m, nil
	}

	m.done = true

	return m, tea.Quit
}

// View implements tea.Model.
func (m ConfirmModel) View() string {
	if m.done {
		answer := noStyle.Render("no")
		if m.answer {
			answer = yesStyle.Render("yes")
		}

		return questionStyle.Render(m.question) + " " + answer + "\n"
	}

	hint := "[y/N]"
	if m.def {
		hint = "[Y/n]"
	}

	return questionStyle.Render(m.question) + " " + hintStyle.Render(hint) + " "
}

// Answered reports whether a key decided the question.
func (m ConfirmModel) Answered() bool { return m.done }

// Answer is the decision. It is false until Answered.
func (m ConfirmModel) Answer() bool { return m.answer }

// Confirm asks question on out and reads the answer from in. Interrupting
// the prompt counts as no.
func Confirm(ctx context.Context, in io.Reader, out io.Writer, question string, def bool) (bool, error) {
	p := tea.NewProgram(NewConfirmModel(question, def),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithoutSignalHandler(),
	)

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
			return false, nil
		}

		return false, fmt.Errorf("run prompt: %w", err)
	}

	m, ok := final.(ConfirmModel)
	if !ok {
		return false, nil
	}

	return m.Answer(), nil
}

// ConfirmTerminal asks on the process terminal, failing with
// ErrNotInteractive when stdin or stdout is redirected.
func ConfirmTerminal(ctx context.Context, question string, def bool) (bool, error) {
	if !IsTerminal(os.Stdin) || !IsTerminal(os.Stdout) {
		return false, ErrNotInteractive
	}

	return Confirm(ctx, os.Stdin, os.Stdout, question, def)
}
