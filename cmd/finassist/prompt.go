package main

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

var errNoQuestion = errors.New("a question is required")

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// promptQuestion asks for the question on the terminal.
func promptQuestion() (string, error) {
	var question string

	err := huh.NewInput().
		Title("Question").
		Placeholder("What is the current price of AAPL?").
		Value(&question).
		Validate(validateQuestion).
		Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(question), nil
}

func validateQuestion(s string) error {
	if strings.TrimSpace(s) == "" {
		return errNoQuestion
	}
	return nil
}

// answeredMsg tells waitModel that the work it is waiting on finished.
type answeredMsg struct{}

// waitModel shows a spinner and a label until it receives answeredMsg.
type waitModel struct {
	spinner spinner.Model
	label   string
	done    bool
}

func newWaitModel(label string) waitModel {
	return waitModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(spinnerStyle)),
		label:   label,
	}
}

func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case answeredMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m waitModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + mutedStyle.Render(m.label)
}

// withSpinner runs fn while a spinner animates on stderr. Without a terminal
// on stderr fn runs plainly.
func withSpinner(ctx context.Context, label string, fn func(context.Context) error) error {
	if !isTerminal(os.Stderr) {
		return fn(ctx)
	}

	p := tea.NewProgram(newWaitModel(label),
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(os.Stderr),
	)

	errc := make(chan error, 1)
	go func() {
		errc <- fn(ctx)
		p.Send(answeredMsg{})
	}()

	// The spinner is cosmetic: fn's outcome decides the result.
	_, _ = p.Run()

	return <-errc
}
