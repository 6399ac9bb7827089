package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/emergent/skillsmarket/pkg/presenter"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("installation cancelled")

// Option is one choice offered by a prompt.
type Option struct {
	Label string
	Hint  string
	Value string
}

// Prompter asks the user to pick among options.
type Prompter interface {
	Select(ctx context.Context, title string, options []Option) (string, error)
	// MultiSelect requires at least one choice.
	MultiSelect(ctx context.Context, title string, options []Option) ([]string, error)
}

// NewPrompter returns an interactive prompter when stdin and stdout are both
// terminals and a line based one otherwise.
func NewPrompter(p presenter.Presenter) Prompter {
	if term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		return &TeaPrompter{in: os.Stdin, out: os.Stdout}
	}
	return &LinePrompter{presenter: p}
}

// TeaPrompter renders prompts as a small bubbletea program.
type TeaPrompter struct {
	in  io.Reader
	out io.Writer
}

// Select implements Prompter.
func (t *TeaPrompter) Select(ctx context.Context, title string, options []Option) (string, error) {
	chosen, err := t.run(ctx, newSelectModel(title, options, false))
	if err != nil {
		return "", err
	}
	return chosen[0], nil
}

// MultiSelect implements Prompter.
func (t *TeaPrompter) MultiSelect(ctx context.Context, title string, options []Option) ([]string, error) {
	return t.run(ctx, newSelectModel(title, options, true))
}

func (t *TeaPrompter) run(ctx context.Context, model selectModel) ([]string, error) {
	if len(model.options) == 0 {
		return nil, errors.New("nothing to choose from")
	}
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithInput(t.in), tea.WithOutput(t.out))
	final, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil, ErrCancelled
		}
		return nil, errors.Wrap(err, "prompt failed")
	}
	m := final.(selectModel)
	if m.cancelled {
		return nil, ErrCancelled
	}
	return m.values(), nil
}

type selectKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	Confirm key.Binding
	Cancel  key.Binding
}

func (k selectKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Confirm, k.Cancel}
}

func (k selectKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type selectModel struct {
	title     string
	options   []Option
	multi     bool
	cursor    int
	chosen    map[int]bool
	keys      selectKeyMap
	help      help.Model
	warning   string
	done      bool
	cancelled bool
}

func newSelectModel(title string, options []Option, multi bool) selectModel {
	keys := selectKeyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:  key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("ctrl+c", "esc", "q"), key.WithHelp("esc", "cancel")),
	}
	keys.Toggle.SetEnabled(multi)

	return selectModel{
		title:   title,
		options: options,
		multi:   multi,
		chosen:  map[int]bool{},
		keys:    keys,
		help:    help.New(),
	}
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Cancel):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case key.Matches(keyMsg, m.keys.Toggle):
		m.chosen[m.cursor] = !m.chosen[m.cursor]
		m.warning = ""
	case key.Matches(keyMsg, m.keys.Confirm):
		if m.multi && len(m.values()) == 0 {
			m.warning = "select at least one option"
			return m, nil
		}
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for i, opt := range m.options {
		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("❯ ")
		}
		label := opt.Label
		if m.multi {
			box := "[ ] "
			if m.chosen[i] {
				box = selectedStyle.Render("[x] ")
			}
			label = box + label
		}
		b.WriteString(cursor + label)
		if opt.Hint != "" {
			b.WriteString(" " + hintStyle.Render("("+opt.Hint+")"))
		}
		b.WriteString("\n")
	}
	if m.warning != "" {
		b.WriteString(errorStyle.Render(m.warning) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m selectModel) values() []string {
	if !m.multi {
		return []string{m.options[m.cursor].Value}
	}
	var out []string
	for i, opt := range m.options {
		if m.chosen[i] {
			out = append(out, opt.Value)
		}
	}
	return out
}

// LinePrompter asks numbered questions through a presenter. An empty answer
// or exhausted input cancels.
type LinePrompter struct {
	presenter presenter.Presenter
}

// NewLinePrompter creates a LinePrompter.
func NewLinePrompter(p presenter.Presenter) *LinePrompter {
	return &LinePrompter{presenter: p}
}

// Select implements Prompter.
func (l *LinePrompter) Select(_ context.Context, title string, options []Option) (string, error) {
	for {
		l.list(title, options)
		answer := l.presenter.Prompt("Choose one", "1-"+strconv.Itoa(len(options)))
		if answer == "" {
			return "", ErrCancelled
		}
		if v, ok := pick(answer, options); ok {
			return v, nil
		}
		l.presenter.Warning(fmt.Sprintf("%q is not a valid choice", answer))
	}
}

// MultiSelect implements Prompter. Choices are separated by commas.
func (l *LinePrompter) MultiSelect(_ context.Context, title string, options []Option) ([]string, error) {
	for {
		l.list(title, options)
		answer := l.presenter.Prompt("Choose one or more, separated by commas", "1-"+strconv.Itoa(len(options)))
		if answer == "" {
			return nil, ErrCancelled
		}

		var values []string
		valid := true
		for _, part := range strings.Split(answer, ",") {
			v, ok := pick(strings.TrimSpace(part), options)
			if !ok {
				l.presenter.Warning(fmt.Sprintf("%q is not a valid choice", strings.TrimSpace(part)))
				valid = false
				break
			}
			if !contains(values, v) {
				values = append(values, v)
			}
		}
		if valid {
			return values, nil
		}
	}
}

func (l *LinePrompter) list(title string, options []Option) {
	l.presenter.Info(title)
	for i, opt := range options {
		line := fmt.Sprintf("  %d) %s", i+1, opt.Label)
		if opt.Hint != "" {
			line += " - " + opt.Hint
		}
		l.presenter.Info(line)
	}
}

// pick accepts a 1-based index, a value or a label.
func pick(answer string, options []Option) (string, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1].Value, true
		}
		return "", false
	}
	for _, opt := range options {
		if strings.EqualFold(answer, opt.Value) || strings.EqualFold(answer, opt.Label) {
			return opt.Value, true
		}
	}
	return "", false
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
