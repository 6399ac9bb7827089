// Package presenter provides consistent CLI output for user-facing messages:
// success, error, warning and informational lines, section headers, simple
// tables and line-based prompts, with color support and a quiet mode.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// Presenter defines the interface for CLI output.
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Table(headers []string, rows [][]string)
	Prompt(question string, options ...string) string
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode controls colored output.
type ColorMode int

const (
	// ColorAuto lets fatih/color detect terminal support.
	ColorAuto ColorMode = iota
	// ColorAlways forces colors.
	ColorAlways
	// ColorNever disables colors.
	ColorNever
)

// TerminalPresenter writes to a pair of writers and reads prompt answers
// from input.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       *bufio.Reader
	colorMode   ColorMode
	quiet       bool
}

// New creates a presenter bound to the process standard streams.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a presenter with custom writers and color mode.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}

	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       bufio.NewReader(os.Stdin),
		colorMode:   colorMode,
	}
}

// WithInput replaces the reader used by Prompt.
func (p *TerminalPresenter) WithInput(r io.Reader) *TerminalPresenter {
	p.input = bufio.NewReader(r)
	return p
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch os.Getenv("SKILLSMARKET_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error writes an error to the error stream. It is printed even in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

// Success writes a green check line.
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning writes a yellow warning line.
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

// Info writes a plain line.
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section writes an underlined header.
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	h := color.New(color.Bold)
	h.Fprintf(p.output, "%s\n", title)
	h.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Table writes rows aligned under bold headers.
func (p *TerminalPresenter) Table(headers []string, rows [][]string) {
	if p.quiet {
		return
	}

	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold).SprintFunc()

	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = bold(h)
	}
	fmt.Fprintln(w, strings.Join(styled, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

// Prompt asks a question and returns the trimmed answer. An empty string is
// returned when input is exhausted.
func (p *TerminalPresenter) Prompt(question string, options ...string) string {
	c := color.New(color.FgCyan)
	if len(options) > 0 {
		c.Fprintf(p.output, "%s [%s]: ", question, strings.Join(options, "/"))
	} else {
		c.Fprintf(p.output, "%s: ", question)
	}

	answer, err := p.input.ReadString('\n')
	if err != nil && answer == "" {
		return ""
	}
	return strings.TrimSpace(answer)
}

// SetQuiet toggles quiet mode.
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet reports whether quiet mode is on.
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter Presenter = New()

// Default returns the process-wide presenter.
func Default() Presenter {
	return defaultPresenter
}

// Error prints err using the default presenter.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success prints message using the default presenter.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning prints message using the default presenter.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info prints message using the default presenter.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section prints a header using the default presenter.
func Section(title string) {
	defaultPresenter.Section(title)
}

// Table prints rows using the default presenter.
func Table(headers []string, rows [][]string) {
	defaultPresenter.Table(headers, rows)
}

// Prompt asks a question using the default presenter.
func Prompt(question string, options ...string) string {
	return defaultPresenter.Prompt(question, options...)
}

// SetQuiet toggles quiet mode on the default presenter.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}
