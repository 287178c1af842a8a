package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Color scheme for qpm
var (
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
	Info    = color.New(color.FgCyan)

	Highlight = color.New(color.FgHiCyan, color.Bold)
	Muted     = color.New(color.Faint)
	Bold      = color.New(color.Bold)
)

// Status marks
const (
	CheckMark = "✓"
	CrossMark = "✗"
	Arrow     = "→"
	Bullet    = "•"
)

const separator = "────────────────────────────────────────"

// ConfigureColors applies the logging.color setting (auto, always, never).
// auto keeps fatih/color's terminal detection.
func ConfigureColors(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	}
}

// Printer writes styled messages. Regular output goes to Out, warnings and
// errors to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// NewPrinter creates a Printer; nil writers default to stdout and stderr
func NewPrinter(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{Out: out, Err: errOut}
}

// Success prints a success line
func (p *Printer) Success(format string, args ...interface{}) {
	Success.Fprintf(p.Out, "%s %s\n", CheckMark, fmt.Sprintf(format, args...))
}

// Error prints an error line
func (p *Printer) Error(format string, args ...interface{}) {
	Error.Fprintf(p.Err, "%s Error: %s\n", CrossMark, fmt.Sprintf(format, args...))
}

// Warning prints a warning line
func (p *Printer) Warning(format string, args ...interface{}) {
	Warning.Fprintf(p.Err, "Warning: %s\n", fmt.Sprintf(format, args...))
}

// Info prints an informational line
func (p *Printer) Info(format string, args ...interface{}) {
	Info.Fprintf(p.Out, "%s %s\n", Arrow, fmt.Sprintf(format, args...))
}

// Step prints "[step/total] message"
func (p *Printer) Step(step, total int, format string, args ...interface{}) {
	Highlight.Fprintf(p.Out, "[%d/%d] ", step, total)
	fmt.Fprintf(p.Out, format+"\n", args...)
}

// KeyValue prints an aligned "key: value" line
func (p *Printer) KeyValue(key, value string) {
	Bold.Fprintf(p.Out, "  %-12s ", key+":")
	fmt.Fprintln(p.Out, value)
}

// Header prints a section header followed by a separator
func (p *Printer) Header(text string) {
	Bold.Fprintln(p.Out, text)
	Muted.Fprintln(p.Out, separator)
}

// List prints a bulleted list
func (p *Printer) List(items []string) {
	for _, item := range items {
		fmt.Fprintf(p.Out, "  %s %s\n", Bullet, item)
	}
}

// Println prints a plain line
func (p *Printer) Println(args ...interface{}) {
	fmt.Fprintln(p.Out, args...)
}
