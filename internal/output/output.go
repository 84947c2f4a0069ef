// Package output provides consistent CLI output formatting.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool

	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	key     lipgloss.Style
}

// New creates a Writer. Color is used when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, colorSupported(out))
}

// NewWithColor creates a Writer with color forced on or off.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	w := &Writer{out: out, useColor: useColor}
	if useColor {
		w.success = lipgloss.NewStyle().Foreground(lipgloss.Color("154"))
		w.warning = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
		w.failure = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		w.key = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	}
	return w
}

func colorSupported(out io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := out.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// UseColor reports whether output is styled.
func (w *Writer) UseColor() bool {
	return w.useColor
}

// Out returns the underlying writer.
func (w *Writer) Out() io.Writer {
	return w.out
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.success.Render("✅"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.warning.Render("⚠️ "), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.failure.Render("❌"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// KeyValue prints an indented, aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	label := fmt.Sprintf("%-14s", key+":")
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.key.Render(label), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
