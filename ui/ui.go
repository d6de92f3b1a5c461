// Package ui provides styled terminal messages for the CLI surface.
// Styling degrades to plain text automatically when stderr is not a
// terminal.
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// ErrorStyle renders fatal CLI errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#EF4444")).
	Bold(true)

// Error prints an error message with an X icon to stderr.
func Error(msg string) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render("✗ "+msg))
}

// Errorf prints a formatted error message with an X icon to stderr.
func Errorf(format string, args ...interface{}) {
	Error(fmt.Sprintf(format, args...))
}
