// Package ui renders CLI output: colors, node status badges and column
// truncation sized to the terminal.
package ui

import (
	"fmt"
	"unicode/utf8"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorActive = 114 // green
	colorWarn   = 180 // amber
	colorMuted  = 245 // medium gray
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderWarn returns s in the warning (amber) color.
func RenderWarn(s string) string { return paint(colorWarn, s) }

// RenderStatus colors a node status: active green, closed gray, imported blue.
func RenderStatus(status model.NodeStatus) string {
	switch status {
	case model.NodeActive:
		return paint(colorActive, string(status))
	case model.NodeImported:
		return paint(colorAccent, string(status))
	default:
		return paint(colorMuted, string(status))
	}
}

// Marker returns a bullet for the current row and a blank otherwise.
func Marker(current bool) string {
	if current {
		return paint(colorActive, "*")
	}
	return " "
}

// Truncate shortens s to at most width runes, ending in an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:width-1]) + "…"
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// SetColor enables or disables color output globally.
func SetColor(on bool) {
	noColor = !on
}
