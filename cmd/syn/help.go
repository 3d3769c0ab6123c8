package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/alfredjeanlab/synapse/internal/ui"
	"github.com/spf13/cobra"
)

// helpRule styles the submatches of pattern in cobra's usage text. Group n
// of the pattern is passed through style[n-1]; a nil style keeps the text.
type helpRule struct {
	pattern *regexp.Regexp
	style   []func(string) string
}

var helpRules = []helpRule{
	// Section headers such as "Browse:" and "Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), []func(string) string{ui.RenderAccent}},
	// Command names in the command lists.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), []func(string) string{nil, ui.RenderCommand, nil}},
	// Flag value types, "--older-than duration".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|float|duration|stringSlice|stringArray)\b`), []func(string) string{nil, ui.RenderMuted}},
	{regexp.MustCompile(`(\(default "?[^)]*"?\))`), []func(string) string{ui.RenderMuted}},
}

// colorizedHelpFunc renders cobra's usage text through colorizeHelpOutput
// when the terminal supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}
		orig := cmd.OutOrStdout()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)
		fmt.Fprint(orig, colorizeHelpOutput(buf.String()))
	}
}

func colorizeHelpOutput(s string) string {
	for _, r := range helpRules {
		s = r.pattern.ReplaceAllStringFunc(s, func(match string) string {
			parts := r.pattern.FindStringSubmatch(match)
			var b bytes.Buffer
			for i, part := range parts[1:] {
				if f := r.style[i]; f != nil {
					part = f(part)
				}
				b.WriteString(part)
			}
			return b.String()
		})
	}
	return s
}
