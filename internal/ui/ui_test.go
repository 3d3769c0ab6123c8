package ui

import (
	"strings"
	"testing"

	"github.com/alfredjeanlab/synapse/internal/model"
)

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"https://example.com/long", 10, "https://e…"},
		{"héllo wörld", 6, "héllo…"},
		{"abc", 1, "…"},
		{"abc", 0, "abc"},
	} {
		if got := Truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	SetColor(true)
	defer SetColor(false)

	active := RenderStatus(model.NodeActive)
	closed := RenderStatus(model.NodeClosed)
	if !strings.Contains(active, "active") || !strings.HasPrefix(active, "\x1b[") {
		t.Errorf("active = %q", active)
	}
	if active == closed {
		t.Error("active and closed should render differently")
	}

	ForceNoColor()
	if got := RenderStatus(model.NodeImported); got != "imported" {
		t.Errorf("no-color status = %q", got)
	}
	if got := Marker(true); got != "*" {
		t.Errorf("Marker(true) = %q", got)
	}
}

func TestShouldUseColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR should win")
	}
	t.Setenv("NO_COLOR", "")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE should force color")
	}
	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "0")
	if ShouldUseColor() {
		t.Error("CLICOLOR=0 should disable color")
	}
}

func TestWidthFallback(t *testing.T) {
	// Test binaries run with stdout redirected.
	if got := Width(77); got != 77 && got <= 0 {
		t.Errorf("Width = %d", got)
	}
}
