package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/synapse/internal/ui"
	"github.com/spf13/cobra"
)

// isolateState points the remotes file at a fresh directory.
func isolateState(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	return dir
}

// runRemote runs a remote subcommand's RunE and returns its output.
func runRemote(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}

func TestRemoteBook_SaveAndOpen(t *testing.T) {
	dir := isolateState(t)

	b := &remoteBook{
		Active: "lab",
		Remotes: map[string]Remote{
			"lab":   {URL: "http://lab:7420", GRPC: "lab:7421", NATSURL: "nats://lab:4222"},
			"local": {URL: "http://localhost:7420"},
		},
	}
	if err := b.save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := openRemoteBook()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	name, lab, err := got.get("")
	if err != nil || name != "lab" {
		t.Fatalf("get(active) = %q, %v", name, err)
	}
	if lab != b.Remotes["lab"] {
		t.Errorf("lab = %+v, want %+v", lab, b.Remotes["lab"])
	}
	if names := got.names(); strings.Join(names, ",") != "lab,local" {
		t.Errorf("names = %v", names)
	}

	path := filepath.Join(dir, "synapse", "remotes.toml")
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
}

func TestOpenRemoteBook_NoFile(t *testing.T) {
	isolateState(t)
	b, err := openRemoteBook()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Active != "" || b.Remotes == nil || len(b.Remotes) != 0 {
		t.Errorf("expected empty book, got %+v", b)
	}
	if _, _, err := b.get(""); err == nil {
		t.Error("get with no active remote should fail")
	}
}

func TestRemote_Validate(t *testing.T) {
	for _, tc := range []struct {
		remote  Remote
		wantErr bool
	}{
		{Remote{URL: "http://localhost:7420"}, false},
		{Remote{URL: "https://syn.example", NATSURL: "nats://syn.example:4222"}, false},
		{Remote{URL: "localhost:7420"}, true},
		{Remote{URL: "ftp://host"}, true},
		{Remote{URL: "http://host", NATSURL: "not a url"}, true},
	} {
		if err := tc.remote.validate(); (err != nil) != tc.wantErr {
			t.Errorf("validate(%+v) = %v, wantErr %v", tc.remote, err, tc.wantErr)
		}
	}
}

func TestRemoteCommands_Lifecycle(t *testing.T) {
	isolateState(t)
	ui.ForceNoColor()

	if err := remoteAddCmd.Flags().Set("grpc", "localhost:7421"); err != nil {
		t.Fatalf("set grpc flag: %v", err)
	}
	t.Cleanup(func() { _ = remoteAddCmd.Flags().Set("grpc", "") })

	if _, err := runRemote(t, remoteAddCmd, "local", "http://localhost:7420"); err != nil {
		t.Fatal(err)
	}
	// Re-adding updates in place.
	if _, err := runRemote(t, remoteAddCmd, "local", "http://127.0.0.1:7420"); err != nil {
		t.Fatal(err)
	}
	if _, err := runRemote(t, remoteUseCmd, "local"); err != nil {
		t.Fatal(err)
	}

	b, _ := openRemoteBook()
	if b.Active != "local" || b.Remotes["local"].URL != "http://127.0.0.1:7420" || b.Remotes["local"].GRPC != "localhost:7421" {
		t.Fatalf("book = %+v", b)
	}

	out, err := runRemote(t, remoteListCmd)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "* local") {
		t.Errorf("list missing active marker:\n%s", out)
	}

	out, err = runRemote(t, remoteShowCmd)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"127.0.0.1:7420", "(active)", "localhost:7421"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}

	if _, err := runRemote(t, remoteRemoveCmd, "local"); err != nil {
		t.Fatal(err)
	}
	b, _ = openRemoteBook()
	if _, ok := b.Remotes["local"]; ok || b.Active != "" {
		t.Errorf("after remove: %+v", b)
	}
}

func TestRemoteCommands_AddUseAndJSON(t *testing.T) {
	isolateState(t)
	if err := remoteAddCmd.Flags().Set("use", "true"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = remoteAddCmd.Flags().Set("use", "false") })
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	if _, err := runRemote(t, remoteAddCmd, "prod", "https://syn.example"); err != nil {
		t.Fatal(err)
	}
	out, err := runRemote(t, remoteListCmd)
	if err != nil {
		t.Fatal(err)
	}
	var views []remoteView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("list JSON: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].Name != "prod" || !views[0].Active || views[0].URL != "https://syn.example" {
		t.Errorf("views = %+v", views)
	}
}

func TestRemoteCommands_Errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  *cobra.Command
		args []string
	}{
		{"UseUnknown", remoteUseCmd, []string{"ghost"}},
		{"RemoveUnknown", remoteRemoveCmd, []string{"ghost"}},
		{"ShowNoActive", remoteShowCmd, nil},
		{"AddBadURL", remoteAddCmd, []string{"bad", "localhost"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			isolateState(t)
			if _, err := runRemote(t, tc.cmd, tc.args...); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
