package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/synapse/internal/client"
	"github.com/alfredjeanlab/synapse/internal/engine"
	"github.com/alfredjeanlab/synapse/internal/graph"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/server"
	"github.com/alfredjeanlab/synapse/internal/store"
	"github.com/alfredjeanlab/synapse/internal/store/memory"
	"github.com/alfredjeanlab/synapse/internal/tabs/tabstest"
	"github.com/alfredjeanlab/synapse/internal/ui"
	"github.com/spf13/cobra"
)

// useLiveEngine points graphClient at a real engine served over HTTP.
func useLiveEngine(t *testing.T) string {
	t.Helper()
	ui.ForceNoColor()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := server.NewHub(logger)
	mgr, err := graph.Open(ctx, store.New(memory.New()), graph.Options{Publisher: hub, Logger: logger})
	if err != nil {
		t.Fatalf("graph.Open: %v", err)
	}
	eng := engine.New(mgr, tabstest.NewFactory(), engine.Options{
		Publisher:        hub,
		Logger:           logger,
		PositionDebounce: time.Hour,
		Retention:        -1,
	})
	if err := eng.Start(ctx); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}
	srv := server.New(eng, hub, server.Options{Logger: logger, Presence: presence.New(logger)})
	ts := httptest.NewServer(srv.NewHTTPHandler())

	prevClient, prevJSON := graphClient, jsonOutput
	graphClient = client.NewHTTPClient(ts.URL)
	t.Cleanup(func() {
		graphClient, jsonOutput = prevClient, prevJSON
		_ = hub.Close()
		ts.Close()
		_ = eng.Stop(context.Background())
	})
	return ts.URL
}

// runCmd runs one command's RunE with output captured.
func runCmd(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	defer cmd.SetOut(nil)
	if err := cmd.RunE(cmd, args); err != nil {
		t.Fatalf("%s %v: %v", cmd.Name(), args, err)
	}
	return buf.String()
}

func runJSON[T any](t *testing.T, cmd *cobra.Command, args ...string) T {
	t.Helper()
	jsonOutput = true
	defer func() { jsonOutput = false }()
	var v T
	out := runCmd(t, cmd, args...)
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("%s: decode %q: %v", cmd.Name(), out, err)
	}
	return v
}

func TestCommands_BrowseAndGraph(t *testing.T) {
	useLiveEngine(t)

	if out := runCmd(t, healthCmd); strings.TrimSpace(out) != "ok" {
		t.Fatalf("health = %q", out)
	}

	type tab struct {
		ID     string `json:"id"`
		NodeID string `json:"nodeId"`
	}
	a := runJSON[tab](t, tabOpenCmd, "https://a.example")
	b := runJSON[tab](t, tabOpenCmd, "https://b.example")
	if a.NodeID == "" || b.NodeID == "" {
		t.Fatalf("tabs without nodes: %+v %+v", a, b)
	}

	if out := runCmd(t, tabListCmd); !strings.Contains(out, "* "+b.ID) {
		t.Errorf("tab list should mark %s active:\n%s", b.ID, out)
	}

	out := runCmd(t, graphCmd)
	if !strings.Contains(out, a.NodeID) || !strings.Contains(out, "  "+b.NodeID) {
		t.Errorf("graph should nest b under a:\n%s", out)
	}
	if !strings.Contains(out, "2 nodes, 1 edges") {
		t.Errorf("graph summary missing:\n%s", out)
	}

	runCmd(t, nodeMoveCmd, a.NodeID, "10", "20")
	if out := runCmd(t, nodeShowCmd, a.NodeID); !strings.Contains(out, "https://a.example") {
		t.Errorf("node show:\n%s", out)
	}

	if out := runCmd(t, tabCloseCmd, a.ID, a.ID); !strings.Contains(out, "closed "+a.ID) || !strings.Contains(out, "was not open") {
		t.Errorf("tab close:\n%s", out)
	}
	reopened := runJSON[tab](t, nodeReopenCmd, a.NodeID)
	if reopened.NodeID != a.NodeID {
		t.Errorf("reopen bound node %q, want %q", reopened.NodeID, a.NodeID)
	}

	if err := tabSwitchCmd.RunE(tabSwitchCmd, []string{"missing"}); err == nil {
		t.Error("switching to a missing tab should fail in the CLI")
	}

	if out := runCmd(t, timelineCmd); !strings.Contains(out, "node_created") {
		t.Errorf("timeline:\n%s", out)
	}

	out = runCmd(t, treeSaveCmd, "pair", a.NodeID, b.NodeID)
	if !strings.Contains(out, "2 nodes, 1 edges") {
		t.Errorf("tree save:\n%s", out)
	}
	trees := runJSON[[]model.TreeSummary](t, treeListCmd)
	if len(trees) != 1 {
		t.Fatalf("trees = %d", len(trees))
	}
	if out := runCmd(t, treeShowCmd, trees[0].ID); !strings.Contains(out, "pair") {
		t.Errorf("tree show:\n%s", out)
	}
	runCmd(t, treeDeleteCmd, trees[0].ID)
}

func TestCommands_SessionsAndData(t *testing.T) {
	useLiveEngine(t)
	dir := t.TempDir()

	runCmd(t, tabOpenCmd, "https://a.example")
	first := runJSON[model.Session](t, sessionCurrentCmd)

	exportPath := filepath.Join(dir, "session.json")
	exportCmd.Flags().Set("output", exportPath)
	defer exportCmd.Flags().Set("output", "")
	runCmd(t, exportCmd)

	imported := runJSON[model.Session](t, importCmd, exportPath)
	if imported.ID == first.ID || imported.NodeCount != 1 {
		t.Fatalf("imported = %+v", imported)
	}

	second := runJSON[model.Session](t, sessionNewCmd, "Research")
	if second.Name != "Research" {
		t.Errorf("new session name = %q", second.Name)
	}
	renamed := runJSON[model.Session](t, sessionRenameCmd, second.ID, "Reading")
	if renamed.Name != "Reading" {
		t.Errorf("renamed = %q", renamed.Name)
	}
	if out := runCmd(t, sessionListCmd); !strings.Contains(out, "Reading") {
		t.Errorf("session list:\n%s", out)
	}
	runCmd(t, sessionSwitchCmd, first.ID)
	runCmd(t, sessionDeleteCmd, second.ID)

	backupPath := filepath.Join(dir, "graph.jsonl")
	backupCmd.Flags().Set("output", backupPath)
	defer backupCmd.Flags().Set("output", "")
	runCmd(t, backupCmd)
	out := runCmd(t, backupInspectCmd, backupPath)
	if !strings.Contains(out, "Sessions:  2") || !strings.Contains(out, "Nodes:     2") {
		t.Errorf("backup inspect:\n%s", out)
	}

	if err := clearCmd.RunE(clearCmd, nil); err == nil {
		t.Error("clear without --yes should refuse")
	}
	clearCmd.Flags().Set("yes", "true")
	defer clearCmd.Flags().Set("yes", "false")
	runCmd(t, clearCmd)
	if out := runCmd(t, cleanupCmd); !strings.Contains(out, "deleted 0 nodes") {
		t.Errorf("cleanup:\n%s", out)
	}
}

func TestImport_ReadsStdin(t *testing.T) {
	useLiveEngine(t)
	doc := `{"version":"1.0","session":{"id":"s","name":"Piped"},"graph":{"nodes":[{"id":"n1","url":"https://x.example","status":"closed"}],"edges":[]}}`
	importCmd.SetIn(strings.NewReader(doc))
	defer importCmd.SetIn(nil)

	out := runCmd(t, importCmd, "-")
	if !strings.Contains(out, `"Piped (imported)"`) || !strings.Contains(out, "1 nodes") {
		t.Errorf("import output:\n%s", out)
	}
}

func TestBackupInspect_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	data := `{"version":"1","type":"header","node_count":3}` + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	backupInspectCmd.SetOut(&buf)
	defer backupInspectCmd.SetOut(nil)
	if err := backupInspectCmd.RunE(backupInspectCmd, []string{path}); err == nil {
		t.Fatal("expected a truncation error")
	}
}
