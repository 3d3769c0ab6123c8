package sync

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// newClone creates a bare origin and a clone of it with one commit on main.
// It returns the clone path and the origin path.
func newClone(t *testing.T) (string, string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
	origin := t.TempDir()
	gitIn(t, origin, "init", "--bare")

	repo := filepath.Join(t.TempDir(), "repo")
	gitIn(t, filepath.Dir(repo), "clone", origin, "repo")
	gitIn(t, repo, "config", "user.email", "sync@example.com")
	gitIn(t, repo, "config", "user.name", "Sync")
	gitIn(t, repo, "branch", "-m", "main")
	if err := os.WriteFile(filepath.Join(repo, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	gitIn(t, repo, "add", ".")
	gitIn(t, repo, "commit", "-m", "init")
	gitIn(t, repo, "push", "origin", "main")
	return repo, origin
}

// gitIn runs git in dir and returns its trimmed stdout.
func gitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, errOut.String())
	}
	return strings.TrimSpace(out.String())
}

func commitCount(t *testing.T, dir, ref string) int {
	t.Helper()
	n, err := strconv.Atoi(gitIn(t, dir, "rev-list", "--count", ref))
	if err != nil {
		t.Fatalf("rev-list: %v", err)
	}
	return n
}

func TestGitDestination_Write(t *testing.T) {
	for _, tc := range []struct {
		name string
		file string
	}{
		{"RepoRoot", "graph.jsonl"},
		{"SubDirectory", "backups/daily/graph.jsonl"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			repo, origin := newClone(t)
			dest := NewGitDestination(repo, tc.file, "main")
			ctx := context.Background()

			first := []byte(`{"version":"1","type":"header"}` + "\n")
			if err := dest.Write(ctx, first); err != nil {
				t.Fatalf("first write: %v", err)
			}
			got, err := os.ReadFile(filepath.Join(repo, tc.file))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(got, first) {
				t.Fatalf("content = %q, want %q", got, first)
			}

			// Same bytes again: nothing to commit.
			if err := dest.Write(ctx, first); err != nil {
				t.Fatalf("repeat write: %v", err)
			}
			if n := commitCount(t, origin, "main"); n != 2 {
				t.Fatalf("origin has %d commits after repeat, want 2", n)
			}

			second := []byte(`{"version":"1","type":"header","node_count":1}` + "\n")
			if err := dest.Write(ctx, second); err != nil {
				t.Fatalf("second write: %v", err)
			}
			if n := commitCount(t, origin, "main"); n != 3 {
				t.Fatalf("origin has %d commits, want 3", n)
			}
			if subject := gitIn(t, repo, "log", "-1", "--format=%s"); subject != DefaultCommitMessage {
				t.Errorf("commit subject = %q, want %q", subject, DefaultCommitMessage)
			}
		})
	}
}

func TestGitDestination_SchedulerExport(t *testing.T) {
	repo, origin := newClone(t)
	dest := NewGitDestination(repo, "graph.jsonl", "main")
	dest.Message = "backup: nightly graph"

	src := &fakeSource{snap: testSnapshot()}
	s := NewScheduler(src, []Destination{dest}, 0, quietLogger())
	ctx := context.Background()
	if err := s.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if err := s.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow (unchanged): %v", err)
	}
	if n := commitCount(t, origin, "main"); n != 2 {
		t.Fatalf("origin has %d commits, want 2", n)
	}
	if subject := gitIn(t, repo, "log", "-1", "--format=%s"); subject != "backup: nightly graph" {
		t.Errorf("commit subject = %q", subject)
	}

	f, err := os.Open(filepath.Join(repo, "graph.jsonl"))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	hdr, snap, err := ReadJSONL(f)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if hdr.NodeCount != 2 || len(snap.Nodes) != 2 || snap.CurrentSessionID != "s-1" {
		t.Errorf("committed export: header %+v, %d nodes", hdr, len(snap.Nodes))
	}
}

func TestGitDestination_Errors(t *testing.T) {
	repo, _ := newClone(t)

	dest := NewGitDestination(repo, "graph.jsonl", "no-such-branch")
	err := dest.Write(context.Background(), []byte("x\n"))
	if err == nil || !strings.Contains(err.Error(), "git checkout") {
		t.Fatalf("expected checkout error, got %v", err)
	}
	if s := dest.String(); !strings.HasSuffix(s, "@no-such-branch") || !strings.HasPrefix(s, "git:") {
		t.Fatalf("String() = %q", s)
	}

	notRepo := NewGitDestination(t.TempDir(), "graph.jsonl", "main")
	if err := notRepo.Write(context.Background(), []byte("x\n")); err == nil {
		t.Fatal("expected error outside a git repository")
	}
}
