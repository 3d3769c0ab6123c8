package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"
)

// Remote is a named engine profile: where syn talks HTTP, gRPC and NATS.
type Remote struct {
	URL     string `toml:"url" json:"url"`
	GRPC    string `toml:"grpc,omitempty" json:"grpc,omitempty"`
	NATSURL string `toml:"nats_url,omitempty" json:"nats_url,omitempty"`
}

func (r Remote) validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote url %q must be an http(s) URL", r.URL)
	}
	if r.NATSURL != "" {
		if n, err := url.Parse(r.NATSURL); err != nil || n.Host == "" {
			return fmt.Errorf("nats url %q is not a URL", r.NATSURL)
		}
	}
	return nil
}

// remoteBook is the remotes.toml file: every saved remote plus the active
// one's name.
type remoteBook struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// remotesPath is $XDG_STATE_HOME/synapse/remotes.toml, falling back to
// ~/.local/state. The directory is created owner-only.
func remotesPath() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "synapse")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "remotes.toml"), nil
}

func openRemoteBook() (*remoteBook, error) {
	path, err := remotesPath()
	if err != nil {
		return nil, err
	}
	b := &remoteBook{}
	if _, err := toml.DecodeFile(path, b); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if b.Remotes == nil {
		b.Remotes = map[string]Remote{}
	}
	return b, nil
}

func (b *remoteBook) save() error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// get resolves name, or the active remote when name is empty.
func (b *remoteBook) get(name string) (string, Remote, error) {
	if name == "" {
		name = b.Active
	}
	if name == "" {
		return "", Remote{}, fmt.Errorf("no active remote; specify a name or run 'syn remote use <name>'")
	}
	r, ok := b.Remotes[name]
	if !ok {
		return "", Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return name, r, nil
}

func (b *remoteBook) names() []string {
	names := make([]string, 0, len(b.Remotes))
	for name := range b.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// The active remote is read once per process.
var activeRemote = sync.OnceValue(func() Remote {
	b, err := openRemoteBook()
	if err != nil || b.Active == "" {
		return Remote{}
	}
	return b.Remotes[b.Active]
})

func activeRemoteURL() string     { return activeRemote().URL }
func activeRemoteGRPC() string    { return activeRemote().GRPC }
func activeRemoteNATSURL() string { return activeRemote().NATSURL }
