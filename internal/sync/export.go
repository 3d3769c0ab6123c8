package sync

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// FormatVersion is written in every export header.
const FormatVersion = "1"

// Record types in the JSONL stream.
const (
	TypeHeader  = "header"
	TypeSession = "session"
	TypeNode    = "node"
	TypeEdge    = "edge"
	TypeTree    = "tree"
)

// Header is the first JSONL record written by ExportJSONL.
type Header struct {
	Version          string    `json:"version"`
	Type             string    `json:"type"`
	Timestamp        time.Time `json:"timestamp"`
	CurrentSessionID string    `json:"current_session_id,omitempty"`
	SessionCount     int       `json:"session_count"`
	NodeCount        int       `json:"node_count"`
	EdgeCount        int       `json:"edge_count"`
	TreeCount        int       `json:"tree_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the whole graph from src as JSONL to w: a header, then
// sessions, nodes, edges and saved trees, each sorted by ID.
func ExportJSONL(ctx context.Context, src SnapshotSource, w io.Writer) error {
	_, err := exportHashed(ctx, src, w)
	return err
}

// exportHashed exports and returns a digest of the records without the
// header, so unchanged graphs hash the same across runs.
func exportHashed(ctx context.Context, src SnapshotSource, w io.Writer) (string, error) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	if snap == nil {
		snap = &model.Snapshot{}
	}

	sessions := sortedByID(snap.Sessions, func(s *model.Session) string { return s.ID })
	nodes := sortedByID(snap.Nodes, func(n *model.Node) string { return n.ID })
	edges := sortedByID(snap.Edges, func(e *model.Edge) string { return e.ID })
	trees := sortedByID(snap.SavedTrees, func(t *model.SavedTree) string { return t.ID })

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:          FormatVersion,
		Type:             TypeHeader,
		Timestamp:        time.Now().UTC(),
		CurrentSessionID: snap.CurrentSessionID,
		SessionCount:     len(sessions),
		NodeCount:        len(nodes),
		EdgeCount:        len(edges),
		TreeCount:        len(trees),
	}); err != nil {
		return "", fmt.Errorf("encode header: %w", err)
	}

	h := sha256.New()
	body := json.NewEncoder(io.MultiWriter(w, h))
	body.SetEscapeHTML(false)
	fmt.Fprintf(h, "current=%s\n", snap.CurrentSessionID)

	for _, s := range sessions {
		if err := body.Encode(record{Type: TypeSession, Data: s}); err != nil {
			return "", fmt.Errorf("encode session %s: %w", s.ID, err)
		}
	}
	for _, n := range nodes {
		if err := body.Encode(record{Type: TypeNode, Data: n}); err != nil {
			return "", fmt.Errorf("encode node %s: %w", n.ID, err)
		}
	}
	for _, e := range edges {
		if err := body.Encode(record{Type: TypeEdge, Data: e}); err != nil {
			return "", fmt.Errorf("encode edge %s: %w", e.ID, err)
		}
	}
	for _, t := range trees {
		if err := body.Encode(record{Type: TypeTree, Data: t}); err != nil {
			return "", fmt.Errorf("encode tree %s: %w", t.ID, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadJSONL parses an export written by ExportJSONL back into a snapshot.
func ReadJSONL(r io.Reader) (*Header, *model.Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var hdr *Header
	snap := &model.Snapshot{}
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		if hdr == nil {
			if rec.Type != TypeHeader {
				return nil, nil, fmt.Errorf("line %d: expected header, got %q", line, rec.Type)
			}
			hdr = &Header{}
			if err := json.Unmarshal(raw, hdr); err != nil {
				return nil, nil, fmt.Errorf("line %d: header: %w", line, err)
			}
			if hdr.Version != FormatVersion {
				return nil, nil, fmt.Errorf("unsupported export version %q", hdr.Version)
			}
			snap.CurrentSessionID = hdr.CurrentSessionID
			continue
		}
		var err error
		switch rec.Type {
		case TypeSession:
			snap.Sessions, err = appendDecoded(snap.Sessions, rec.Data)
		case TypeNode:
			snap.Nodes, err = appendDecoded(snap.Nodes, rec.Data)
		case TypeEdge:
			snap.Edges, err = appendDecoded(snap.Edges, rec.Data)
		case TypeTree:
			snap.SavedTrees, err = appendDecoded(snap.SavedTrees, rec.Data)
		default:
			err = fmt.Errorf("unknown record type %q", rec.Type)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if hdr == nil {
		return nil, nil, fmt.Errorf("empty export")
	}
	return hdr, snap, nil
}

func appendDecoded[T any](dst []*T, data json.RawMessage) ([]*T, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return dst, err
	}
	return append(dst, v), nil
}

func sortedByID[T any](in []*T, id func(*T) string) []*T {
	out := make([]*T, 0, len(in))
	for _, v := range in {
		if v != nil {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
