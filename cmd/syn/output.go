package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/tabs"
	"github.com/alfredjeanlab/synapse/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// titleWidth leaves room for the ID and status columns.
func titleWidth() int {
	return max(ui.Width(120)-60, 20)
}

func printTabs(w io.Writer, list []*tabs.LiveTab) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no open tabs")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TAB\tNODE\tTITLE\tURL")
	for _, t := range list {
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n",
			ui.Marker(t.IsActive), t.ID, t.NodeID,
			ui.Truncate(t.Title, 40), ui.Truncate(t.URL, titleWidth()))
	}
	tw.Flush()
}

func printTab(w io.Writer, t *tabs.LiveTab) {
	if t == nil {
		fmt.Fprintln(w, "no tab")
		return
	}
	fmt.Fprintf(w, "Tab:      %s\n", t.ID)
	fmt.Fprintf(w, "Node:     %s\n", t.NodeID)
	fmt.Fprintf(w, "Title:    %s\n", t.Title)
	fmt.Fprintf(w, "URL:      %s\n", t.URL)
	fmt.Fprintf(w, "Active:   %v\n", t.IsActive)
	fmt.Fprintf(w, "History:  back=%v forward=%v\n", t.CanGoBack, t.CanGoForward)
}

func printNode(w io.Writer, n *model.Node) {
	fmt.Fprintf(w, "ID:          %s\n", n.ID)
	fmt.Fprintf(w, "Title:       %s\n", n.Title)
	fmt.Fprintf(w, "URL:         %s\n", n.URL)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(n.Status))
	fmt.Fprintf(w, "Session:     %s\n", n.SessionID)
	if n.ParentID != "" {
		fmt.Fprintf(w, "Parent:      %s\n", n.ParentID)
	}
	if n.TabID != "" {
		fmt.Fprintf(w, "Tab:         %s\n", n.TabID)
	}
	if n.Position != nil {
		pinned := ""
		if n.UserPositioned {
			pinned = " (pinned)"
		}
		fmt.Fprintf(w, "Position:    %.0f,%.0f%s\n", n.Position.X, n.Position.Y, pinned)
	}
	fmt.Fprintf(w, "Created At:  %s\n", n.CreatedAt.Local().Format(timeLayout))
	if n.ClosedAt != nil {
		fmt.Fprintf(w, "Closed At:   %s\n", n.ClosedAt.Local().Format(timeLayout))
	}
}

// printGraphTree renders nodes as an indented forest following parent links.
// Edges that do not follow a parent link are listed after the forest.
func printGraphTree(w io.Writer, g *model.GraphData) {
	if g == nil || len(g.Nodes) == 0 {
		fmt.Fprintln(w, "empty graph")
		return
	}
	byID := make(map[string]*model.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	children := make(map[string][]*model.Node)
	var roots []*model.Node
	for _, n := range g.Nodes {
		if _, ok := byID[n.ParentID]; ok && n.ParentID != n.ID {
			children[n.ParentID] = append(children[n.ParentID], n)
		} else {
			roots = append(roots, n)
		}
	}
	byCreated := func(ns []*model.Node) {
		sort.Slice(ns, func(i, j int) bool { return ns[i].CreatedAt.Before(ns[j].CreatedAt) })
	}
	byCreated(roots)

	seen := make(map[string]bool)
	var walk func(n *model.Node, depth int)
	walk = func(n *model.Node, depth int) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		label := n.Title
		if label == "" {
			label = n.URL
		}
		fmt.Fprintf(w, "%s%s %s [%s]\n", strings.Repeat("  ", depth), ui.RenderMuted(n.ID), ui.Truncate(label, titleWidth()), ui.RenderStatus(n.Status))
		kids := children[n.ID]
		byCreated(kids)
		for _, c := range kids {
			walk(c, depth+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}

	var extra []*model.Edge
	for _, e := range g.Edges {
		if t, ok := byID[e.Target]; !ok || t.ParentID != e.Source {
			extra = append(extra, e)
		}
	}
	if len(extra) > 0 {
		fmt.Fprintln(w)
		for _, e := range extra {
			fmt.Fprintf(w, "%s -> %s (%s)\n", e.Source, e.Target, e.Type)
		}
	}
	fmt.Fprintf(w, "\n%d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
}

func printTimeline(w io.Writer, tl *model.Timeline) {
	if tl == nil || len(tl.Events) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tSUBJECT")
	for _, ev := range tl.Events {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ev.Timestamp.Local().Format(timeLayout), ev.Type, timelineSubject(ev.Payload))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events over %s\n", len(tl.Events), tl.EndTime.Sub(tl.StartTime).Round(time.Second))
}

// timelineSubject summarizes a decoded node or edge payload.
func timelineSubject(payload any) string {
	m, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	if url, ok := m["url"].(string); ok {
		return ui.Truncate(url, titleWidth())
	}
	src, _ := m["source"].(string)
	dst, _ := m["target"].(string)
	if src != "" || dst != "" {
		return src + " -> " + dst
	}
	return ""
}

func printSessions(w io.Writer, list []*model.Session) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tNAME\tNODES\tEDGES\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s %s\t%s\t%d\t%d\t%s\n",
			ui.Marker(s.IsActive), s.ID, s.Name, s.NodeCount, s.EdgeCount, s.UpdatedAt.Local().Format(timeLayout))
	}
	tw.Flush()
}

func printTrees(w io.Writer, list []*model.TreeSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no saved trees")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tNODES\tEDGES\tCREATED")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", t.ID, t.Name, t.NodeCount, t.EdgeCount, t.CreatedAt.Local().Format(timeLayout))
	}
	tw.Flush()
}

func printWindows(w io.Writer, list []presence.Entry) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no attached windows")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WINDOW\tSESSION\tIDLE\tHEARTBEATS")
	for _, e := range list {
		idle := time.Duration(e.IdleSecs * float64(time.Second)).Round(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", e.WindowID, e.SessionID, idle, e.Heartbeats)
	}
	tw.Flush()
}
