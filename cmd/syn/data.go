package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
	synsync "github.com/alfredjeanlab/synapse/internal/sync"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export [<session-id>]",
	Short:   "Export a session as a portable JSON document",
	GroupID: "data",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		x, err := graphClient.ExportSession(context.Background(), id)
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")
		return withOutput(cmd, out, func(w io.Writer) error { return printJSON(w, x) })
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	Short:   "Import an exported session as a new session (\"-\" reads stdin)",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := readExport(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		s, err := graphClient.ImportSession(context.Background(), x)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), s)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s (%d nodes, %d edges)\n", s.Name, s.ID, s.NodeCount, s.EdgeCount)
		return nil
	},
}

func readExport(stdin io.Reader, path string) (*model.Export, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var x model.Export
	if err := json.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &x, nil
}

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Write the whole graph as JSONL",
	GroupID: "data",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		return withOutput(cmd, out, func(w io.Writer) error {
			return synsync.ExportJSONL(context.Background(), graphClient, w)
		})
	},
}

var backupInspectCmd = &cobra.Command{
	Use:               "inspect <file>",
	Short:             "Summarize a JSONL backup",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: skipConnect,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		hdr, snap, err := synsync.ReadJSONL(f)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), hdr)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Written:   %s\n", hdr.Timestamp.Local().Format(timeLayout))
		fmt.Fprintf(w, "Current:   %s\n", snap.CurrentSessionID)
		fmt.Fprintf(w, "Sessions:  %d\n", len(snap.Sessions))
		fmt.Fprintf(w, "Nodes:     %d\n", len(snap.Nodes))
		fmt.Fprintf(w, "Edges:     %d\n", len(snap.Edges))
		fmt.Fprintf(w, "Trees:     %d\n", len(snap.SavedTrees))
		if len(snap.Nodes) != hdr.NodeCount || len(snap.Edges) != hdr.EdgeCount {
			return fmt.Errorf("backup is truncated: header lists %d nodes and %d edges", hdr.NodeCount, hdr.EdgeCount)
		}
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	Short:   "Delete closed nodes older than a cutoff",
	GroupID: "data",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		n, err := graphClient.Cleanup(context.Background(), olderThan)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d nodes\n", n)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Delete every session, node, edge and saved tree",
	GroupID: "data",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear all data without --yes")
		}
		if err := graphClient.ClearAllData(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "all data cleared")
		return nil
	},
}

// withOutput runs write against the named file, or stdout when path is
// empty or "-".
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	backupCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	cleanupCmd.Flags().Duration("older-than", 30*24*time.Hour, "age cutoff for closed nodes")
	clearCmd.Flags().Bool("yes", false, "confirm deleting everything")

	backupCmd.AddCommand(backupInspectCmd)
}
