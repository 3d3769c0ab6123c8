package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:     "graph",
	Short:   "Show a session's browsing graph",
	GroupID: "graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		g, err := graphClient.GraphData(context.Background(), session)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), g)
		}
		printGraphTree(cmd.OutOrStdout(), g)
		return nil
	},
}

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Short:   "Show a session's events in time order",
	GroupID: "graph",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		tl, err := graphClient.Timeline(context.Background(), session)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), tl)
		}
		printTimeline(cmd.OutOrStdout(), tl)
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:     "tree",
	Short:   "Manage saved subtrees",
	GroupID: "graph",
}

var treeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved trees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		list, err := graphClient.SavedTrees(context.Background(), session)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printTrees(cmd.OutOrStdout(), list)
		return nil
	},
}

var treeSaveCmd = &cobra.Command{
	Use:   "save <name> <node-id>...",
	Short: "Save nodes and the edges between them",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := graphClient.SaveTree(context.Background(), args[0], args[1:])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d nodes, %d edges)\n", t.ID, len(t.Nodes), len(t.Edges))
		return nil
	},
}

var treeShowCmd = &cobra.Command{
	Use:   "show <tree-id>",
	Short: "Show a saved tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := graphClient.LoadTree(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n\n", t.ID, t.Name)
		printGraphTree(cmd.OutOrStdout(), &model.GraphData{Nodes: t.Nodes, Edges: t.Edges})
		return nil
	},
}

var treeDeleteCmd = &cobra.Command{
	Use:   "delete <tree-id>",
	Short: "Delete a saved tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := graphClient.DeleteTree(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	graphCmd.Flags().String("session", "", "session id (default: current)")
	timelineCmd.Flags().String("session", "", "session id (default: current)")
	treeListCmd.Flags().String("session", "", "only trees saved from this session")

	treeCmd.AddCommand(treeListCmd)
	treeCmd.AddCommand(treeSaveCmd)
	treeCmd.AddCommand(treeShowCmd)
	treeCmd.AddCommand(treeDeleteCmd)
}
