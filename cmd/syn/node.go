package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:     "node",
	Short:   "Inspect and act on graph nodes",
	GroupID: "browse",
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <node-id>",
	Short: "Show a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := graphClient.GetNode(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), n)
		}
		printNode(cmd.OutOrStdout(), n)
		return nil
	},
}

var nodeReopenCmd = &cobra.Command{
	Use:   "reopen <node-id>",
	Short: "Open a tab for a node, or focus the one already open",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := graphClient.ReopenNode(context.Background(), args[0])
		return showTab(cmd, tab, err)
	},
}

var nodeFocusCmd = &cobra.Command{
	Use:   "focus <node-id>",
	Short: "Focus a node's tab, reopening it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := graphClient.FocusNode(context.Background(), args[0])
		return showTab(cmd, tab, err)
	},
}

var nodeDeleteCmd = &cobra.Command{
	Use:   "delete <node-id>...",
	Short: "Delete nodes and their edges",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := graphClient.DeleteNode(context.Background(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

var nodeMoveCmd = &cobra.Command{
	Use:   "move <node-id> <x> <y>",
	Short: "Set a node's layout position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid x: %w", err)
		}
		y, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid y: %w", err)
		}
		pin, _ := cmd.Flags().GetBool("pin")
		return graphClient.UpdateNodePosition(context.Background(), args[0], model.Position{X: x, Y: y}, pin)
	},
}

var nodeExtractCmd = &cobra.Command{
	Use:   "extract <node-id>",
	Short: "Extract readable content from a node's open tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := graphClient.ExtractContent(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Title:   %s\n", c.Title)
		if c.Byline != "" {
			fmt.Fprintf(w, "Byline:  %s\n", c.Byline)
		}
		fmt.Fprintf(w, "Type:    %s\n", c.Type)
		fmt.Fprintf(w, "Words:   %d\n", c.WordCount)
		if c.Excerpt != "" {
			fmt.Fprintf(w, "\n%s\n", c.Excerpt)
		}
		return nil
	},
}

func init() {
	nodeMoveCmd.Flags().Bool("pin", true, "mark the position as user-chosen")

	nodeCmd.AddCommand(nodeShowCmd)
	nodeCmd.AddCommand(nodeReopenCmd)
	nodeCmd.AddCommand(nodeFocusCmd)
	nodeCmd.AddCommand(nodeDeleteCmd)
	nodeCmd.AddCommand(nodeMoveCmd)
	nodeCmd.AddCommand(nodeExtractCmd)
}
