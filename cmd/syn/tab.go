package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/synapse/internal/tabs"
	"github.com/spf13/cobra"
)

var tabCmd = &cobra.Command{
	Use:     "tab",
	Short:   "Open, switch and drive live tabs",
	GroupID: "browse",
}

var tabListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open tabs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := graphClient.Tabs(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printTabs(cmd.OutOrStdout(), list)
		return nil
	},
}

var tabActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the foreground tab",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := graphClient.ActiveTab(context.Background())
		return showTab(cmd, tab, err)
	},
}

var tabOpenCmd = &cobra.Command{
	Use:   "open [<url>]",
	Short: "Open a tab (blank when no URL is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := ""
		if len(args) == 1 {
			url = args[0]
		}
		node, _ := cmd.Flags().GetString("node")
		tab, err := graphClient.CreateTab(context.Background(), url, node)
		return showTab(cmd, tab, err)
	},
}

var tabSwitchCmd = &cobra.Command{
	Use:   "switch <tab-id>",
	Short: "Bring a tab to the foreground",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, err := graphClient.SwitchTab(context.Background(), args[0])
		if err == nil && tab == nil {
			return fmt.Errorf("tab %s is not open", args[0])
		}
		return showTab(cmd, tab, err)
	},
}

var tabCloseCmd = &cobra.Command{
	Use:   "close <tab-id>...",
	Short: "Close tabs; their nodes stay in the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			closed, err := graphClient.CloseTab(context.Background(), id)
			if err != nil {
				return err
			}
			if closed {
				fmt.Fprintf(cmd.OutOrStdout(), "closed %s\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not open\n", id)
			}
		}
		return nil
	},
}

var tabGoCmd = &cobra.Command{
	Use:   "go <tab-id> <url>",
	Short: "Navigate a tab",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return graphClient.NavigateTab(context.Background(), args[0], args[1])
	},
}

// historyCmd builds back/forward/reload, which share one shape.
func historyCmd(use, short string, action func(context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tab-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return action(context.Background(), args[0])
		},
	}
}

func showTab(cmd *cobra.Command, tab *tabs.LiveTab, err error) error {
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), tab)
	}
	printTab(cmd.OutOrStdout(), tab)
	return nil
}

func init() {
	tabOpenCmd.Flags().String("node", "", "reuse an existing closed node instead of creating one")

	tabCmd.AddCommand(tabListCmd)
	tabCmd.AddCommand(tabActiveCmd)
	tabCmd.AddCommand(tabOpenCmd)
	tabCmd.AddCommand(tabSwitchCmd)
	tabCmd.AddCommand(tabCloseCmd)
	tabCmd.AddCommand(tabGoCmd)
	// Bound lazily: graphClient is nil until PersistentPreRunE.
	tabCmd.AddCommand(historyCmd("back", "Go back in a tab's history", func(ctx context.Context, id string) error {
		return graphClient.GoBack(ctx, id)
	}))
	tabCmd.AddCommand(historyCmd("forward", "Go forward in a tab's history", func(ctx context.Context, id string) error {
		return graphClient.GoForward(ctx, id)
	}))
	tabCmd.AddCommand(historyCmd("reload", "Reload a tab", func(ctx context.Context, id string) error {
		return graphClient.Reload(ctx, id)
	}))
}
