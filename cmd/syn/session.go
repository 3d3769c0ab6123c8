package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Short:   "Manage browsing sessions",
	GroupID: "graph",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := graphClient.Sessions(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printSessions(cmd.OutOrStdout(), list)
		return nil
	},
}

var sessionCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := graphClient.CurrentSession(context.Background())
		return showSession(cmd, s, err)
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [<name>]",
	Short: "Create a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		s, err := graphClient.CreateSession(context.Background(), name)
		if err != nil {
			return err
		}
		if sw, _ := cmd.Flags().GetBool("switch"); sw {
			s, err = graphClient.SwitchSession(context.Background(), s.ID)
		}
		return showSession(cmd, s, err)
	},
}

var sessionSwitchCmd = &cobra.Command{
	Use:   "switch <session-id>",
	Short: "Switch sessions; open tabs are closed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := graphClient.SwitchSession(context.Background(), args[0])
		return showSession(cmd, s, err)
	},
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <name>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := graphClient.RenameSession(context.Background(), args[0], args[1])
		return showSession(cmd, s, err)
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session with its nodes and edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := graphClient.DeleteSession(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func showSession(cmd *cobra.Command, s *model.Session, err error) error {
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), s)
	}
	printSessions(cmd.OutOrStdout(), []*model.Session{s})
	return nil
}

func init() {
	sessionNewCmd.Flags().Bool("switch", false, "make the new session current (closes open tabs)")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionCurrentCmd)
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionSwitchCmd)
	sessionCmd.AddCommand(sessionRenameCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
}
