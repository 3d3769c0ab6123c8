package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/alfredjeanlab/synapse/internal/ui"
	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named engine remotes",
	GroupID: "system",
	// Remotes are a local file; no engine connection.
	PersistentPreRunE: skipConnect,
}

// editRemotes loads the remote book, applies fn and saves the result.
func editRemotes(fn func(*remoteBook) error) error {
	b, err := openRemoteBook()
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return b.save()
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <http-url>",
	Short: "Add or update a named remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		natsURL, _ := cmd.Flags().GetString("nats")
		use, _ := cmd.Flags().GetBool("use")

		r := Remote{URL: args[1], GRPC: grpcAddr, NATSURL: natsURL}
		if err := r.validate(); err != nil {
			return err
		}
		err := editRemotes(func(b *remoteBook) error {
			b.Remotes[name] = r
			if use {
				b.Active = name
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %s saved (%s)\n", ui.RenderAccent(name), r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a named remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := editRemotes(func(b *remoteBook) error {
			if _, _, err := b.get(name); err != nil {
				return err
			}
			delete(b.Remotes, name)
			if b.Active == name {
				b.Active = ""
			}
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %s removed\n", name)
		return nil
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := editRemotes(func(b *remoteBook) error {
			if _, _, err := b.get(name); err != nil {
				return err
			}
			b.Active = name
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "now using remote %s\n", ui.RenderAccent(name))
		return nil
	},
}

type remoteView struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Remote
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openRemoteBook()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		views := make([]remoteView, 0, len(b.Remotes))
		for _, name := range b.names() {
			views = append(views, remoteView{Name: name, Active: name == b.Active, Remote: b.Remotes[name]})
		}
		if jsonOutput {
			return printJSON(out, views)
		}
		if len(views) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("no remotes configured"))
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tGRPC\tNATS")
		for _, v := range views {
			fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", ui.Marker(v.Active), v.Name, v.URL, v.GRPC, v.NATSURL)
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show a remote (the active one by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openRemoteBook()
		if err != nil {
			return err
		}
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		name, r, err := b.get(name)
		if err != nil {
			return err
		}
		v := remoteView{Name: name, Active: name == b.Active, Remote: r}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), v)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		label := name
		if v.Active {
			label += " " + ui.RenderMuted("(active)")
		}
		fmt.Fprintf(w, "name:\t%s\n", label)
		fmt.Fprintf(w, "url:\t%s\n", r.URL)
		for _, kv := range [][2]string{{"grpc", r.GRPC}, {"nats_url", r.NATSURL}} {
			if kv[1] != "" {
				fmt.Fprintf(w, "%s:\t%s\n", kv[0], kv[1])
			}
		}
		return w.Flush()
	},
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address for --transport grpc")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for syn watch")
	remoteAddCmd.Flags().Bool("use", false, "make this the active remote")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd)
}
