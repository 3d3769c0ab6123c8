package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/synapse/internal/client"
	"github.com/alfredjeanlab/synapse/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool

	graphClient client.GraphClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("SYNAPSE_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:7420"
}

func defaultServer() string {
	if s := os.Getenv("SYNAPSE_SERVER"); s != "" {
		return s
	}
	if g := activeRemoteGRPC(); g != "" {
		return g
	}
	return "localhost:7421"
}

// skipConnect marks commands that never talk to the engine.
func skipConnect(cmd *cobra.Command, args []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:          "syn <command>",
	Short:        "CLI for the Synapse browsing graph engine",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		switch transport {
		case "http":
			graphClient = client.NewHTTPClient(httpURL)
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			graphClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if graphClient != nil {
			graphClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "browse", Title: "Browsing:"},
		&cobra.Group{ID: "graph", Title: "Graph:"},
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Browsing
	rootCmd.AddCommand(tabCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(windowsCmd)

	// Graph
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(sessionCmd)

	// Data
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(clearCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
