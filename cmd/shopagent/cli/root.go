// Package cli wires configuration, storage, providers and the HTTP API into
// the shopagent binary. All dependencies are constructed here and injected;
// nothing is initialized from package-level state.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:   "shopagent",
	Short: "Conversational store agent",
	Long: `shopagent runs the autonomous shop assistant: an HTTP chat API backed by
interchangeable model providers with tool calling, durable conversation
history and automatic provider failover.`,
}

// Execute runs the CLI.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	RootCmd.AddCommand(serveCmd)
}
