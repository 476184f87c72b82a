// Package cli wires the relay's commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chat-relay",
		Short: "Relay chat channels to an OpenAI-compatible completion API",
		Long: `chat-relay answers chat messages with an LLM while keeping a rolling,
token-budgeted conversation history per channel in memory.

Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewBudgetCmd())

	return rootCmd
}
