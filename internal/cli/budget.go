package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"chat-relay/internal/config"
	"chat-relay/internal/service"
	"chat-relay/internal/tokenizer"

	"github.com/spf13/cobra"
)

// NewBudgetCmd creates the budget command
func NewBudgetCmd() *cobra.Command {
	var channels []string

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show the conversation token budget per channel",
		Long: `Count the system prompt tokens of every configured channel and print how much
of the context window is left for conversation history.

Channels without a configuration entry use only the core prompts and are shown as (default).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			counter, err := tokenizer.NewTiktoken(cfg.TokenEncoding)
			if err != nil {
				return err
			}

			return printBudgets(cmd.OutOrStdout(), cfg.Prompts, counter, cfg.ContextLimit, channels)
		},
	}

	cmd.Flags().StringSliceVarP(&channels, "channel", "c", nil, "Additional channel names to report")

	return cmd
}

// ------------------------------------------------------------------------------------------------------
func printBudgets(w io.Writer, prompts service.Prompts, counter tokenizer.Counter, contextLimit int, extra []string) error {
	names := []string{""}
	for _, ch := range prompts.Channels {
		names = append(names, ch.Name)
	}
	names = append(names, extra...)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tSYSTEM TOKENS\tHISTORY BUDGET\tCHATTY")

	for _, name := range names {
		systemTokens, err := prompts.SystemTokens(counter, name)
		if err != nil {
			return err
		}

		label := name
		if label == "" {
			label = "(default)"
		}
		ch, _ := prompts.Channel(name)

		budget := fmt.Sprint(contextLimit - systemTokens)
		if systemTokens > contextLimit {
			budget = "invalid"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%t\n", label, systemTokens, budget, ch.Chatty)
	}

	return tw.Flush()
}
