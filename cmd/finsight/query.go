package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/finsight/internal/app"
	"github.com/ternarybob/finsight/internal/services/conversation"
)

var queryCmd = &cobra.Command{
	Use:   "query [stock name or symbol]",
	Short: "Analyze one stock and print the replies",
	Long: `Runs a single conversation turn: resolves the query, scrapes Screener.in and
generates AI insights. Progress notices go to stderr, replies to stdout.`,
	Example: `  finsight query tcs
  finsight query "hdfc bank" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var queryJSON bool

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the whole turn as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	var replier conversation.Replier
	if !queryJSON {
		replier = conversation.ReplierFunc(func(ctx context.Context, reply conversation.Reply) error {
			if reply.Kind == conversation.ReplyStatus {
				_, err := fmt.Fprintln(errOut, reply.Text)
				return err
			}
			_, err := fmt.Fprintf(out, "%s\n\n", reply.Text)
			return err
		})
	}

	turn, err := application.Conversation.HandleMessage(ctx, query, replier)
	if err != nil {
		return err
	}

	if queryJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(turn)
	}

	return nil
}
