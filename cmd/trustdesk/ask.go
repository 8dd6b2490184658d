package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	askContext string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question and print it with citations",
	Long: `Runs the answering loop for a single question and prints the answer,
the cited sources and every search performed on the way.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askContext, "context", "c", "", "extra context for the question")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ans, err := a.engine.Answer(ctx, args[0], askContext)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(ans, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(ans.Text)
	if len(ans.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, c := range ans.Citations {
			cmd.Printf("  - %s\n", c)
		}
	}
	if len(ans.Trace) > 0 {
		cmd.Println()
		cmd.Printf("Searches (%d provider turns):\n", ans.Turns)
		for i, call := range ans.Trace {
			argsJSON, _ := json.Marshal(call.Arguments)
			cmd.Printf("  [%d] %s %s\n", i+1, call.Tool, argsJSON)
		}
	}
	return nil
}
