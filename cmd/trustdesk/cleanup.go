package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	batchuc "github.com/kailas-cloud/trustdesk/internal/usecase/batch"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired batch jobs and fail abandoned ones, then exit",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	janitor := batchuc.NewJanitor(a.jobs, a.cfg.Jobs.Retention(), a.cfg.Jobs.StaleAfter(), a.logger)
	rep, err := janitor.Run(ctx)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	cmd.Printf("Deleted %d expired job(s), marked %d abandoned.\n", rep.Deleted, rep.Abandoned)
	return nil
}
