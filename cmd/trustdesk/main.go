package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/trustdesk/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "trustdesk",
	Short: "Answer security and compliance questionnaires from the knowledge workspace",
	Long: `trustdesk answers security questionnaire questions with an LLM that searches
curated answers, the exported knowledge workspace, the live workspace API and
the public documentation, citing its sources.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	// answers go to stdout so `ask --json` can be piped
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
