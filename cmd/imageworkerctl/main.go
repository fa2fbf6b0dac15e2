// imageworkerctl — инструмент командной строки для инспекции и
// повторной отправки dead-lettered задач из journal.
//
// Использование:
//
//	imageworkerctl [--db-url URL] [--json] journal <subcommand> [flags]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ramirezdev26/swifty-ai-digester/internal/cliutil"
	"github.com/ramirezdev26/swifty-ai-digester/internal/journal"
	"github.com/ramirezdev26/swifty-ai-digester/internal/journalcli"
)

var version = "dev"

func main() {
	var dbURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "imageworkerctl",
		Short:         "imageworkerctl — operate the image transformation worker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "journal database URL (defaults to DB_URL env)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	journalFn := func() (*journal.Journal, func(), error) {
		if dbURL != "" {
			os.Setenv("DB_URL", dbURL)
		}
		pool, err := journal.NewPool(context.Background())
		if err != nil {
			return nil, nil, fmt.Errorf("connect to journal database: %w", err)
		}
		return journal.New(pool), pool.Close, nil
	}
	outputFn := func() *cliutil.Output { return cliutil.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		journalcli.NewCmd(journalFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
