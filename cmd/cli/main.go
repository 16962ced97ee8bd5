package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// a missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "peakmotif",
		Short: "Covariate-adjusted motif enrichment for scored peaks",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newGenerateCmd(),
		newMigrateCmd(),
		newRunsCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
