package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// main is the application composition root. It wires the SQLite adapters,
// the skim matrix and the coefficient files behind ports and runs a pass.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "daysim",
		Short: "Activity-based travel demand microsimulation",
		Long: `daysim resolves the daily travel choices of a synthetic population.

simulate draws outcomes for every household and iterates destination
shadow prices; estimate replays observed choices and writes one
estimation row per decision.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML run configuration (defaults apply when empty)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("workers", 0, "Override the number of worker goroutines")
	rootCmd.PersistentFlags().String("database-url", "", "Postgres URL for the shared skim cache and estimation rows")

	rootCmd.AddCommand(
		newSimulateCmd(),
		newEstimateCmd(),
	)
	return rootCmd
}
