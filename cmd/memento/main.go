package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "memento",
		Short: "Memento CLI - capture and recall visual knowledge",
		Long: `Memento CLI captures image-backed thoughts and answers questions
grounded in what your teams have already recorded.

Environment variables:
  MEMENTO_API_KEY   Access token for authentication (required)
  MEMENTO_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "Access token (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")

	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.RetryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
