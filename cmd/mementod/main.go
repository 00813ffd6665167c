package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mementod",
		Short: "Memento daemon and admin CLI",
		Long:  "Memento daemon for running the API server, the ingest worker, and managing access tokens",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.TokenCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
