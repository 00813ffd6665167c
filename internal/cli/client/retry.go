package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// RetryCmd creates the retry command.
func RetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-queue a failed thought",
		Long:  "Resets a thought's embedding status to pending so the background worker picks it up again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRetry(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runRetry(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/thoughts/"+id+"/retry", nil)
	if err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}

	if outputJSON {
		fmt.Println(string(resp.Data))
		return nil
	}

	var result map[string]string
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("Thought %s re-queued (%s)\n", result["id"], result["embedding_status"])
	return nil
}
