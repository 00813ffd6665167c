package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a thought",
		Long:  "Fetches a single thought by ID, including its embedding status.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/thoughts/" + id)
	if err != nil {
		return fmt.Errorf("failed to get thought: %w", err)
	}

	var thought ThoughtResult
	if err := json.Unmarshal(resp.Data, &thought); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(thought, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("ID:      %s\n", thought.ID)
	fmt.Printf("Kind:    %s\n", thought.Kind)
	fmt.Printf("Team:    %s\n", thought.TeamID)
	fmt.Printf("Title:   %s\n", thought.Title)
	if thought.Description != "" {
		fmt.Printf("Notes:   %s\n", thought.Description)
	}
	if thought.ImageRef != "" {
		fmt.Printf("Image:   %s\n", thought.ImageRef)
	}
	fmt.Printf("Status:  %s\n", thought.EmbeddingStatus)
	if thought.AIDescription != "" {
		fmt.Printf("Vision:  %s\n", thought.AIDescription)
	}
	fmt.Printf("Created: %s\n", thought.CreatedAt)

	return nil
}
