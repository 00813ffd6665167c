package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query string `json:"query"`
}

// SearchMatch represents one semantic search match.
type SearchMatch struct {
	ThoughtID     string  `json:"thought_id"`
	Kind          string  `json:"kind"`
	TeamID        string  `json:"team_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description,omitempty"`
	AIDescription string  `json:"ai_description,omitempty"`
	Similarity    float32 `json:"similarity"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Matches []SearchMatch `json:"matches"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search thoughts",
		Long:  "Searches embedded thoughts across your teams using semantic similarity.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runSearch(cmd *cobra.Command, query string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/search", SearchRequest{Query: query})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var result SearchResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(result.Matches) == 0 {
		fmt.Println("No matches found.")
		return nil
	}

	for _, m := range result.Matches {
		fmt.Printf("%.2f  %s  %s\n", m.Similarity, m.ThoughtID, m.Title)
		if m.AIDescription != "" {
			fmt.Printf("      %s\n", strings.TrimSpace(m.AIDescription))
		}
	}

	return nil
}
