package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AddRequest represents the thought creation API request.
type AddRequest struct {
	Kind        string `json:"kind"`
	TeamID      string `json:"team_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageRef    string `json:"image_ref,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

// ThoughtResult represents a thought in API responses.
type ThoughtResult struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	TeamID          string `json:"team_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	ImageRef        string `json:"image_ref,omitempty"`
	AIDescription   string `json:"ai_description,omitempty"`
	EmbeddingStatus string `json:"embedding_status"`
	CreatedAt       string `json:"created_at"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var (
		kind        string
		teamID      string
		description string
		imageRef    string
		parentID    string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Capture a new thought",
		Long:  "Captures a thought for background embedding. The response returns immediately with pending status.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAdd(cmd, AddRequest{
				Kind:        kind,
				TeamID:      teamID,
				Title:       args[0],
				Description: description,
				ImageRef:    imageRef,
				ParentID:    parentID,
			}, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "document", "Thought kind (question, answer, or document)")
	cmd.Flags().StringVarP(&teamID, "team", "t", "", "Team the thought belongs to (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Free-form description")
	cmd.Flags().StringVarP(&imageRef, "image", "i", "", "Image reference (URL or storage key)")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent thought ID (answers reference their question)")
	cmd.MarkFlagRequired("team")

	return cmd
}

func runAdd(cmd *cobra.Command, req AddRequest, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/thoughts", req)
	if err != nil {
		return fmt.Errorf("failed to create thought: %w", err)
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

	fmt.Printf("Created thought %s (%s)\n", thought.ID, thought.EmbeddingStatus)
	return nil
}
