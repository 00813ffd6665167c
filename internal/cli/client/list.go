package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// ListResponse represents one page of thoughts.
type ListResponse struct {
	Items   []ThoughtResult `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List thoughts",
		Long:  "Lists thoughts across your teams, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(cmd, limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of thoughts per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runList(cmd *cobra.Command, limit int, cursor string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/thoughts?limit=%d", limit)
	if cursor != "" {
		path += "&cursor=" + url.QueryEscape(cursor)
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to list thoughts: %w", err)
	}

	var page ListResponse
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Println("No thoughts found.")
		return nil
	}

	for _, t := range page.Items {
		fmt.Printf("%s  %-9s %-10s  %s\n", t.ID, t.Kind, t.EmbeddingStatus, t.Title)
	}
	if page.HasMore {
		fmt.Printf("\nMore available. Next page: --cursor %s\n", page.Cursor)
	}

	return nil
}
