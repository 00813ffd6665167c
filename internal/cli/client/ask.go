package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/sse"
)

// ChatRequest represents the chat API request.
type ChatRequest struct {
	Question string `json:"question"`
	Stream   bool   `json:"stream"`
}

// ChatResponse represents the blocking chat API response.
type ChatResponse struct {
	Answer string `json:"answer"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var noStream bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question",
		Long:  "Answers a question grounded in your teams' embedded thoughts. Streams tokens as they arrive unless --no-stream is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if noStream {
				outputJSON, _ := cmd.Flags().GetBool("output")
				return runAskBlocking(cmd, args[0], outputJSON)
			}
			return runAskStreaming(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full answer instead of streaming")

	return cmd
}

func runAskBlocking(cmd *cobra.Command, question string, outputJSON bool) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/chat", ChatRequest{Question: question})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}

	var result ChatResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		jsonBytes, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Println(result.Answer)
	return nil
}

func runAskStreaming(cmd *cobra.Command, question string) error {
	api, err := NewAPIClient(cmd)
	if err != nil {
		return err
	}

	body, err := api.Stream("/chat", ChatRequest{Question: question, Stream: true})
	if err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	defer body.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var streamErr error
	relay := sse.NewRelay(sse.Handlers{
		OnDelta: func(text string) {
			fmt.Print(text)
		},
		OnComplete: func() {
			fmt.Println()
		},
		OnError: func(err error) {
			streamErr = err
		},
	})

	relay.Run(ctx, body)

	if streamErr != nil {
		fmt.Fprintln(os.Stderr)
		return fmt.Errorf("stream failed: %w", streamErr)
	}
	return nil
}
