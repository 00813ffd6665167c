package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer emits the streaming answer wire format: one `data: <json>\n\n`
// frame per delta, closed by `data: [DONE]\n\n`. Frames are flushed
// immediately so clients render tokens as they arrive.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w implements http.Flusher each frame is flushed
// after writing.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// PrepareResponse sets the SSE headers on an HTTP response.
func PrepareResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteDelta emits one incremental text fragment as a chunk frame.
func (sw *Writer) WriteDelta(text string) error {
	chunk := Chunk{
		Object: "chat.completion.chunk",
		Choices: []ChunkChoice{
			{Index: 0, Delta: ChunkDelta{Content: text}},
		},
	}
	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk: %w", err)
	}
	return sw.writeFrame(string(payload))
}

// WriteDone emits the terminal sentinel frame.
func (sw *Writer) WriteDone() error {
	return sw.writeFrame(doneSentinel)
}

// WriteError emits an in-band error event. Streaming failures arrive after
// the 200 status line is committed, so this frame is the only error channel
// left.
func (sw *Writer) WriteError(message string) error {
	if _, err := fmt.Fprintf(sw.w, "event: error\n%s%s%s", dataPrefix, message, frameDelimiter); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

func (sw *Writer) writeFrame(payload string) error {
	if _, err := fmt.Fprintf(sw.w, "%s%s%s", dataPrefix, payload, frameDelimiter); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}
