// Package sse implements the streaming answer wire format: newline-delimited
// "data: " frames carrying OpenAI-style chat completion chunks, terminated by
// a [DONE] sentinel. The Relay decodes that byte stream into ordered text
// deltas; the Writer produces it.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
)

const (
	dataPrefix     = "data: "
	frameDelimiter = "\n\n"
	doneSentinel   = "[DONE]"
)

// Chunk mirrors the OpenAI chat-completion-chunk shape. Only the incremental
// text at choices[0].delta.content is consumed.
type Chunk struct {
	ID      string        `json:"id,omitempty"`
	Object  string        `json:"object,omitempty"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one choice entry in a Chunk.
type ChunkChoice struct {
	Index int        `json:"index"`
	Delta ChunkDelta `json:"delta"`
}

// ChunkDelta carries the incremental text of a choice.
type ChunkDelta struct {
	Content string `json:"content,omitempty"`
}

// Handlers receives relay callbacks. Deltas arrive strictly in frame order.
// Exactly one of OnComplete or OnError fires, after which no further
// callbacks are made.
type Handlers struct {
	OnDelta    func(text string)
	OnComplete func()
	OnError    func(err error)
}

// Relay decodes an SSE byte stream into discrete text deltas.
type Relay struct {
	handlers Handlers
	// buf holds text carried over between reads; a frame may span multiple
	// network chunks.
	buf strings.Builder
	done bool
	// failure is set when the server reported an in-band error event.
	failure error
}

// NewRelay creates a Relay delivering to the given handlers. Nil callbacks
// are tolerated and skipped.
func NewRelay(handlers Handlers) *Relay {
	return &Relay{handlers: handlers}
}

// Run consumes r until the [DONE] sentinel, EOF, a read error, or ctx
// cancellation, invoking the handlers as frames are decoded. It always
// terminates the caller's waiting state: exactly one of OnComplete/OnError
// fires, OnError winning on failure.
func (rl *Relay) Run(ctx context.Context, r io.Reader) {
	reader := bufio.NewReader(r)
	chunk := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			rl.fail(err)
			return
		}

		n, err := reader.Read(chunk)
		if n > 0 {
			rl.Feed(string(chunk[:n]))
			if rl.done {
				if rl.failure != nil {
					rl.fail(rl.failure)
				} else {
					rl.complete()
				}
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				// Stream ended without a sentinel; treat the remainder as
				// complete rather than erroring a finished answer.
				rl.complete()
			} else {
				rl.fail(err)
			}
			return
		}
	}
}

// Feed appends raw stream text and processes every fully received frame.
// Callers using Run never call Feed directly; it is exported for tests and
// for transports that deliver their own chunking.
func (rl *Relay) Feed(text string) {
	if rl.done {
		return
	}
	rl.buf.WriteString(text)

	buffered := rl.buf.String()
	frames := strings.Split(buffered, frameDelimiter)
	// The last element is an incomplete frame (possibly empty); retain it.
	remainder := frames[len(frames)-1]
	frames = frames[:len(frames)-1]

	rl.buf.Reset()
	rl.buf.WriteString(remainder)

	for _, frame := range frames {
		if rl.done {
			return
		}
		rl.processFrame(frame)
	}
}

// Done reports whether the terminal sentinel has been observed.
func (rl *Relay) Done() bool {
	return rl.done
}

func (rl *Relay) processFrame(frame string) {
	frame = strings.TrimLeft(frame, "\n")
	if frame == "" {
		return
	}

	// A frame may carry event/id lines ahead of its data line.
	payload := ""
	found := false
	errorEvent := false
	for _, line := range strings.Split(frame, "\n") {
		if line == "event: error" {
			errorEvent = true
			continue
		}
		if strings.HasPrefix(line, dataPrefix) {
			payload = strings.TrimPrefix(line, dataPrefix)
			found = true
			break
		}
	}
	if errorEvent {
		// The server reported a failure mid-stream; terminal.
		rl.done = true
		rl.failure = errors.New(payload)
		return
	}
	if !found {
		// Comment frames and foreign event types are skipped.
		return
	}

	if payload == doneSentinel {
		rl.done = true
		return
	}

	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		// Malformed frames are logged and skipped, never fatal.
		log.Printf("sse: skipping malformed frame: %v", err)
		return
	}

	if len(chunk.Choices) == 0 {
		return
	}
	delta := chunk.Choices[0].Delta.Content
	if delta == "" {
		return
	}
	if rl.handlers.OnDelta != nil {
		rl.handlers.OnDelta(delta)
	}
}

func (rl *Relay) complete() {
	rl.done = true
	if rl.handlers.OnComplete != nil {
		rl.handlers.OnComplete()
	}
}

func (rl *Relay) fail(err error) {
	rl.done = true
	if rl.handlers.OnError != nil {
		rl.handlers.OnError(err)
	}
}
