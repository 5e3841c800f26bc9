package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// maxMessageSize bounds a single newline-delimited JSON-RPC message
const maxMessageSize = 4 * 1024 * 1024

// ServeStdio reads newline-delimited JSON-RPC messages from in and writes
// responses to out. Messages are handled strictly one at a time in arrival
// order, so tool calls never overlap on this transport. It returns nil on EOF
// or when ctx is cancelled between messages.
func ServeStdio(ctx context.Context, front *Front, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	encoder := json.NewEncoder(out)

	log.Info("MCP stdio server started")

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			log.Info("MCP stdio server stopping: context cancelled")
			return nil
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// The scanner reuses its buffer; handlers may hold on to the message.
		msg := make(json.RawMessage, len(line))
		copy(msg, line)

		resp := front.HandleMessage(ctx, msg)
		if resp == nil {
			continue
		}

		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	log.Info("MCP stdio server shutting down: EOF received")
	return nil
}
