package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prismon/narrative-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, out *bytes.Buffer) []decodedResponse {
	t.Helper()
	var responses []decodedResponse
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var resp decodedResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp), scanner.Text())
		responses = append(responses, resp)
	}
	return responses
}

func TestServeStdio_RespondsInOrder(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.attributes = makeAttributes(12)
	app := New(upstream)

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"message":"first"}}}`,
		``,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"search_attributes","arguments":{"query":"income","page":2,"perPage":5}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"resource:///attr-6"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"bogus_tool"}}`,
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, ServeStdio(context.Background(), app.Front, in, &out))

	responses := readLines(t, &out)
	require.Len(t, responses, 4, "notifications and blank lines get no response")
	for i, resp := range responses {
		assert.JSONEq(t, string(rune('1'+i)), string(resp.ID))
	}

	assert.Contains(t, string(responses[0].Result), "Echo: first")
	assert.Contains(t, string(responses[1].Result), "Page 2 of 3")
	assert.Nil(t, responses[2].Error, "read after the search sees its cache writes")
	assert.Contains(t, string(responses[2].Result), "attr_6")
	require.NotNil(t, responses[3].Error)
	assert.Equal(t, -32601, responses[3].Error.Code)

	assert.Equal(t, 5, app.Store.Count())
}

// The stdio transport never runs two requests at once, so tool calls that
// touch the same store ids cannot interleave.
func TestServeStdio_SerializesRequests(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.datasets = []models.Dataset{{ID: "1", Name: "One"}}
	upstream.block = make(chan struct{})
	app := New(upstream)

	pr, pw := io.Pipe()
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- ServeStdio(context.Background(), app.Front, pr, &out)
	}()

	// Release each fetch slowly; a second request would only overlap if the
	// loop dispatched concurrently.
	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(10 * time.Millisecond)
			upstream.block <- struct{}{}
		}
	}()

	for i := 1; i <= 3; i++ {
		_, err := io.WriteString(pw, `{"jsonrpc":"2.0","id":`+string(rune('0'+i))+`,"method":"tools/call","params":{"name":"list_datasets"}}`+"\n")
		require.NoError(t, err)
	}
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServeStdio did not return")
	}

	assert.Equal(t, int32(1), upstream.peak.Load())
	assert.Len(t, readLines(t, &out), 3)
	assert.Equal(t, 1, app.Store.Count())
}

func TestServeStdio_ContextCancelled(t *testing.T) {
	app := New(newFakeUpstream())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"message":"x"}}}` + "\n")
	var out bytes.Buffer

	require.NoError(t, ServeStdio(ctx, app.Front, in, &out))
	assert.Empty(t, out.String())
}

func TestServeStdio_ParseError(t *testing.T) {
	app := New(newFakeUpstream())

	in := strings.NewReader("not json\n")
	var out bytes.Buffer

	require.NoError(t, ServeStdio(context.Background(), app.Front, in, &out))
	responses := readLines(t, &out)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, -32700, responses[0].Error.Code)
}
