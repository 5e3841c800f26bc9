package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prismon/narrative-mcp/internal/models"
	"github.com/prismon/narrative-mcp/pkg/narrative"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUpstream serves canned attributes and datasets and counts calls
type fakeUpstream struct {
	mu         sync.Mutex
	attributes []models.Attribute
	datasets   []models.Dataset
	err        error

	attributeCalls int
	datasetCalls   int
	lookups        []string
	lastPage       int
	lastPerPage    int

	// block, when set, is waited on inside every fetch
	block    chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{}
}

func (f *fakeUpstream) enter() func() {
	n := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeUpstream) FetchAttributes(ctx context.Context, query string, page, perPage int) (*models.AttributeResponse, error) {
	defer f.enter()()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attributeCalls++
	f.lastPage = page
	f.lastPerPage = perPage
	if f.err != nil {
		return nil, f.err
	}

	total := len(f.attributes)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	records := make([]models.Attribute, end-start)
	copy(records, f.attributes[start:end])
	return &models.AttributeResponse{
		CurrentPage:  page,
		TotalRecords: total,
		TotalPages:   (total + perPage - 1) / perPage,
		Records:      records,
	}, nil
}

func (f *fakeUpstream) FetchDatasets(ctx context.Context) (*models.DatasetResponse, error) {
	defer f.enter()()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.datasetCalls++
	if f.err != nil {
		return nil, f.err
	}

	records := make([]models.Dataset, len(f.datasets))
	copy(records, f.datasets)
	return &models.DatasetResponse{Records: records}, nil
}

func (f *fakeUpstream) FetchDatasetByID(ctx context.Context, id string) (*models.Dataset, error) {
	defer f.enter()()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, id)
	if f.err != nil {
		return nil, f.err
	}

	for _, ds := range f.datasets {
		if ds.ID == id {
			found := ds
			return &found, nil
		}
	}
	return nil, &narrative.APIError{
		Method:     http.MethodGet,
		Path:       "/datasets/" + id,
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"not found"}`,
	}
}

func makeAttributes(n int) []models.Attribute {
	out := make([]models.Attribute, n)
	for i := range out {
		id := int64(i + 1)
		out[i] = models.Attribute{
			ID:          id,
			Name:        fmt.Sprintf("attr_%d", id),
			DisplayName: fmt.Sprintf("Attribute %d", id),
			Description: fmt.Sprintf("Description of attribute %d", id),
			Type:        "string",
		}
	}
	return out
}

func requireFault(t *testing.T, err error, code int) *Fault {
	t.Helper()
	require.Error(t, err)
	var fault *Fault
	require.True(t, errors.As(err, &fault), "expected *Fault, got %T: %v", err, err)
	require.Equal(t, code, fault.Code, "fault message: %s", fault.Message)
	return fault
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
		return ""
	}
}

func textContents(t *testing.T, result *mcp.ReadResourceResult) *mcp.TextResourceContents {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Contents, 1)
	switch c := result.Contents[0].(type) {
	case *mcp.TextResourceContents:
		return c
	case mcp.TextResourceContents:
		return &c
	default:
		t.Fatalf("unexpected contents type %T", c)
		return nil
	}
}

type decodedResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeResponse round-trips a front response into a generic JSON-RPC shape
func decodeResponse(t *testing.T, resp any) decodedResponse {
	t.Helper()
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var out decodedResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}
