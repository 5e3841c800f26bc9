package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prismon/narrative-mcp/internal/models"
	"github.com/prismon/narrative-mcp/pkg/resources"
	"github.com/prismon/narrative-mcp/pkg/tools"
	"github.com/sirupsen/logrus"
)

const summaryDescriptionLimit = 100

// Upstream is the subset of the Narrative API the tools and resources use
type Upstream interface {
	FetchAttributes(ctx context.Context, query string, page, perPage int) (*models.AttributeResponse, error)
	FetchDatasets(ctx context.Context) (*models.DatasetResponse, error)
	FetchDatasetByID(ctx context.Context, id string) (*models.Dataset, error)
}

// Dispatcher validates tool calls against the registry and runs them.
// search_attributes and list_datasets write their results into the store.
type Dispatcher struct {
	registry *tools.Registry
	store    *resources.Store
	upstream Upstream
}

// NewDispatcher creates a dispatcher
func NewDispatcher(registry *tools.Registry, store *resources.Store, upstream Upstream) *Dispatcher {
	return &Dispatcher{registry: registry, store: store, upstream: upstream}
}

// Dispatch runs the named tool. Unknown tools and invalid arguments return a
// *Fault; upstream failures are reported inside the result with IsError set.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	input, err := d.registry.Validate(name, args)
	if err != nil {
		log.WithError(err).WithField("tool", name).Warn("Rejected tool call")
		return nil, AsFault(err)
	}

	start := time.Now()
	var result *mcp.CallToolResult

	switch in := input.(type) {
	case tools.EchoInput:
		result = mcp.NewToolResultText("Echo: " + in.Message)
	case tools.SearchAttributesInput:
		result = d.searchAttributes(ctx, in)
	case tools.ListDatasetsInput:
		result = d.listDatasets(ctx)
	default:
		return nil, NewFault(mcp.INTERNAL_ERROR, "no handler for tool %s", name)
	}

	log.WithFields(logrus.Fields{
		"tool":     name,
		"isError":  result.IsError,
		"duration": time.Since(start).Milliseconds(),
	}).Info("Tool call completed")

	return result, nil
}

// Handle adapts Dispatch to mcp-go's tool handler signature
func (d *Dispatcher) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args json.RawMessage
	if request.Params.Arguments != nil {
		data, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return nil, NewFault(mcp.INVALID_PARAMS, "Invalid arguments for tool %s: %v", request.Params.Name, err)
		}
		args = data
	}
	return d.Dispatch(ctx, request.Params.Name, args)
}

func (d *Dispatcher) searchAttributes(ctx context.Context, in tools.SearchAttributesInput) *mcp.CallToolResult {
	resp, err := d.upstream.FetchAttributes(ctx, in.Query, in.Page, in.PerPage)
	if err != nil {
		log.WithError(err).WithField("query", in.Query).Error("Attribute search failed")
		return mcp.NewToolResultError(fmt.Sprintf("Error searching attributes: %v", err))
	}

	stored, err := d.store.AddAttributes(resp.Records)
	if err != nil {
		log.WithError(err).Warn("Skipped malformed attribute records")
	}

	lines := make([]string, 0, len(resp.Records))
	for _, attr := range resp.Records {
		if attr.Err() != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s...",
			attr.DisplayName, attr.Name, resources.Truncate(attr.Description, summaryDescriptionLimit)))
	}

	log.WithFields(logrus.Fields{
		"query":  in.Query,
		"page":   resp.CurrentPage,
		"stored": stored,
		"cached": len(d.store.ByPrefix(resources.AttributePrefix)),
	}).Debug("Stored attribute resources")

	return mcp.NewToolResultText(fmt.Sprintf(
		"Found %d attributes matching \"%s\"\nPage %d of %d\n\n%s\n\nYou can access full attribute details as resources.",
		resp.TotalRecords, in.Query, resp.CurrentPage, resp.TotalPages, strings.Join(lines, "\n"),
	))
}

func (d *Dispatcher) listDatasets(ctx context.Context) *mcp.CallToolResult {
	resp, err := d.upstream.FetchDatasets(ctx)
	if err != nil {
		log.WithError(err).Error("Dataset listing failed")
		return mcp.NewToolResultError(fmt.Sprintf("Error fetching datasets: %v", err))
	}

	stored, err := d.store.AddDatasets(resp.Records)
	if err != nil {
		log.WithError(err).Warn("Skipped malformed dataset records")
	}

	lines := make([]string, 0, len(resp.Records))
	for _, ds := range resp.Records {
		if ds.Err() != nil {
			continue
		}
		description := resources.NoDescription
		if ds.Description != "" {
			description = resources.Truncate(ds.Description, summaryDescriptionLimit)
		}
		lines = append(lines, fmt.Sprintf("- %s (ID: %s): %s... (%s%s)", ds.Name, ds.ID, description, DatasetScheme+"://", ds.ID))
	}

	log.WithFields(logrus.Fields{
		"stored": stored,
		"cached": len(d.store.ByPrefix(resources.DatasetPrefix)),
	}).Debug("Stored dataset resources")

	return mcp.NewToolResultText(fmt.Sprintf(
		"Found %d datasets\n\n%s\n\nYou can access full dataset details as resources.",
		len(resp.Records), strings.Join(lines, "\n"),
	))
}
