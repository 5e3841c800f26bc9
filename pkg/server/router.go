package server

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prismon/narrative-mcp/pkg/resources"
	"github.com/sirupsen/logrus"
)

// URI schemes understood by Read
const (
	DatasetScheme  = "dataset"
	ResourceScheme = "resource"

	DatasetTemplate = DatasetScheme + "://{id}"
)

// Router resolves resource reads by URI scheme. dataset: URIs are always
// fetched live; resource: URIs are served from the store.
type Router struct {
	store    *resources.Store
	upstream Upstream
}

// NewRouter creates a router
func NewRouter(store *resources.Store, upstream Upstream) *Router {
	return &Router{store: store, upstream: upstream}
}

// List returns a snapshot of the cached resources
func (r *Router) List() *mcp.ListResourcesResult {
	return &mcp.ListResourcesResult{Resources: r.store.ListForProtocol()}
}

// Templates returns the URI templates clients can fill in. The list is
// static and independent of store contents.
func (r *Router) Templates() []mcp.ResourceTemplate {
	return []mcp.ResourceTemplate{
		mcp.NewResourceTemplate(
			DatasetTemplate,
			"Dataset Resource",
			mcp.WithTemplateDescription("Narrative marketplace dataset details with full schema and metadata"),
			mcp.WithTemplateMIMEType(resources.MIMETypeJSON),
		),
	}
}

// Read returns the contents addressed by uri or a *Fault with code
// INVALID_REQUEST
func (r *Router) Read(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return nil, NewFault(mcp.INVALID_REQUEST, "Invalid resource URI: %s", uri)
	}

	// dataset://7 carries the id as host, resource:///attr-7 as path
	id := strings.Trim(u.Host+u.Path, "/")
	if id == "" {
		id = u.Opaque
	}

	entry := log.WithFields(logrus.Fields{"uri": uri, "scheme": u.Scheme})

	switch u.Scheme {
	case DatasetScheme:
		if id == "" {
			return nil, NewFault(mcp.INVALID_REQUEST, "Dataset id is required: %s", uri)
		}
		dataset, err := r.upstream.FetchDatasetByID(ctx, id)
		if err != nil {
			entry.WithError(err).Warn("Live dataset read failed")
			return nil, NewFault(mcp.INVALID_REQUEST, "Dataset %s not found: %v", id, err)
		}
		text, err := json.MarshalIndent(dataset, "", "  ")
		if err != nil {
			return nil, NewFault(mcp.INTERNAL_ERROR, "failed to encode dataset %s: %v", id, err)
		}
		entry.Debug("Served live dataset")
		return &mcp.ReadResourceResult{
			Contents: []mcp.ResourceContents{
				&mcp.TextResourceContents{
					URI:      uri,
					MIMEType: resources.MIMETypeJSON,
					Text:     string(text),
				},
			},
		}, nil

	case ResourceScheme:
		contents, ok := r.store.ContentsFor(id, uri)
		if !ok {
			entry.Debug("Cached resource not found")
			return nil, NewFault(mcp.INVALID_REQUEST, "Resource %s not found", id)
		}
		return &mcp.ReadResourceResult{
			Contents: []mcp.ResourceContents{contents},
		}, nil

	default:
		return nil, NewFault(mcp.INVALID_REQUEST, "Unsupported URI scheme: %s:", u.Scheme)
	}
}

// HandleRead adapts Read to mcp-go's resource handler signature
func (r *Router) HandleRead(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	result, err := r.Read(ctx, request.Params.URI)
	if err != nil {
		return nil, err
	}
	return result.Contents, nil
}
