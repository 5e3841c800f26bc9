// Package resources holds the in-memory cache of tool results that is exposed
// to MCP clients as resource:/// URIs.
//
// Entries live until removed or until the process exits; there is no TTL.
package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prismon/narrative-mcp/internal/models"
)

const (
	// URIPrefix addresses a cached resource by id
	URIPrefix = "resource:///"

	// MIMETypeJSON is the content type of every cached snapshot
	MIMETypeJSON = "application/json"

	AttributePrefix = "attr-"
	DatasetPrefix   = "dataset-"

	// NoDescription stands in for datasets published without one
	NoDescription = "No description available"

	descriptionLimit = 100
)

// StoredResource is one cached snapshot
type StoredResource struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

// Store maps resource ids to snapshots. Every method locks for its whole body,
// so no caller can observe a half-applied write; concurrent writes to one id
// are last-write-wins.
type Store struct {
	mu    sync.RWMutex
	items map[string]StoredResource
	order []string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{items: make(map[string]StoredResource)}
}

// AttributeID is the store id for an upstream attribute id
func AttributeID(id int64) string {
	return AttributePrefix + strconv.FormatInt(id, 10)
}

// DatasetID is the store id for an upstream dataset id
func DatasetID(id string) string {
	return DatasetPrefix + id
}

// Truncate shortens s to at most limit runes
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Set inserts or replaces the resource stored under id
func (s *Store) Set(id string, resource StoredResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(id, resource)
}

func (s *Store) setLocked(id string, resource StoredResource) {
	if _, ok := s.items[id]; !ok {
		s.order = append(s.order, id)
	}
	s.items[id] = resource
}

// Get returns the resource stored under id
func (s *Store) Get(id string) (StoredResource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	return r, ok
}

// Remove deletes id and reports whether it existed
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether id is stored
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Clear drops every entry
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]StoredResource)
	s.order = nil
}

// Count returns the number of stored resources
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ByPrefix returns the resources whose id starts with prefix, in listing order
func (s *Store) ByPrefix(prefix string) []StoredResource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []StoredResource
	for _, id := range s.order {
		if strings.HasPrefix(id, prefix) {
			out = append(out, s.items[id])
		}
	}
	return out
}

// AddAttributes stores one snapshot per attribute under attr-<id>.
//
// Records are independent: a record that failed to decode upstream (see
// models.Attribute.Err), or one that cannot be serialized, is skipped and
// reported in the joined error while the rest of the batch is stored. Zero is
// a valid attribute id. The count of stored records is always returned.
func (s *Store) AddAttributes(attributes []models.Attribute) (int, error) {
	prepared := make([]StoredResource, 0, len(attributes))
	var errs []error

	for i, attr := range attributes {
		if err := attr.Err(); err != nil {
			errs = append(errs, fmt.Errorf("attribute %d: %w", i, err))
			continue
		}
		content, err := json.MarshalIndent(attr, "", "  ")
		if err != nil {
			errs = append(errs, fmt.Errorf("attribute %d: %w", attr.ID, err))
			continue
		}

		description := Truncate(attr.Description, descriptionLimit)
		if description == "" {
			description = fmt.Sprintf("Rosetta Stone attribute %s", attr.Name)
		}

		prepared = append(prepared, StoredResource{
			ID:          AttributeID(attr.ID),
			Name:        attr.DisplayName,
			Content:     string(content),
			Description: description,
			MIMEType:    MIMETypeJSON,
		})
	}

	s.putAll(prepared)
	return len(prepared), errors.Join(errs...)
}

// AddDatasets stores one snapshot per dataset under dataset-<id>, with the
// same per-record policy as AddAttributes.
func (s *Store) AddDatasets(datasets []models.Dataset) (int, error) {
	prepared := make([]StoredResource, 0, len(datasets))
	var errs []error

	for i, ds := range datasets {
		if err := ds.Err(); err != nil {
			errs = append(errs, fmt.Errorf("dataset %d: %w", i, err))
			continue
		}
		if ds.ID == "" {
			errs = append(errs, fmt.Errorf("dataset %d: missing id", i))
			continue
		}
		content, err := json.MarshalIndent(ds, "", "  ")
		if err != nil {
			errs = append(errs, fmt.Errorf("dataset %s: %w", ds.ID, err))
			continue
		}

		description := NoDescription
		if ds.Description != "" {
			description = Truncate(ds.Description, descriptionLimit)
		}

		prepared = append(prepared, StoredResource{
			ID:          DatasetID(ds.ID),
			Name:        ds.Name,
			Content:     string(content),
			Description: description,
			MIMEType:    MIMETypeJSON,
		})
	}

	s.putAll(prepared)
	return len(prepared), errors.Join(errs...)
}

func (s *Store) putAll(batch []StoredResource) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range batch {
		s.setLocked(r.ID, r)
	}
}

// ListForProtocol projects the store into MCP resource descriptors
func (s *Store) ListForProtocol() []mcp.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]mcp.Resource, 0, len(s.order))
	for _, id := range s.order {
		r := s.items[id]
		mimeType := r.MIMEType
		if mimeType == "" {
			mimeType = MIMETypeJSON
		}
		out = append(out, mcp.NewResource(
			URIPrefix+id,
			r.Name,
			mcp.WithResourceDescription(r.Description),
			mcp.WithMIMEType(mimeType),
		))
	}
	return out
}

// ContentsFor returns the stored content of id, echoing requestedURI back
func (s *Store) ContentsFor(id, requestedURI string) (*mcp.TextResourceContents, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.items[id]
	if !ok {
		return nil, false
	}
	mimeType := r.MIMEType
	if mimeType == "" {
		mimeType = MIMETypeJSON
	}
	return &mcp.TextResourceContents{
		URI:      requestedURI,
		MIMEType: mimeType,
		Text:     r.Content,
	}, true
}
