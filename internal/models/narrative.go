package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var errMissingID = errors.New("missing id")

// AttributeProperty describes one field of an object-typed attribute
type AttributeProperty struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Attribute is a Rosetta Stone attribute as returned by the Narrative API.
// Like Dataset, the complete upstream document is kept and re-emitted on
// marshal.
type Attribute struct {
	ID          int64                        `json:"id"`
	Name        string                       `json:"name"`
	DisplayName string                       `json:"display_name"`
	Description string                       `json:"description"`
	Type        string                       `json:"type,omitempty"`
	Properties  map[string]AttributeProperty `json:"properties,omitempty"`

	raw json.RawMessage
	err error
}

// AttributeResponse is a single page of attribute search results
type AttributeResponse struct {
	PrevPage     *int        `json:"prev_page"`
	CurrentPage  int         `json:"current_page"`
	NextPage     *int        `json:"next_page"`
	TotalRecords int         `json:"total_records"`
	TotalPages   int         `json:"total_pages"`
	Records      []Attribute `json:"records"`
}

// Dataset is a marketplace dataset. Only the fields the server reads are
// typed; the complete upstream document is kept and re-emitted on marshal.
type Dataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	raw json.RawMessage
	err error
}

// DatasetResponse is the body of GET /datasets
type DatasetResponse struct {
	Records []Dataset `json:"records"`
}

// Err reports why the record could not be decoded. Records inside a
// response are decoded one by one, so a malformed record is carried as an
// entry with Err set instead of failing the whole page.
func (a Attribute) Err() error {
	return a.err
}

// Err reports why the record could not be decoded
func (d Dataset) Err() error {
	return d.err
}

type attributeFields struct {
	ID          json.RawMessage              `json:"id"`
	Name        string                       `json:"name"`
	DisplayName string                       `json:"display_name"`
	Description string                       `json:"description"`
	Type        string                       `json:"type"`
	Properties  map[string]AttributeProperty `json:"properties"`
}

// UnmarshalJSON requires an integer id and retains the raw document
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var fields attributeFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	id, err := parseID(fields.ID)
	if err != nil {
		return fmt.Errorf("attribute id: %w", err)
	}
	if id == "" {
		return fmt.Errorf("attribute id: %w", errMissingID)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("attribute id %q is not an integer", id)
	}

	*a = Attribute{
		ID:          n,
		Name:        fields.Name,
		DisplayName: fields.DisplayName,
		Description: fields.Description,
		Type:        fields.Type,
		Properties:  fields.Properties,
		raw:         append(json.RawMessage(nil), bytes.TrimSpace(data)...),
	}
	return nil
}

// MarshalJSON returns the upstream document when one was decoded
func (a Attribute) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	type plain Attribute
	return json.Marshal(plain(a))
}

type datasetFields struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
}

// UnmarshalJSON accepts string or numeric ids and retains the raw document
func (d *Dataset) UnmarshalJSON(data []byte) error {
	var fields datasetFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	id, err := parseID(fields.ID)
	if err != nil {
		return fmt.Errorf("dataset id: %w", err)
	}

	*d = Dataset{
		ID:          id,
		Name:        fields.Name,
		Description: fields.Description,
		raw:         append(json.RawMessage(nil), bytes.TrimSpace(data)...),
	}
	return nil
}

// MarshalJSON returns the upstream document when one was decoded
func (d Dataset) MarshalJSON() ([]byte, error) {
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	type plain Dataset
	return json.Marshal(plain(d))
}

// UnmarshalJSON decodes each record on its own; see Attribute.Err
func (r *AttributeResponse) UnmarshalJSON(data []byte) error {
	type page AttributeResponse
	var body struct {
		page
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	*r = AttributeResponse(body.page)
	r.Records = make([]Attribute, len(body.Records))
	for i, raw := range body.Records {
		var attr Attribute
		if err := json.Unmarshal(raw, &attr); err != nil {
			attr = Attribute{raw: raw, err: fmt.Errorf("record %d: %w", i, err)}
		}
		r.Records[i] = attr
	}
	return nil
}

// UnmarshalJSON decodes each record on its own; see Dataset.Err
func (r *DatasetResponse) UnmarshalJSON(data []byte) error {
	var body struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	r.Records = make([]Dataset, len(body.Records))
	for i, raw := range body.Records {
		var ds Dataset
		if err := json.Unmarshal(raw, &ds); err != nil {
			ds = Dataset{raw: raw, err: fmt.Errorf("record %d: %w", i, err)}
		}
		r.Records[i] = ds
	}
	return nil
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
