// Package tools defines the catalogue of MCP tools this server offers and
// validates call arguments against it.
package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	Echo             = "echo"
	SearchAttributes = "search_attributes"
	ListDatasets     = "list_datasets"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// EchoInput is the validated input of the echo tool
type EchoInput struct {
	Message string `json:"message" validate:"required,min=1"`
}

// SearchAttributesInput is the validated input of search_attributes, with
// defaults applied
type SearchAttributesInput struct {
	Query   string `json:"query" validate:"required,min=1"`
	Page    int    `json:"page" validate:"gte=1"`
	PerPage int    `json:"perPage" validate:"gte=1,lte=100"`
}

// ListDatasetsInput is the validated input of list_datasets. It has no fields.
type ListDatasetsInput struct{}

type entry struct {
	tool     mcp.Tool
	validate func(args map[string]json.RawMessage, raw json.RawMessage) (any, []FieldError)
}

// Registry is the immutable tool catalogue. Build it once with New and pass it
// to whatever needs it.
type Registry struct {
	order    []string
	entries  map[string]entry
	validate *validator.Validate
}

// New builds the registry with echo, search_attributes and list_datasets
func New() *Registry {
	r := &Registry{
		entries:  make(map[string]entry),
		validate: newValidator(),
	}

	r.add(mcp.NewTool(Echo,
		mcp.WithDescription("Echo back a message"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Message to echo back"),
			mcp.MinLength(1),
		),
	), r.validateEcho)

	r.add(mcp.NewTool(SearchAttributes,
		mcp.WithDescription("Search Narrative Rosetta Stone Attributes"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search term for attributes"),
			mcp.MinLength(1),
		),
		mcp.WithNumber("page",
			mcp.Description("Page number (starts at 1)"),
			mcp.Min(1),
			mcp.DefaultNumber(DefaultPage),
		),
		mcp.WithNumber("perPage",
			mcp.Description("Results per page (default: 10)"),
			mcp.Min(1),
			mcp.Max(MaxPerPage),
			mcp.DefaultNumber(DefaultPerPage),
		),
	), r.validateSearchAttributes)

	r.add(mcp.NewTool(ListDatasets,
		mcp.WithDescription("List all available datasets in this user's account"),
	), r.validateListDatasets)

	return r
}

func (r *Registry) add(tool mcp.Tool, validate func(map[string]json.RawMessage, json.RawMessage) (any, []FieldError)) {
	r.order = append(r.order, tool.Name)
	r.entries[tool.Name] = entry{tool: tool, validate: validate}
}

// AllTools returns every definition in registration order
func (r *Registry) AllTools() []mcp.Tool {
	out := make([]mcp.Tool, len(r.order))
	for i, name := range r.order {
		out[i] = r.entries[name].tool
	}
	return out
}

// Tool returns the definition registered under name
func (r *Registry) Tool(name string) (mcp.Tool, bool) {
	e, ok := r.entries[name]
	return e.tool, ok
}

// Validate checks raw arguments for the named tool and returns its typed
// input (EchoInput, SearchAttributesInput or ListDatasetsInput). Missing or
// null arguments are treated as an empty object.
func (r *Registry) Validate(name string, raw json.RawMessage) (any, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = json.RawMessage("{}")
	}

	var args map[string]json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &ValidationError{Tool: name, Fields: []FieldError{{Message: "arguments must be a JSON object"}}}
	}

	input, fields := e.validate(args, raw)
	if len(fields) > 0 {
		return nil, &ValidationError{Tool: name, Fields: fields}
	}
	return input, nil
}

func (r *Registry) validateEcho(_ map[string]json.RawMessage, raw json.RawMessage) (any, []FieldError) {
	var in EchoInput
	if fields := decode(raw, &in); fields != nil {
		return nil, fields
	}
	if fields := r.check(in); fields != nil {
		return nil, fields
	}
	return in, nil
}

func (r *Registry) validateSearchAttributes(_ map[string]json.RawMessage, raw json.RawMessage) (any, []FieldError) {
	var decoded struct {
		Query   string   `json:"query"`
		Page    *float64 `json:"page"`
		PerPage *float64 `json:"perPage"`
	}
	if fields := decode(raw, &decoded); fields != nil {
		return nil, fields
	}

	in := SearchAttributesInput{Query: decoded.Query, Page: DefaultPage, PerPage: DefaultPerPage}
	var fields []FieldError
	if decoded.Page != nil {
		n, ok := wholeNumber(*decoded.Page)
		if !ok {
			fields = append(fields, FieldError{Field: "page", Message: "must be an integer"})
		}
		in.Page = n
	}
	if decoded.PerPage != nil {
		n, ok := wholeNumber(*decoded.PerPage)
		if !ok {
			fields = append(fields, FieldError{Field: "perPage", Message: "must be an integer"})
		}
		in.PerPage = n
	}
	if len(fields) > 0 {
		return nil, fields
	}

	if fields := r.check(in); fields != nil {
		return nil, fields
	}
	return in, nil
}

func (r *Registry) validateListDatasets(args map[string]json.RawMessage, _ json.RawMessage) (any, []FieldError) {
	if len(args) == 0 {
		return ListDatasetsInput{}, nil
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]FieldError, len(names))
	for i, name := range names {
		fields[i] = FieldError{Field: name, Message: "is not accepted"}
	}
	return nil, fields
}

// wholeNumber accepts JSON numbers with no fractional part, so 2 and 2.0
// are the same page
func wholeNumber(f float64) (int, bool) {
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// decode unmarshals raw into out and reports type mismatches per field
func decode(raw json.RawMessage, out any) []FieldError {
	err := json.Unmarshal(raw, out)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be %s, got %s", describeKind(typeErr.Type), typeErr.Value),
		}}
	}
	return []FieldError{{Message: err.Error()}}
}

func describeKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	default:
		return t.String()
	}
}

func (r *Registry) check(in any) []FieldError {
	err := r.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fe.Field(), Message: describeRule(fe)}
	}
	return fields
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s character(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
