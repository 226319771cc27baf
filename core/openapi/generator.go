// Package openapi generates OpenAPI 3.0 specifications from resource
// handlers. Paths, schemas, and parameters all derive from the column
// registries; nothing is hand-maintained.
package openapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/artpar/declarest/core/column"
	"github.com/artpar/declarest/core/handler"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"`
	Description string  `json:"description,omitempty"`
	Required    bool    `json:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Required bool                 `json:"required,omitempty"`
	Content  map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type       string             `json:"type,omitempty"`
	Format     string             `json:"format,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Enum       []string           `json:"enum,omitempty"`
	Ref        string             `json:"$ref,omitempty"`
}

// Components holds reusable schema definitions.
type Components struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Tag groups operations per resource.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Resource pairs a mount path with the handler serving it.
type Resource struct {
	// Name is the path segment the resource is mounted under ("users").
	Name string

	Handler *handler.Restful
}

// Generator builds specs for a fixed set of resources.
type Generator struct {
	info      Info
	servers   []Server
	resources []Resource
}

// NewGenerator creates a generator for the given resources.
func NewGenerator(info Info, servers []Server, resources []Resource) *Generator {
	return &Generator{info: info, servers: servers, resources: resources}
}

// Generate builds the complete specification.
func (g *Generator) Generate() *Spec {
	spec := &Spec{
		OpenAPI:    "3.0.3",
		Info:       g.info,
		Servers:    g.servers,
		Paths:      make(map[string]PathItem),
		Components: Components{Schemas: make(map[string]*Schema)},
	}

	for _, res := range g.resources {
		spec.Tags = append(spec.Tags, Tag{
			Name:        res.Name,
			Description: fmt.Sprintf("Operations on the %s resource", res.Name),
		})
		spec.Components.Schemas[schemaName(res.Name)] = recordSchema(res.Handler)
		spec.Components.Schemas[schemaName(res.Name)+"Input"] = inputSchema(res.Handler)

		base := "/" + strings.Trim(res.Name, "/")
		spec.Paths[base] = PathItem{
			Get:  listOperation(res),
			Post: createOperation(res),
		}
		spec.Paths[base+"/{id}"] = PathItem{
			Get:    readOperation(res),
			Put:    updateOperation(res, "update"),
			Patch:  updateOperation(res, "patch"),
			Delete: deleteOperation(res),
		}
	}
	return spec
}

// JSON renders the specification as indented JSON.
func (g *Generator) JSON() ([]byte, error) {
	return json.MarshalIndent(g.Generate(), "", "  ")
}

func schemaName(resource string) string {
	if resource == "" {
		return "Resource"
	}
	return strings.ToUpper(resource[:1]) + resource[1:]
}

// recordSchema describes a serialized record: the readable columns.
func recordSchema(h *handler.Restful) *Schema {
	props := map[string]*Schema{
		column.IdentityName: {Type: "integer", Format: "int64"},
	}
	for _, c := range h.ReadableColumns() {
		if c.Name() == column.IdentityName {
			continue
		}
		props[c.Name()] = columnSchema(c)
	}
	return &Schema{Type: "object", Properties: props}
}

// inputSchema describes the accepted body: the writeable columns.
func inputSchema(h *handler.Restful) *Schema {
	props := map[string]*Schema{}
	var required []string
	for _, c := range h.WriteableColumns() {
		props[c.Name()] = columnSchema(c)
		// A requirement that rejects an absent value makes the column
		// required.
		for _, req := range c.Requirements() {
			if req.Check(nil, false) != "" {
				required = append(required, c.Name())
				break
			}
		}
	}
	return &Schema{Type: "object", Properties: props, Required: required}
}

func columnSchema(c column.Column) *Schema {
	switch c.Kind() {
	case column.KindIdentity, column.KindInteger:
		return &Schema{Type: "integer", Format: "int64"}
	case column.KindEmail:
		return &Schema{Type: "string", Format: "email"}
	case column.KindUUID:
		return &Schema{Type: "string", Format: "uuid"}
	case column.KindCreated, column.KindUpdated:
		return &Schema{Type: "string", Format: "date-time"}
	case column.KindSecret:
		return &Schema{Type: "string", Format: "password"}
	default:
		return &Schema{Type: "string"}
	}
}

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func idParameter() Parameter {
	return Parameter{
		Name:     "id",
		In:       "path",
		Required: true,
		Schema:   &Schema{Type: "integer", Format: "int64"},
	}
}

func listOperation(res Resource) *Operation {
	params := []Parameter{
		{Name: "start", In: "query", Schema: &Schema{Type: "integer"}},
		{Name: "limit", In: "query", Schema: &Schema{Type: "integer"}},
		{Name: "sort", In: "query", Schema: &Schema{Type: "string"}},
		{Name: "direction", In: "query", Schema: &Schema{Type: "string", Enum: []string{"asc", "desc"}}},
	}
	for _, name := range res.Handler.SearchableColumnNames() {
		c, _ := res.Handler.Models().Columns().Get(name)
		params = append(params, Parameter{Name: name, In: "query", Schema: columnSchema(c)})
	}
	return &Operation{
		Tags:        []string{res.Name},
		Summary:     fmt.Sprintf("List %s", res.Name),
		OperationID: "list" + schemaName(res.Name),
		Parameters:  params,
		Responses: map[string]Response{
			"200": envelopeResponse(&Schema{Type: "array", Items: ref(schemaName(res.Name))}),
			"400": {Description: "Invalid list parameters"},
		},
	}
}

func readOperation(res Resource) *Operation {
	return &Operation{
		Tags:        []string{res.Name},
		Summary:     fmt.Sprintf("Fetch one of %s by id", res.Name),
		OperationID: "get" + schemaName(res.Name),
		Parameters:  []Parameter{idParameter()},
		Responses: map[string]Response{
			"200": envelopeResponse(ref(schemaName(res.Name))),
			"404": {Description: "Record not found"},
		},
	}
}

func createOperation(res Resource) *Operation {
	return &Operation{
		Tags:        []string{res.Name},
		Summary:     fmt.Sprintf("Create %s", res.Name),
		OperationID: "create" + schemaName(res.Name),
		RequestBody: &RequestBody{
			Required: true,
			Content:  map[string]MediaType{"application/json": {Schema: ref(schemaName(res.Name) + "Input")}},
		},
		Responses: map[string]Response{
			"200": envelopeResponse(ref(schemaName(res.Name))),
			"400": {Description: "Validation failed"},
		},
	}
}

func updateOperation(res Resource, verb string) *Operation {
	return &Operation{
		Tags:        []string{res.Name},
		Summary:     fmt.Sprintf("Update %s", res.Name),
		OperationID: verb + schemaName(res.Name),
		Parameters:  []Parameter{idParameter()},
		RequestBody: &RequestBody{
			Content: map[string]MediaType{"application/json": {Schema: ref(schemaName(res.Name) + "Input")}},
		},
		Responses: map[string]Response{
			"200": envelopeResponse(ref(schemaName(res.Name))),
			"400": {Description: "Validation failed"},
			"404": {Description: "Record not found"},
		},
	}
}

func deleteOperation(res Resource) *Operation {
	return &Operation{
		Tags:        []string{res.Name},
		Summary:     fmt.Sprintf("Delete %s", res.Name),
		OperationID: "delete" + schemaName(res.Name),
		Parameters:  []Parameter{idParameter()},
		Responses: map[string]Response{
			"200": envelopeResponse(&Schema{Type: "object"}),
			"404": {Description: "Record not found"},
		},
	}
}

// envelopeResponse wraps a data schema in the standard response envelope.
func envelopeResponse(data *Schema) Response {
	return Response{
		Description: "Successful response",
		Content: map[string]MediaType{
			"application/json": {
				Schema: &Schema{
					Type: "object",
					Properties: map[string]*Schema{
						"status": {Type: "string", Enum: []string{"success", "failure", "input_errors"}},
						"data":   data,
						"pagination": {
							Type: "object",
							Properties: map[string]*Schema{
								"numberResults": {Type: "integer"},
								"start":         {Type: "integer"},
								"limit":         {Type: "integer"},
							},
						},
					},
				},
			},
		},
	}
}
