package validation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrMalformedBody is returned when a request body is not valid JSON or does
// not match the expected shape.
var ErrMalformedBody = errors.New("malformed request body")

// Request body schemas. Presence of the fields is checked by the auth service
// so that a missing field and an empty one are reported the same way.
const (
	registerSchemaJSON = `{
		"type": "object",
		"properties": {
			"firstName": {"type": "string", "maxLength": 100},
			"lastName":  {"type": "string", "maxLength": 100},
			"email":     {"type": "string", "maxLength": 254},
			"password":  {"type": "string", "maxLength": 72}
		}
	}`

	loginSchemaJSON = `{
		"type": "object",
		"properties": {
			"email":    {"type": "string", "maxLength": 254},
			"password": {"type": "string", "maxLength": 72}
		}
	}`
)

// Schema is a compiled JSON schema for one request body.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// Name returns the schema resource name.
func (s *Schema) Name() string {
	return s.name
}

var (
	// RegisterSchema validates POST /api/users/register bodies.
	RegisterSchema = mustCompile("register.json", registerSchemaJSON)
	// LoginSchema validates POST /api/users/login bodies.
	LoginSchema = mustCompile("login.json", loginSchemaJSON)
)

// CompileSchema compiles a JSON schema document registered under name.
func CompileSchema(name, document string) (*Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
	}

	compiled, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	return &Schema{name: name, schema: compiled}, nil
}

func mustCompile(name, document string) *Schema {
	s, err := CompileSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateRequest checks raw JSON against schema. Errors wrap ErrMalformedBody.
func ValidateRequest(schema *Schema, raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	if err := schema.schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}

	return nil
}
