package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const disputeSchema = `{
  "type": "object",
  "required": ["parcelRef", "type", "description"],
  "additionalProperties": false,
  "properties": {
    "parcelRef": {"type": "string", "minLength": 1},
    "type": {"type": "string"},
    "description": {"type": "string"},
    "latitude": {"type": ["number", "null"]},
    "longitude": {"type": ["number", "null"]},
    "selectionBounds": {
      "type": ["object", "null"],
      "required": ["north", "south", "east", "west"],
      "properties": {
        "north": {"type": "number"},
        "south": {"type": "number"},
        "east": {"type": "number"},
        "west": {"type": "number"}
      }
    },
    "status": {"type": "string"},
    "priority": {"type": "string"},
    "evidenceRefs": {"type": ["array", "null"], "items": {"type": "string"}},
    "resolutionNote": {"type": ["string", "null"]}
  }
}`

const parcelSchema = `{
  "type": "object",
  "required": ["parcelRef", "ownerName", "boundary"],
  "additionalProperties": false,
  "properties": {
    "parcelRef": {"type": "string", "minLength": 1},
    "ownerName": {"type": "string"},
    "landUse": {"type": "string"},
    "areaSqm": {"type": ["number", "null"]},
    "boundary": {
      "type": "array",
      "items": {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2}
    }
  }
}`

const boundarySchema = `{
  "type": "object",
  "required": ["boundary"],
  "additionalProperties": false,
  "properties": {
    "areaSqm": {"type": ["number", "null"]},
    "boundary": {
      "type": "array",
      "items": {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2}
    }
  }
}`

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func compiledSchema(name string) (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = make(map[string]*jsonschema.Schema)
		for n, src := range map[string]string{"dispute": disputeSchema, "parcel": parcelSchema, "boundary": boundarySchema} {
			c := jsonschema.NewCompiler()
			c.Draft = jsonschema.Draft2020
			url := fmt.Sprintf("https://landledger.schemas.local/snapshot/%s.schema.json", n)
			if err := c.AddResource(url, strings.NewReader(src)); err != nil {
				schemaErr = fmt.Errorf("snapshot schema load failed: %w", err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				schemaErr = fmt.Errorf("snapshot schema compile failed: %w", err)
				return
			}
			schemas[n] = s
		}
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return schemas[name], nil
}

// DisputeFieldsFromDocument validates a JSON dispute document and decodes it.
func DisputeFieldsFromDocument(doc []byte) (*DisputeFields, error) {
	var f DisputeFields
	if err := decodeValidated("dispute", doc, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParcelFieldsFromDocument validates a JSON parcel document and decodes it.
func ParcelFieldsFromDocument(doc []byte) (*ParcelFields, error) {
	var f ParcelFields
	if err := decodeValidated("parcel", doc, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// BoundaryUpdate is a resurvey: a new [lng, lat] ring and optionally a new area.
type BoundaryUpdate struct {
	AreaSqm  *float64    `json:"areaSqm"`
	Boundary [][]float64 `json:"boundary"`
}

// BoundaryUpdateFromDocument validates a JSON boundary document and decodes it.
func BoundaryUpdateFromDocument(doc []byte) (*BoundaryUpdate, error) {
	var u BoundaryUpdate
	if err := decodeValidated("boundary", doc, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func decodeValidated(schema string, doc []byte, out any) error {
	s, err := compiledSchema(schema)
	if err != nil {
		return err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return invalid("document", "malformed JSON: %v", err)
	}
	if err := s.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			field := strings.TrimPrefix(leaf.InstanceLocation, "/")
			if field == "" {
				field = "document"
			}
			return invalid(strings.ReplaceAll(field, "/", "."), "%s", leaf.Message)
		}
		return invalid("document", "%v", err)
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return invalid("document", "%v", err)
	}
	return nil
}
