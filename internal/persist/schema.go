package persist

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const snapshotSchemaURL = "snapshot.schema.json"

// snapshotSchema describes the stored blob. It checks shape only; value
// rules (quantity matches instances, no null answers) are restored by the
// reducer when the snapshot is replayed.
const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["clientProfile", "selections"],
  "properties": {
    "clientProfile": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "formIsValid": {"type": "boolean"},
    "selections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "item", "quantity"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "category": {"type": "string"},
          "quantity": {"type": "integer"},
          "item": {
            "type": "object",
            "required": ["id", "code", "name"],
            "properties": {
              "id": {"type": ["string", "integer"]},
              "code": {"type": "string"},
              "name": {"type": "string"},
              "fields": {"type": "array", "items": {"type": "object"}}
            }
          },
          "instances": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["id"],
              "properties": {
                "id": {"type": "string"},
                "additionalInfo": {
                  "type": ["object", "null"],
                  "additionalProperties": {
                    "type": ["string", "number", "boolean", "array", "null"],
                    "items": {"type": "string"}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

func compileSnapshotSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	if err := c.AddResource(snapshotSchemaURL, strings.NewReader(snapshotSchema)); err != nil {
		return nil, fmt.Errorf("add snapshot schema: %w", err)
	}
	compiled, err := c.Compile(snapshotSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile snapshot schema: %w", err)
	}
	return compiled, nil
}
