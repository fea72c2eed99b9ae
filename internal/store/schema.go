package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// snapshotSchema is the structural contract for persisted snapshots. It is
// checked before decoding so a corrupted or hand-edited file is rejected at
// the boundary instead of surfacing as a half-valid tree later. Fingerprint
// width and alphabet are part of the contract.
const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["schema_version", "algorithm", "rules_fingerprint", "captured_at", "root"],
  "properties": {
    "schema_version": {"type": "integer", "minimum": 1},
    "algorithm": {"type": "string"},
    "rules_fingerprint": {"type": "string", "pattern": "^[0-9a-f]{12}$"},
    "captured_at": {"type": "string"},
    "root": {"$ref": "#/$defs/node"}
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["name", "kind", "hash"],
      "properties": {
        "name": {"type": "string"},
        "kind": {"enum": ["file", "directory"]},
        "hash": {"type": "string", "pattern": "^[0-9a-f]{12}$"},
        "children": {
          "type": "array",
          "items": {"$ref": "#/$defs/node"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("snapshot.schema.json", strings.NewReader(snapshotSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("snapshot.schema.json")
	})
	return compiledSchema, schemaErr
}

// validateSnapshotJSON checks raw snapshot bytes against the schema.
func validateSnapshotJSON(data []byte) error {
	schema, err := loadCompiledSchema()
	if err != nil {
		return fmt.Errorf("compile snapshot schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("snapshot schema: %w", err)
	}
	return nil
}
