package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var embeddedSchema string

// VerifyKeys checks YAML config data against the embedded JSON schema and reports keys
// the schema doesn't know about
func VerifyKeys(data []byte) error {
	var schema map[string]any
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}
	defs, _ := schema["$defs"].(map[string]any)

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	unknown := unknownKeys("", raw, schema, defs)
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("unknown config keys: %s", strings.Join(unknown, ", "))
}

// unknownKeys walks config node and its schema, returning dotted paths of keys missing in schema
func unknownKeys(prefix string, node, schema, defs map[string]any) []string {
	schema = resolveRef(schema, defs)
	props, _ := schema["properties"].(map[string]any)

	var res []string
	for key, val := range node {
		prop, ok := props[key].(map[string]any)
		if !ok {
			res = append(res, prefix+key)
			continue
		}
		if child, ok := val.(map[string]any); ok {
			res = append(res, unknownKeys(prefix+key+".", child, prop, defs)...)
		}
	}
	return res
}

// resolveRef follows local "#/$defs/Name" reference, if any
func resolveRef(schema, defs map[string]any) map[string]any {
	ref, ok := schema["$ref"].(string)
	if !ok {
		return schema
	}
	if def, ok := defs[strings.TrimPrefix(ref, "#/$defs/")].(map[string]any); ok {
		return def
	}
	return schema
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
