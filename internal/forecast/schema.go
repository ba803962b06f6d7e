package forecast

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// wireTypes are the payloads exchanged with the backend, keyed by name.
var wireTypes = map[string]any{
	"ServerStatus":     ServerStatus{},
	"TrainingProgress": TrainingProgress{},
	"ChatRequest":      ChatRequest{},
	"ChatResponse":     ChatResponse{},
	"Ack":              Ack{},
}

// SchemaNames lists the wire types with a schema, sorted.
func SchemaNames() []string {
	names := make([]string, 0, len(wireTypes))
	for name := range wireTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the JSON Schema of a wire type as a generic map.
func Schema(name string) (map[string]any, error) {
	v, ok := wireTypes[name]
	if !ok {
		return nil, fmt.Errorf("forecast: no schema for %q", name)
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	return schemaToMap(reflector.Reflect(v))
}

func schemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
