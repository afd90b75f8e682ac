package gemini

import (
	"strings"

	"google.golang.org/genai"
)

// SchemaFromJSON converts a decoded JSON Schema document into the subset
// genai understands: type, description, properties, required, items,
// minimum, maximum and enum. Unsupported keywords are dropped.
func SchemaFromJSON(doc map[string]any) *genai.Schema {
	if doc == nil {
		return nil
	}
	s := &genai.Schema{}

	if t, ok := doc["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if d, ok := doc["description"].(string); ok {
		s.Description = d
	}
	if props, ok := doc["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = SchemaFromJSON(sub)
			}
		}
	}
	switch req := doc["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	if items, ok := doc["items"].(map[string]any); ok {
		s.Items = SchemaFromJSON(items)
	}
	if v, ok := number(doc["minimum"]); ok {
		s.Minimum = &v
	}
	if v, ok := number(doc["maximum"]); ok {
		s.Maximum = &v
	}
	if enum, ok := doc["enum"].([]any); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				s.Enum = append(s.Enum, v)
			}
		}
	}
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
