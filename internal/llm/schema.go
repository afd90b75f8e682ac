package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a compiled JSON schema describing a structured reply.
type Schema struct {
	Name string
	doc  map[string]any
	raw  []byte
	sch  *jsonschema.Schema
}

// NewSchema compiles doc, a JSON schema document.
func NewSchema(name string, doc map[string]any) (*Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: marshal schema %s", name)
	}
	// Round-trip so the compiler sees plain JSON values.
	var schemaDoc any
	if err := json.Unmarshal(raw, &schemaDoc); err != nil {
		return nil, eris.Wrapf(err, "llm: parse schema %s", name)
	}

	resource := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, schemaDoc); err != nil {
		return nil, eris.Wrapf(err, "llm: add schema %s", name)
	}
	sch, err := compiler.Compile(resource)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: compile schema %s", name)
	}
	decoded, _ := schemaDoc.(map[string]any)
	return &Schema{Name: name, doc: decoded, raw: raw, sch: sch}, nil
}

// MustSchema is NewSchema for package-level schemas.
func MustSchema(name string, doc map[string]any) *Schema {
	s, err := NewSchema(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

// Doc returns the schema document decoded as plain JSON values.
func (s *Schema) Doc() map[string]any { return s.doc }

// JSON returns the schema document as JSON.
func (s *Schema) JSON() []byte { return s.raw }

// Instructions renders the schema as prompt text for providers without
// native structured output.
func (s *Schema) Instructions() string {
	return "Respond with a single JSON object and nothing else. " +
		"It must validate against this JSON schema:\n" + string(s.raw)
}

// Decode validates reply against the schema and decodes it into out.
// Markdown fences and surrounding prose are stripped first.
func (s *Schema) Decode(reply string, out any) error {
	text := cleanJSON(reply)
	if text == "" {
		return eris.Wrap(ErrSchemaViolation, "no JSON object in reply")
	}

	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return eris.Wrapf(ErrSchemaViolation, "invalid JSON: %v", err)
	}
	if err := s.sch.Validate(inst); err != nil {
		return eris.Wrapf(ErrSchemaViolation, "%v", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(out); err != nil {
		return eris.Wrapf(ErrSchemaViolation, "decode: %v", err)
	}
	return nil
}

// cleanJSON strips markdown code fences and anything outside the outermost
// JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}
