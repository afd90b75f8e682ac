package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestSchemaFromJSON(t *testing.T) {
	doc := map[string]any{
		"type":     "object",
		"required": []any{"analyses"},
		"properties": map[string]any{
			"analyses": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"fight_id", "confidence"},
					"properties": map[string]any{
						"fight_id":   map[string]any{"type": "string", "description": "id from the card"},
						"confidence": map[string]any{"type": "integer", "minimum": 0.0, "maximum": 100.0},
					},
					"additionalProperties": false,
				},
			},
		},
	}

	s := SchemaFromJSON(doc)
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"analyses"}, s.Required)

	arr := s.Properties["analyses"]
	require.NotNil(t, arr)
	assert.Equal(t, genai.TypeArray, arr.Type)

	item := arr.Items
	require.NotNil(t, item)
	assert.Equal(t, []string{"fight_id", "confidence"}, item.Required)
	assert.Equal(t, "id from the card", item.Properties["fight_id"].Description)

	conf := item.Properties["confidence"]
	assert.Equal(t, genai.TypeInteger, conf.Type)
	require.NotNil(t, conf.Minimum)
	require.NotNil(t, conf.Maximum)
	assert.InDelta(t, 0, *conf.Minimum, 1e-9)
	assert.InDelta(t, 100, *conf.Maximum, 1e-9)
}

func TestSchemaFromJSON_Nil(t *testing.T) {
	assert.Nil(t, SchemaFromJSON(nil))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 429, StatusCode(genai.APIError{Code: 429, Message: "quota"}))
	assert.Zero(t, StatusCode(assert.AnError))
}
