package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brizzle/shopagent/provider"
)

func TestToSchema(t *testing.T) {
	schema := toSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string", "description": "product name"},
			"price": map[string]any{"type": "number"},
			"count": map[string]any{"type": "integer"},
			"flag":  map[string]any{"type": "boolean"},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"name", "price"},
	})

	assert.Equal(t, genai.TypeObject, schema.Type)
	require.Len(t, schema.Properties, 5)
	assert.Equal(t, genai.TypeString, schema.Properties["name"].Type)
	assert.Equal(t, "product name", schema.Properties["name"].Description)
	assert.Equal(t, genai.TypeNumber, schema.Properties["price"].Type)
	assert.Equal(t, genai.TypeInteger, schema.Properties["count"].Type)
	assert.Equal(t, genai.TypeBoolean, schema.Properties["flag"].Type)
	assert.Equal(t, genai.TypeArray, schema.Properties["tags"].Type)
	require.NotNil(t, schema.Properties["tags"].Items)
	assert.Equal(t, genai.TypeString, schema.Properties["tags"].Items.Type)
	assert.ElementsMatch(t, []string{"name", "price"}, schema.Required)
}

func TestToSchema_RequiredAsAnySlice(t *testing.T) {
	schema := toSchema(map[string]any{
		"type":       "object",
		"properties": map[string]any{"q": map[string]any{"type": "string"}},
		"required":   []any{"q"},
	})
	assert.Equal(t, []string{"q"}, schema.Required)
}

func TestToSchema_NilIsEmptyObject(t *testing.T) {
	schema := toSchema(nil)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Empty(t, schema.Properties)
}

func TestBuildDeclarations(t *testing.T) {
	decls := buildDeclarations([]provider.ToolDefinition{
		{
			Name:        "get_products",
			Description: "Fetch all products",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	})
	require.Len(t, decls, 1)
	assert.Equal(t, "get_products", decls[0].Name)
	assert.Equal(t, "Fetch all products", decls[0].Description)
	require.NotNil(t, decls[0].Parameters)
	assert.Equal(t, genai.TypeObject, decls[0].Parameters.Type)
}
