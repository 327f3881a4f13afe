package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strategySchema() Schema {
	return Schema{
		Name: "strategy_check",
		Fields: []Field{
			{Name: "has_strategy", Type: FieldBoolean, Description: "Whether a national strategy exists", Required: true},
			{Name: "summary", Type: FieldString, Description: "One-paragraph summary", Required: true},
			{Name: "year_adopted", Type: FieldInteger, Description: "Year the strategy was adopted"},
			{Name: "confidence", Type: FieldNumber, Description: "Confidence 0..1"},
			{Name: "sources", Type: FieldStringList, Description: "Source URLs"},
		},
	}
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, strategySchema().Validate())
	assert.NoError(t, Schema{}.Validate())

	bad := Schema{Fields: []Field{{Name: "x", Type: "uuid"}}}
	assert.Error(t, bad.Validate())

	dup := Schema{Fields: []Field{
		{Name: "x", Type: FieldString},
		{Name: "x", Type: FieldString},
	}}
	assert.Error(t, dup.Validate())

	unnamed := Schema{Fields: []Field{{Type: FieldString}}}
	assert.Error(t, unnamed.Validate())
}

func TestSchemaJSONSchema(t *testing.T) {
	js := strategySchema().JSONSchema()

	assert.Equal(t, "object", js["type"])
	assert.Equal(t, false, js["additionalProperties"])
	assert.ElementsMatch(t, []string{"has_strategy", "summary"}, js["required"])

	props, ok := js["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, props, 5)

	summary := props["summary"].(map[string]any)
	assert.Equal(t, "string", summary["type"])
	assert.Equal(t, "One-paragraph summary", summary["description"])

	sources := props["sources"].(map[string]any)
	assert.Equal(t, "array", sources["type"])
	assert.Equal(t, map[string]any{"type": "string"}, sources["items"])

	year := props["year_adopted"].(map[string]any)
	assert.Equal(t, "integer", year["type"])
}

func TestSchemaValidateMap(t *testing.T) {
	schema := strategySchema()

	t.Run("full object coerces types", func(t *testing.T) {
		// Shapes as encoding/json decodes them: numbers are float64.
		in := map[string]any{
			"has_strategy": true,
			"summary":      "Adopted in 2015, revised 2021.",
			"year_adopted": float64(2015),
			"confidence":   0.9,
			"sources":      []any{"https://example.org/a", "https://example.org/b"},
		}
		out, err := schema.ValidateMap(in)
		require.NoError(t, err)
		assert.Equal(t, true, out["has_strategy"])
		assert.Equal(t, int64(2015), out["year_adopted"])
		assert.Equal(t, 0.9, out["confidence"])
		assert.Equal(t, []string{"https://example.org/a", "https://example.org/b"}, out["sources"])
	})

	t.Run("optional fields may be absent", func(t *testing.T) {
		in := map[string]any{"has_strategy": false, "summary": "none found"}
		out, err := schema.ValidateMap(in)
		require.NoError(t, err)
		_, present := out["year_adopted"]
		assert.False(t, present)
	})

	t.Run("missing required field", func(t *testing.T) {
		_, err := schema.ValidateMap(map[string]any{"summary": "no verdict"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has_strategy")
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := schema.ValidateMap(map[string]any{
			"has_strategy": "yes",
			"summary":      "bad bool",
		})
		assert.Error(t, err)
	})

	t.Run("fractional integer rejected", func(t *testing.T) {
		_, err := schema.ValidateMap(map[string]any{
			"has_strategy": true,
			"summary":      "s",
			"year_adopted": 2015.5,
		})
		assert.Error(t, err)
	})

	t.Run("undeclared keys pass through", func(t *testing.T) {
		out, err := schema.ValidateMap(map[string]any{
			"has_strategy": true,
			"summary":      "s",
			"extra":        "kept",
		})
		require.NoError(t, err)
		assert.Equal(t, "kept", out["extra"])
	})
}
