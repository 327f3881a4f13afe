package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyor/internal/question"
)

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no marker", `{"a": 1}`, `{"a": 1}`},
		{"preamble stripped", "Let me think about this.\n</think>\n{\"a\": 1}", `{"a": 1}`},
		{"first marker wins", "first</think>middle</think>  {\"a\": 1} ", "middle</think>  {\"a\": 1}"},
		{"empty after marker", "thinking</think>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.content))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"population": 67}`, `{"population": 67}`},
		{"markdown fence", "```json\n{\"capital\": \"Paris\"}\n```", `{"capital": "Paris"}`},
		{"surrounding prose", `Here is the answer: {"capital": "Paris"} Hope that helps.`, `{"capital": "Paris"}`},
		{"nested objects", `{"a": {"b": {"c": 1}}}`, `{"a": {"b": {"c": 1}}}`},
		{"brace inside string", `{"note": "use } carefully", "n": 1}`, `{"note": "use } carefully", "n": 1}`},
		{"escaped quote inside string", `{"note": "quote \" and } brace"}`, `{"note": "quote \" and } brace"}`},
		{"no object", "no structured data here", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.content))
		})
	}
}

func TestDecodeStructured(t *testing.T) {
	schema := question.Schema{
		Name: "country_facts",
		Fields: []question.Field{
			{Name: "capital", Type: question.FieldString, Required: true},
			{Name: "population", Type: question.FieldInteger},
		},
	}

	t.Run("valid with reasoning and fence", func(t *testing.T) {
		content := "Considering the question.\n</think>\n```json\n{\"capital\": \"Paris\", \"population\": 68000000}\n```"
		raw, fields, err := DecodeStructured(content, schema)
		require.NoError(t, err)
		assert.Equal(t, "Paris", fields["capital"])
		assert.Equal(t, int64(68000000), fields["population"])

		var roundTrip map[string]any
		require.NoError(t, json.Unmarshal(raw, &roundTrip))
		assert.Equal(t, "Paris", roundTrip["capital"])
	})

	t.Run("missing required field", func(t *testing.T) {
		_, _, err := DecodeStructured(`{"population": 68000000}`, schema)
		require.ErrorIs(t, err, ErrParse)
	})

	t.Run("no JSON object", func(t *testing.T) {
		_, _, err := DecodeStructured("I could not find that information.", schema)
		require.ErrorIs(t, err, ErrParse)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, _, err := DecodeStructured(`{"capital": }`, schema)
		require.ErrorIs(t, err, ErrParse)
	})

	t.Run("wrong type", func(t *testing.T) {
		_, _, err := DecodeStructured(`{"capital": "Paris", "population": "lots"}`, schema)
		require.ErrorIs(t, err, ErrParse)
	})
}
