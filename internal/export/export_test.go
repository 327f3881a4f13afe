package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyor/internal/question"
)

func sampleAnswers() []question.Answer {
	return []question.Answer{
		{
			WordSet:       map[string]string{"country": "France"},
			QuestionValue: "Does France have a strategy?",
			Response:      question.QueryResponse{ParsingSuccess: true},
			Fields: map[string]any{
				"has_strategy": true,
				"score":        4.5,
				"agencies":     []any{"ANSSI"},
			},
		},
		{
			WordSet:       map[string]string{"country": "Atlantis"},
			QuestionValue: "Does Atlantis have a strategy?",
			Response:      question.QueryResponse{ParsingSuccess: false, RetriesUsed: 2},
			Fields:        map[string]any{},
			Error:         "no such place",
		},
	}
}

func TestBuildTableColumnOrder(t *testing.T) {
	table := BuildTable(sampleAnswers())
	assert.Equal(t, []string{
		"country", "question",
		"agencies", "has_strategy", "score",
		"error", "parsing_success", "retries_used",
	}, table.Columns)
	require.Len(t, table.Rows, 2)
}

func TestBuildTableReservedCollision(t *testing.T) {
	answers := []question.Answer{{
		WordSet:       map[string]string{"country": "France"},
		QuestionValue: "Q France",
		Response:      question.QueryResponse{ParsingSuccess: true},
		Fields: map[string]any{
			"country":  "should lose to the parameter",
			"question": "should lose to the rendered value",
			"verdict":  "kept",
		},
	}}
	table := BuildTable(answers)

	// Colliding field names do not become extra columns.
	assert.Equal(t, []string{
		"country", "question", "verdict",
		"error", "parsing_success", "retries_used",
	}, table.Columns)
	assert.Equal(t, "France", table.Rows[0]["country"])
	assert.Equal(t, "Q France", table.Rows[0]["question"])
	assert.Equal(t, "kept", table.Rows[0]["verdict"])
}

func TestWriteCSV(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, BuildTable(sampleAnswers())))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one row per answer")

	assert.Equal(t, []string{
		"country", "question",
		"agencies", "has_strategy", "score",
		"error", "parsing_success", "retries_used",
	}, records[0])
	assert.Equal(t, []string{
		"France", "Does France have a strategy?",
		`["ANSSI"]`, "true", "4.5",
		"", "true", "0",
	}, records[1])
	assert.Equal(t, []string{
		"Atlantis", "Does Atlantis have a strategy?",
		"", "", "",
		"no such place", "false", "2",
	}, records[2])
}

func TestWriteCSVEmptyTable(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteCSV(&buf, BuildTable(nil)))
	assert.Equal(t, "question,error,parsing_success,retries_used\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteJSON(&buf, BuildTable(sampleAnswers())))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, "France", rows[0]["country"])
	assert.Equal(t, true, rows[0]["has_strategy"])
	assert.Equal(t, []any{"ANSSI"}, rows[0]["agencies"])

	assert.Equal(t, "no such place", rows[1]["error"])
	assert.Equal(t, false, rows[1]["parsing_success"])
	assert.Equal(t, float64(2), rows[1]["retries_used"])
	assert.Nil(t, rows[1]["agencies"], "absent fields export as null")
}

func TestWriteJSONEmptyTable(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteJSON(&buf, BuildTable(nil)))
	assert.JSONEq(t, "[]", buf.String())
}

func TestWriteFormats(t *testing.T) {
	table := BuildTable(sampleAnswers())

	t.Run("csv", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, Write(&buf, table, "csv"))
		assert.True(t, strings.HasPrefix(buf.String(), "country,question,"))
	})
	t.Run("json", func(t *testing.T) {
		var buf strings.Builder
		require.NoError(t, Write(&buf, table, "json"))
		assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "["))
	})
	t.Run("unknown", func(t *testing.T) {
		var buf strings.Builder
		err := Write(&buf, table, "parquet")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parquet")
	})
}
