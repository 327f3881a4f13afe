package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"surveyor/internal/question"
)

func writeBatchFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestLoadBatch(t *testing.T) {
	path := writeBatchFile(t, `
template: "Does the ministry of {ministry} in {country} handle cybersecurity?"
word_sets:
  ministry: [Energy, Finance, Transport]
  country: [USA, Germany]
schema:
  name: cyber_scope
  fields:
    - name: has_responsibility
      type: boolean
      description: Whether the ministry holds cybersecurity responsibilities
      required: true
    - name: agencies
      type: string_list
      description: Agencies under the ministry with a cyber mandate
`)

	b, err := LoadBatch(path)
	require.NoError(t, err)

	assert.Equal(t, "Does the ministry of {ministry} in {country} handle cybersecurity?", b.Template)
	require.Len(t, b.WordSets, 2)
	assert.Equal(t, "ministry", b.WordSets[0].Name, "declaration order is kept")
	assert.Equal(t, []string{"Energy", "Finance", "Transport"}, b.WordSets[0].Values)
	assert.Equal(t, "country", b.WordSets[1].Name)
	assert.Equal(t, []string{"USA", "Germany"}, b.WordSets[1].Values)

	require.Len(t, b.Schema.Fields, 2)
	assert.Equal(t, "cyber_scope", b.Schema.Name)
	assert.Equal(t, question.FieldBoolean, b.Schema.Fields[0].Type)
	assert.True(t, b.Schema.Fields[0].Required)
	assert.Equal(t, question.FieldStringList, b.Schema.Fields[1].Type)
	assert.False(t, b.Schema.Fields[1].Required)

	set, err := b.QuestionSet()
	require.NoError(t, err)
	assert.Equal(t, 6, set.Count())
}

func TestLoadBatchWithoutSchema(t *testing.T) {
	path := writeBatchFile(t, `
template: "Does {country} have a national cybersecurity strategy?"
word_sets:
  country: [France]
`)

	b, err := LoadBatch(path)
	require.NoError(t, err)
	assert.True(t, b.Schema.Empty())

	set, err := b.QuestionSet()
	require.NoError(t, err)
	assert.Equal(t, 1, set.Count())
}

func TestWordSetsYAMLRoundTrip(t *testing.T) {
	// Alphabetical order would swap these; the round trip must not.
	b := &Batch{
		Template: "{zone} {area}",
		WordSets: WordSets{
			{Name: "zone", Values: []string{"north", "south"}},
			{Name: "area", Values: []string{"urban"}},
		},
	}

	data, err := yaml.Marshal(b)
	require.NoError(t, err)

	var back Batch
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, b.WordSets, back.WordSets)
}

func TestLoadBatchErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadBatch(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read batch file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := LoadBatch(writeBatchFile(t, "template: [unclosed"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse batch file")
	})

	t.Run("word_sets as a list", func(t *testing.T) {
		_, err := LoadBatch(writeBatchFile(t, `
template: "Q {country}"
word_sets: [France, Germany]
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "word_sets must map")
	})

	t.Run("unknown schema field type", func(t *testing.T) {
		_, err := LoadBatch(writeBatchFile(t, `
template: "Q {country}"
word_sets:
  country: [France]
schema:
  name: s
  fields:
    - name: score
      type: decimal
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown type")
	})

	t.Run("uncovered placeholder surfaces from QuestionSet", func(t *testing.T) {
		b, err := LoadBatch(writeBatchFile(t, `
template: "Does {nation} have a strategy?"
word_sets:
  country: [France]
`))
		require.NoError(t, err, "the file itself is well-formed")

		_, err = b.QuestionSet()
		assert.ErrorIs(t, err, question.ErrMissingParam)
	})
}
