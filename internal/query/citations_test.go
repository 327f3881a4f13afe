package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichCitations(t *testing.T) {
	results := []SearchResult{
		{URL: "https://example.org/a", Title: "Article A", Snippet: "about a", Date: "2024-01-01"},
		{URL: "https://example.org/b", Title: "Article B", LastUpdated: "2024-06-01"},
	}

	enriched := EnrichCitations([]string{
		"https://example.org/a",
		"https://example.org/missing",
	}, results)
	require.Len(t, enriched, 2)

	assert.True(t, enriched[0].Matched)
	assert.Equal(t, "Article A", enriched[0].Title)
	assert.Equal(t, "about a", enriched[0].Snippet)
	assert.Equal(t, "2024-01-01", enriched[0].Date)

	// A citation without a matching search result keeps its URL but no metadata.
	assert.False(t, enriched[1].Matched)
	assert.Equal(t, "https://example.org/missing", enriched[1].URL)
	assert.Empty(t, enriched[1].Title)
}

func TestEnrichCitationsEmpty(t *testing.T) {
	assert.Empty(t, EnrichCitations(nil, nil))
	assert.Empty(t, EnrichCitations(nil, []SearchResult{{URL: "https://example.org"}}))

	enriched := EnrichCitations([]string{"https://example.org"}, nil)
	require.Len(t, enriched, 1)
	assert.False(t, enriched[0].Matched)
}
