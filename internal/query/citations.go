package query

// SearchResult is one entry of a provider's search_results list.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Date        string `json:"date,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// EnrichedCitation pairs a citation URL with the metadata of the search
// result it came from. Matched is false when no search result shares the
// URL; the citation is kept with empty metadata rather than dropped.
type EnrichedCitation struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Date        string `json:"date,omitempty"`
	LastUpdated string `json:"last_updated,omitempty"`
	Matched     bool   `json:"matched"`
}

// EnrichCitations cross-references citation URLs against search results,
// attaching title, snippet, and dates to every citation that matches.
func EnrichCitations(citations []string, results []SearchResult) []EnrichedCitation {
	byURL := make(map[string]SearchResult, len(results))
	for _, r := range results {
		byURL[r.URL] = r
	}
	enriched := make([]EnrichedCitation, 0, len(citations))
	for _, url := range citations {
		e := EnrichedCitation{URL: url}
		if r, ok := byURL[url]; ok {
			e.Title = r.Title
			e.Snippet = r.Snippet
			e.Date = r.Date
			e.LastUpdated = r.LastUpdated
			e.Matched = true
		}
		enriched = append(enriched, e)
	}
	return enriched
}
