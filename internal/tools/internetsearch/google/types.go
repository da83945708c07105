package google

// GoogleSearchResponse represents the response from Google Custom Search API
type GoogleSearchResponse struct {
	Items             []GoogleSearchResult `json:"items"`
	SearchInformation GoogleSearchInfo     `json:"searchInformation"`
}

// GoogleSearchResult represents a single search result
type GoogleSearchResult struct {
	Title       string `json:"title"`
	HTMLTitle   string `json:"htmlTitle,omitempty"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink,omitempty"`
	Snippet     string `json:"snippet"`
	HTMLSnippet string `json:"htmlSnippet,omitempty"`
}

// GoogleSearchInfo contains information about the search
type GoogleSearchInfo struct {
	SearchTime   float64 `json:"searchTime,omitempty"`
	TotalResults string  `json:"totalResults,omitempty"`
}
