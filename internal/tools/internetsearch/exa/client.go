// Package exa adapts the Exa neural search API.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

const defaultExaBaseURL = "https://api.exa.ai/search"

type searchRequest struct {
	Query         string `json:"query"`
	NumResults    int    `json:"numResults"`
	UseAutoprompt bool   `json:"useAutoprompt"`
	Type          string `json:"type"`
}

// SearchResponse is the Exa /search answer
type SearchResponse struct {
	Results []Result `json:"results"`
}

// Result is one Exa hit
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Text          string  `json:"text"`
	PublishedDate string  `json:"publishedDate"`
	Author        string  `json:"author"`
	Score         float64 `json:"score"`
}

// ExaClient talks to the Exa API
type ExaClient struct {
	baseURL string
	client  internetsearch.HTTPClientInterface
}

// Search runs a neural search
func (c *ExaClient) Search(ctx context.Context, logger *logrus.Logger, apiKey, query string, numResults int) (*SearchResponse, error) {
	payload, err := json.Marshal(searchRequest{
		Query:         query,
		NumResults:    numResults,
		UseAutoprompt: true,
		Type:          "neural",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	var response SearchResponse
	if err := internetsearch.DoJSON(c.client, logger, providerName, req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
