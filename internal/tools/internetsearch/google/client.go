package google

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

const (
	googleSearchAPIURL = "https://www.googleapis.com/customsearch/v1"
	providerName       = "GOOGLE"
)

// GoogleClient handles communication with Google Custom Search API
type GoogleClient struct {
	baseURL string
	client  internetsearch.HTTPClientInterface
}

// NewGoogleClient creates a new Google Custom Search API client
func NewGoogleClient(client internetsearch.HTTPClientInterface) *GoogleClient {
	if client == nil {
		client = internetsearch.NewRateLimitedHTTPClient()
	}
	return &GoogleClient{
		baseURL: googleSearchAPIURL,
		client:  client,
	}
}

// Search performs a web search query with the given key and engine id
func (c *GoogleClient) Search(ctx context.Context, logger *logrus.Logger, apiKey, cx, query string, locale internetsearch.LocaleHint, count int) (*GoogleSearchResponse, error) {
	params := url.Values{}
	params.Set("key", apiKey)
	params.Set("cx", cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(count))
	if locale.Country != "" {
		params.Set("gl", locale.Country)
	}
	if locale.Language != "" {
		params.Set("hl", locale.Language)
	}

	requestURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result GoogleSearchResponse
	if err := internetsearch.DoJSON(c.client, logger, providerName, req, &result); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"query":        query,
		"result_count": len(result.Items),
	}).Debug("Google search completed successfully")

	return &result, nil
}
