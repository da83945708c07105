// Package serper adapts the Serper Google-results API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

const (
	serperAPIURL = "https://google.serper.dev/search"
	providerName = "SERPER"

	// DefaultCount is the number of organic results requested
	DefaultCount = 15
)

// SerperProvider implements internetsearch.Adapter
type SerperProvider struct {
	baseURL string
	client  internetsearch.HTTPClientInterface
	creds   internetsearch.Credentials
	locale  internetsearch.LocaleHint
}

// NewSerperProvider creates a Serper provider. A nil client gets a rate-limited default.
func NewSerperProvider(creds internetsearch.Credentials, locale internetsearch.LocaleHint, client internetsearch.HTTPClientInterface) *SerperProvider {
	if client == nil {
		client = internetsearch.NewRateLimitedHTTPClient()
	}
	return &SerperProvider{
		baseURL: serperAPIURL,
		client:  client,
		creds:   creds,
		locale:  locale,
	}
}

// Name returns the provider name
func (p *SerperProvider) Name() string {
	return providerName
}

// Search posts the query to Serper and maps the organic results
func (p *SerperProvider) Search(ctx context.Context, logger *logrus.Logger, query string) internetsearch.ProviderResult {
	apiKey, ok := p.creds.Next(providerName)
	if !ok {
		return internetsearch.Failure(providerName, internetsearch.ErrNoCredential)
	}

	payload, err := json.Marshal(searchRequest{
		Query:    p.locale.Apply(query),
		Country:  p.locale.Country,
		Language: p.locale.Language,
		Num:      DefaultCount,
	})
	if err != nil {
		return internetsearch.Failure(providerName, fmt.Errorf("failed to encode request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, internetsearch.DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return internetsearch.Failure(providerName, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("X-API-KEY", apiKey)
	req.Header.Set("Content-Type", "application/json")

	var response SearchResponse
	if err := internetsearch.DoJSON(p.client, logger, providerName, req, &response); err != nil {
		return internetsearch.Failure(providerName, err)
	}

	items := make([]internetsearch.Item, 0, len(response.Organic))
	for _, r := range response.Organic {
		items = append(items, internetsearch.Item{
			Title:   internetsearch.CleanText(r.Title),
			URL:     r.Link,
			Snippet: internetsearch.Snippet(r.Snippet),
			Source:  "serper",
		})
	}

	logger.WithFields(logrus.Fields{
		"provider":     "serper",
		"query":        query,
		"result_count": len(items),
	}).Info("Serper search completed successfully")

	return internetsearch.Success(providerName, items)
}
