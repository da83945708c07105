// Package firecrawl registers the Firecrawl extraction backend. Firecrawl has
// no search endpoint wired here: a search succeeds with no items so the key
// pool and statistics still see the provider.
package firecrawl

import (
	"context"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

const providerName = "FIRECRAWL"

// FirecrawlProvider implements internetsearch.Adapter
type FirecrawlProvider struct {
	creds internetsearch.Credentials
}

// NewFirecrawlProvider creates the provider
func NewFirecrawlProvider(creds internetsearch.Credentials) *FirecrawlProvider {
	return &FirecrawlProvider{creds: creds}
}

// Name returns the provider name
func (p *FirecrawlProvider) Name() string {
	return providerName
}

// Search consumes a key and returns an empty success
func (p *FirecrawlProvider) Search(ctx context.Context, logger *logrus.Logger, query string) internetsearch.ProviderResult {
	if _, ok := p.creds.Next(providerName); !ok {
		return internetsearch.Failure(providerName, internetsearch.ErrNoCredential)
	}

	logger.WithField("provider", "firecrawl").Debug("Firecrawl is extraction-only, returning no search items")
	return internetsearch.Success(providerName, nil)
}
