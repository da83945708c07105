package exa

import (
	"context"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

const (
	providerName = "EXA"

	// DefaultCount is the number of results requested
	DefaultCount = 10

	// marketHint narrows neural search towards market content
	marketHint = "mercado"
)

// ExaProvider implements internetsearch.Adapter
type ExaProvider struct {
	client *ExaClient
	creds  internetsearch.Credentials
	locale internetsearch.LocaleHint
}

// NewExaProvider creates an Exa provider. A nil client gets a rate-limited default.
func NewExaProvider(creds internetsearch.Credentials, locale internetsearch.LocaleHint, client internetsearch.HTTPClientInterface) *ExaProvider {
	if client == nil {
		client = internetsearch.NewRateLimitedHTTPClient()
	}
	return &ExaProvider{
		client: &ExaClient{baseURL: defaultExaBaseURL, client: client},
		creds:  creds,
		locale: locale,
	}
}

// Name returns the provider name
func (p *ExaProvider) Name() string {
	return providerName
}

// Search runs a neural search. Page text is cut down to a snippet.
func (p *ExaProvider) Search(ctx context.Context, logger *logrus.Logger, query string) internetsearch.ProviderResult {
	apiKey, ok := p.creds.Next(providerName)
	if !ok {
		return internetsearch.Failure(providerName, internetsearch.ErrNoCredential)
	}

	ctx, cancel := context.WithTimeout(ctx, internetsearch.DefaultTimeout)
	defer cancel()

	response, err := p.client.Search(ctx, logger, apiKey, p.locale.Apply(query)+" "+marketHint, DefaultCount)
	if err != nil {
		return internetsearch.Failure(providerName, err)
	}

	items := make([]internetsearch.Item, 0, len(response.Results))
	for _, r := range response.Results {
		items = append(items, internetsearch.Item{
			Title:   internetsearch.CleanText(r.Title),
			URL:     r.URL,
			Snippet: internetsearch.Snippet(r.Text),
			Source:  "exa",
		})
	}

	logger.WithFields(logrus.Fields{
		"provider":     "exa",
		"query":        query,
		"result_count": len(items),
	}).Info("Exa search completed successfully")

	return internetsearch.Success(providerName, items)
}
