package google

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

// CSEIDEnvVar names the Custom Search Engine id variable
const CSEIDEnvVar = "GOOGLE_CSE_ID"

// DefaultCount is the number of results requested (the API maximum)
const DefaultCount = 10

// ErrNoSearchEngine is returned when GOOGLE_CSE_ID is missing
var ErrNoSearchEngine = errors.New("google custom search engine id not configured")

// GoogleProvider adapts Google Custom Search to the internetsearch.Adapter interface
type GoogleProvider struct {
	client *GoogleClient
	creds  internetsearch.Credentials
	cx     string
	locale internetsearch.LocaleHint
}

// NewGoogleProvider creates a Google provider. The engine id is read from GOOGLE_CSE_ID.
func NewGoogleProvider(creds internetsearch.Credentials, locale internetsearch.LocaleHint, client internetsearch.HTTPClientInterface) *GoogleProvider {
	return &GoogleProvider{
		client: NewGoogleClient(client),
		creds:  creds,
		cx:     os.Getenv(CSEIDEnvVar),
		locale: locale,
	}
}

// Name returns the provider name
func (p *GoogleProvider) Name() string {
	return providerName
}

// Search executes a web search. A missing key or engine id fails without any request.
func (p *GoogleProvider) Search(ctx context.Context, logger *logrus.Logger, query string) internetsearch.ProviderResult {
	apiKey, ok := p.creds.Next(providerName)
	if !ok {
		return internetsearch.Failure(providerName, internetsearch.ErrNoCredential)
	}
	if p.cx == "" {
		return internetsearch.Failure(providerName, ErrNoSearchEngine)
	}

	ctx, cancel := context.WithTimeout(ctx, internetsearch.DefaultTimeout)
	defer cancel()

	response, err := p.client.Search(ctx, logger, apiKey, p.cx, p.locale.Apply(query), p.locale, DefaultCount)
	if err != nil {
		return internetsearch.Failure(providerName, fmt.Errorf("web search failed: %w", err))
	}

	items := make([]internetsearch.Item, 0, len(response.Items))
	for _, item := range response.Items {
		items = append(items, internetsearch.Item{
			Title:   internetsearch.CleanText(item.Title),
			URL:     item.Link,
			Snippet: internetsearch.Snippet(item.Snippet),
			Source:  "google",
		})
	}

	logger.WithFields(logrus.Fields{
		"provider":     "google",
		"query":        query,
		"result_count": len(items),
	}).Info("Google search completed successfully")

	return internetsearch.Success(providerName, items)
}
