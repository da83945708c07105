// Package jina wraps the Jina reader. Like Firecrawl it contributes no search
// items; its reader is used to fetch page content during deep navigation.
package jina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

const (
	providerName     = "JINA"
	defaultReaderURL = "https://r.jina.ai/"
	maxReadBytes     = 2 << 20
)

// JinaProvider implements internetsearch.Adapter
type JinaProvider struct {
	creds internetsearch.Credentials
}

// NewJinaProvider creates the provider
func NewJinaProvider(creds internetsearch.Credentials) *JinaProvider {
	return &JinaProvider{creds: creds}
}

// Name returns the provider name
func (p *JinaProvider) Name() string {
	return providerName
}

// Search consumes a key and returns an empty success
func (p *JinaProvider) Search(ctx context.Context, logger *logrus.Logger, query string) internetsearch.ProviderResult {
	if _, ok := p.creds.Next(providerName); !ok {
		return internetsearch.Failure(providerName, internetsearch.ErrNoCredential)
	}

	logger.WithField("provider", "jina").Debug("Jina is reader-only, returning no search items")
	return internetsearch.Success(providerName, nil)
}

// outcomeRecorder is implemented by credential stores that keep statistics
type outcomeRecorder interface {
	RecordSuccess(provider string)
	RecordFailure(provider string)
}

// Reader fetches a page as clean text through r.jina.ai
type Reader struct {
	baseURL string
	client  internetsearch.HTTPClientInterface
	creds   internetsearch.Credentials
	logger  *logrus.Logger
}

// NewReader creates a reader. A nil client gets a rate-limited default.
func NewReader(creds internetsearch.Credentials, client internetsearch.HTTPClientInterface, logger *logrus.Logger) *Reader {
	if client == nil {
		client = internetsearch.NewRateLimitedHTTPClient()
	}
	return &Reader{
		baseURL: defaultReaderURL,
		client:  client,
		creds:   creds,
		logger:  logger,
	}
}

// Read returns the readable text of pageURL. The outcome is recorded against
// the JINA key statistics when the credential store keeps them.
func (r *Reader) Read(ctx context.Context, pageURL string) (string, error) {
	apiKey, ok := r.creds.Next(providerName)
	if !ok {
		return "", internetsearch.ErrNoCredential
	}

	text, err := r.read(ctx, apiKey, pageURL)
	if recorder, ok := r.creds.(outcomeRecorder); ok {
		if err != nil {
			recorder.RecordFailure(providerName)
		} else {
			recorder.RecordSuccess(providerName)
		}
	}
	return text, err
}

func (r *Reader) read(ctx context.Context, apiKey, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, internetsearch.DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(r.baseURL, "/")+"/"+pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", internetsearch.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("jina reader request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read jina response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &internetsearch.StatusError{Provider: providerName, StatusCode: resp.StatusCode}
	}

	return string(body), nil
}
