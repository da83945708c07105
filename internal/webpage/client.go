// Package webpage fetches HTML pages and turns them into compact text for
// the navigation and social stages.
package webpage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prt-busca/prt-busca/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout for page requests
	DefaultTimeout = 15 * time.Second

	// UserAgent for page requests
	UserAgent = "Mozilla/5.0 (compatible; prt-busca/1.0)"

	// MaxContentSize to prevent memory issues (5MB)
	MaxContentSize = 5 * 1024 * 1024
)

// ErrNotHTML is returned for responses that are not HTML documents
var ErrNotHTML = errors.New("response is not HTML")

// HTTPDoer is the part of *http.Client the fetcher uses
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Page is a fetched HTML document
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	HTML        string
	FetchedAt   time.Time
}

// Client fetches web pages
type Client struct {
	httpClient HTTPDoer
	userAgent  string
}

// NewClient creates a proxy-aware client with redirect limits
func NewClient(logger *logrus.Logger) *Client {
	hc := httpclient.New(DefaultTimeout, logger)
	hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("too many redirects")
		}
		// Preserve User-Agent on redirects
		req.Header.Set("User-Agent", UserAgent)
		return nil
	}
	return NewClientWithDoer(hc)
}

// NewClientWithDoer creates a client over any HTTPDoer
func NewClientWithDoer(doer HTTPDoer) *Client {
	return &Client{httpClient: doer, userAgent: UserAgent}
}

// Fetch downloads an HTML page
func (c *Client) Fetch(ctx context.Context, logger *logrus.Logger, targetURL string) (*Page, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %q (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	contentType := resp.Header.Get("Content-Type")
	logger.WithFields(logrus.Fields{
		"url":          targetURL,
		"status_code":  resp.StatusCode,
		"content_type": contentType,
	}).Debug("Received HTTP response")

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: HTTP %d", targetURL, resp.StatusCode)
	}
	if contentType != "" && !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("fetching %s (%s): %w", targetURL, contentType, ErrNotHTML)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         targetURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        string(body),
		FetchedAt:   time.Now().UTC(),
	}, nil
}
