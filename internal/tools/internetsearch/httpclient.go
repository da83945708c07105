package internetsearch

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/prt-busca/prt-busca/internal/utils/httpclient"
	"golang.org/x/time/rate"
)

const (
	// DefaultInternetSearchRateLimit is the default maximum requests per second per provider
	DefaultInternetSearchRateLimit = 1
	// InternetSearchRateLimitEnvVar is the environment variable for configuring the rate limit
	InternetSearchRateLimitEnvVar = "INTERNET_SEARCH_RATE_LIMIT"
	// DefaultTimeout bounds a single provider request
	DefaultTimeout = 30 * time.Second
	// UserAgent is sent with every provider request
	UserAgent = "prt-busca/1.0"
)

// HTTPClientInterface defines the interface for HTTP clients
type HTTPClientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient implements HTTPClientInterface with rate limiting
type RateLimitedHTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
	mu      sync.Mutex
}

// getInternetSearchRateLimit returns the configured rate limit for search requests
func getInternetSearchRateLimit() float64 {
	if envValue := os.Getenv(InternetSearchRateLimitEnvVar); envValue != "" {
		if value, err := strconv.ParseFloat(envValue, 64); err == nil && value > 0 {
			return value
		}
	}
	return DefaultInternetSearchRateLimit
}

// NewRateLimitedHTTPClient creates a new rate-limited HTTP client
func NewRateLimitedHTTPClient() *RateLimitedHTTPClient {
	return NewRateLimitedHTTPClientWithLimit(getInternetSearchRateLimit())
}

// NewRateLimitedHTTPClientWithLimit creates a rate-limited client with an explicit limit
func NewRateLimitedHTTPClientWithLimit(requestsPerSecond float64) *RateLimitedHTTPClient {
	return WrapRateLimited(httpclient.New(DefaultTimeout, nil), requestsPerSecond)
}

// WrapRateLimited puts a limiter in front of an existing client. Each provider
// gets its own wrapper so one provider's pace never delays another.
func WrapRateLimited(client *http.Client, requestsPerSecond float64) *RateLimitedHTTPClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultInternetSearchRateLimit
	}
	return &RateLimitedHTTPClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1), // Allow burst of 1
	}
}

// Do waits for the limiter, honouring the request context, then sends the request
func (c *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	err := c.limiter.Wait(req.Context())
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return c.client.Do(req)
}
