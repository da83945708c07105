package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// ProxyEnvVar routes only prt-busca traffic through a proxy and wins over the standard variables
const ProxyEnvVar = "PRT_BUSCA_PROXY"

// proxyEnvVars in order of preference, following curl and wget
var proxyEnvVars = []string{
	ProxyEnvVar,
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

// LookupFunc reads an environment variable
type LookupFunc func(string) (string, bool)

// New returns a client with the given timeout, sent through the proxy from the
// environment when one is set. logger may be nil.
func New(timeout time.Duration, logger *logrus.Logger) *http.Client {
	return newWithLookup(timeout, logger, os.LookupEnv)
}

func newWithLookup(timeout time.Duration, logger *logrus.Logger, lookup LookupFunc) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	proxy, err := ProxyURL(lookup)
	switch {
	case err != nil:
		if logger != nil {
			logger.WithError(err).Warn("Ignoring invalid proxy setting, using direct connection")
		}
	case proxy != nil:
		transport.Proxy = http.ProxyURL(proxy)
		if logger != nil {
			logger.WithField("proxy_url", Redact(proxy)).Debug("HTTP client configured with proxy")
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// ProxyURL returns the first proxy set in the environment, or nil when none is.
// Unexpanded placeholders such as "$HTTPS_PROXY" are skipped.
func ProxyURL(lookup LookupFunc) (*url.URL, error) {
	for _, name := range proxyEnvVars {
		value, ok := lookup(name)
		if !ok || value == "" || value == "$"+name || value == "$HTTPS_PROXY" || value == "$HTTP_PROXY" {
			continue
		}

		parsed, err := url.Parse(value)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("%s is not a valid proxy URL", name)
		}
		return parsed, nil
	}
	return nil, nil
}

// Redact hides proxy credentials for logging
func Redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	if clean.User != nil {
		clean.User = url.UserPassword("***", "***")
	}
	return clean.String()
}
