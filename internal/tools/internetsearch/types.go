package internetsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrNoCredential is returned when a provider has no key left to use
var ErrNoCredential = errors.New("no API key available")

// Item is one normalised search hit. Fields a provider does not send are
// empty strings, never missing.
type Item struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// ProviderResult is the outcome of one adapter call: either Items or Err.
type ProviderResult struct {
	Provider string `json:"provider"`
	Items    []Item `json:"results"`
	Err      error  `json:"-"`
}

// Success builds a successful result. A nil item slice is normalised to empty.
func Success(provider string, items []Item) ProviderResult {
	if items == nil {
		items = []Item{}
	}
	return ProviderResult{Provider: provider, Items: items}
}

// Failure builds a failed result for the provider
func Failure(provider string, err error) ProviderResult {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return ProviderResult{Provider: provider, Err: err}
}

// OK reports whether the result is a success
func (r ProviderResult) OK() bool {
	return r.Err == nil
}

// Error returns the failure description, or "" for a success
func (r ProviderResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON renders the variant with an explicit success flag
func (r ProviderResult) MarshalJSON() ([]byte, error) {
	type wire struct {
		Success  bool   `json:"success"`
		Provider string `json:"provider"`
		Items    []Item `json:"results"`
		Error    string `json:"error,omitempty"`
	}
	return json.Marshal(wire{
		Success:  r.OK(),
		Provider: r.Provider,
		Items:    r.Items,
		Error:    r.Error(),
	})
}

// UnmarshalJSON restores a result written by MarshalJSON
func (r *ProviderResult) UnmarshalJSON(data []byte) error {
	var wire struct {
		Success  bool   `json:"success"`
		Provider string `json:"provider"`
		Items    []Item `json:"results"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Success {
		*r = Success(wire.Provider, wire.Items)
		return nil
	}
	var err error
	if wire.Error != "" {
		err = errors.New(wire.Error)
	}
	*r = Failure(wire.Provider, err)
	return nil
}

// Adapter is implemented by every search backend
type Adapter interface {
	// Name returns the provider name used for key lookup and statistics
	Name() string

	// Search runs the query. Failures are returned inside the result, never
	// as a panic or a separate error.
	Search(ctx context.Context, logger *logrus.Logger, query string) ProviderResult
}

// Credentials issues API keys for a provider
type Credentials interface {
	Next(provider string) (string, bool)
}

// StatusError is returned when a provider answers with a non-success status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// LocaleHint is appended to queries and sent as region/language parameters
type LocaleHint struct {
	Region   string `yaml:"region" json:"region"`
	Country  string `yaml:"country" json:"country"`
	Language string `yaml:"language" json:"language"`
}

// DefaultLocale targets Brazilian Portuguese results
var DefaultLocale = LocaleHint{Region: "Brasil", Country: "br", Language: "pt"}

// Apply appends the region to the query
func (l LocaleHint) Apply(query string) string {
	if l.Region == "" {
		return query
	}
	return query + " " + l.Region
}
