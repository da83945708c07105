package unified

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

// KeyPool is the part of the key store the coordinator needs
type KeyPool interface {
	Has(provider string) bool
	RecordSuccess(provider string)
	RecordFailure(provider string)
}

// Outcome is the merged result of one interleaved search
type Outcome struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	// AllResults holds successful provider results in completion order
	AllResults       []internetsearch.ProviderResult `json:"all_results"`
	Successful       int                             `json:"successful_searches"`
	Failed           int                             `json:"failed_searches"`
	ConsolidatedURLs []string                        `json:"consolidated_urls"`
	Failures         []internetsearch.ProviderResult `json:"failures,omitempty"`
}

// Items returns every item across the successful results, in result order
func (o *Outcome) Items() []internetsearch.Item {
	var items []internetsearch.Item
	for _, r := range o.AllResults {
		items = append(items, r.Items...)
	}
	return items
}

// Coordinator fans a query out to every credentialed provider and merges the answers
type Coordinator struct {
	adapters []internetsearch.Adapter
	pool     KeyPool
}

// NewCoordinator creates a coordinator over the given adapters
func NewCoordinator(pool KeyPool, adapters ...internetsearch.Adapter) *Coordinator {
	return &Coordinator{
		adapters: adapters,
		pool:     pool,
	}
}

// Providers returns the names of adapters that have at least one key
func (c *Coordinator) Providers() []string {
	names := make([]string, 0, len(c.adapters))
	for _, a := range c.available() {
		names = append(names, a.Name())
	}
	return names
}

func (c *Coordinator) available() []internetsearch.Adapter {
	selected := make([]internetsearch.Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		if c.pool.Has(a.Name()) {
			selected = append(selected, a)
		}
	}
	return selected
}

// Search runs the query against every available provider concurrently.
// Providers without keys are skipped and not counted. One provider failing or
// timing out never cancels the others, and a batch where everything failed is
// still a valid outcome.
func (c *Coordinator) Search(ctx context.Context, logger *logrus.Logger, query string) *Outcome {
	outcome := &Outcome{
		Query:            query,
		Timestamp:        time.Now(),
		AllResults:       []internetsearch.ProviderResult{},
		ConsolidatedURLs: []string{},
	}

	selected := c.available()
	logger.WithFields(logrus.Fields{
		"query":     query,
		"providers": len(selected),
	}).Info("Starting interleaved search")

	if len(selected) == 0 {
		return outcome
	}

	results := make(chan internetsearch.ProviderResult, len(selected))
	var wg sync.WaitGroup
	for _, adapter := range selected {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- runAdapter(ctx, logger, adapter, query)
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]struct{})
	for result := range results {
		if !result.OK() {
			logger.WithFields(logrus.Fields{
				"provider": result.Provider,
				"error":    result.Error(),
			}).Warn("Search provider failed")
			outcome.Failed++
			outcome.Failures = append(outcome.Failures, result)
			c.pool.RecordFailure(result.Provider)
			continue
		}

		outcome.Successful++
		outcome.AllResults = append(outcome.AllResults, result)
		c.pool.RecordSuccess(result.Provider)

		for _, item := range result.Items {
			if item.URL == "" {
				continue
			}
			if _, dup := seen[item.URL]; dup {
				continue
			}
			seen[item.URL] = struct{}{}
			outcome.ConsolidatedURLs = append(outcome.ConsolidatedURLs, item.URL)
		}
	}

	logger.WithFields(logrus.Fields{
		"query":      query,
		"successful": outcome.Successful,
		"failed":     outcome.Failed,
		"urls":       len(outcome.ConsolidatedURLs),
	}).Info("Interleaved search completed")

	return outcome
}

// runAdapter turns a panicking adapter into a failure result
func runAdapter(ctx context.Context, logger *logrus.Logger, adapter internetsearch.Adapter, query string) (result internetsearch.ProviderResult) {
	name := adapter.Name()
	defer func() {
		if r := recover(); r != nil {
			result = internetsearch.Failure(name, fmt.Errorf("provider panicked: %v", r))
		}
	}()

	result = adapter.Search(ctx, logger, query)
	if result.Provider == "" {
		result.Provider = name
	}
	return result
}
