// Package keyring holds the per-provider API key pools and hands keys out
// round-robin. It also owns the process-wide provider request counters, which
// share the pool's lock.
package keyring

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// KnownProviders is the default provider set read from the environment
var KnownProviders = []string{"SERPER", "GOOGLE", "EXA", "FIRECRAWL", "JINA"}

// ProviderStats counts what has been issued and observed for one provider
type ProviderStats struct {
	Requests  int `json:"requests"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Pool is a set of credential pools keyed by provider name.
// The zero value is not usable; build one with New or LoadFromEnv.
type Pool struct {
	mu      sync.Mutex
	keys    map[string][]string
	cursors map[string]int
	stats   map[string]*ProviderStats
}

// New creates a pool from an explicit provider -> keys map. Providers with
// no keys are dropped.
func New(keys map[string][]string) *Pool {
	p := &Pool{
		keys:    make(map[string][]string, len(keys)),
		cursors: make(map[string]int, len(keys)),
		stats:   make(map[string]*ProviderStats),
	}
	for provider, list := range keys {
		cleaned := make([]string, 0, len(list))
		for _, k := range list {
			if k = strings.TrimSpace(k); k != "" {
				cleaned = append(cleaned, k)
			}
		}
		if len(cleaned) == 0 {
			continue
		}
		name := normaliseProvider(provider)
		p.keys[name] = cleaned
		p.cursors[name] = 0
	}
	return p
}

// LoadFromEnv reads <PROVIDER>_API_KEY followed by <PROVIDER>_API_KEY_1,
// <PROVIDER>_API_KEY_2, ... stopping at the first missing suffix.
// A nil lookup uses os.LookupEnv. With no providers given, KnownProviders is used.
func LoadFromEnv(lookup func(string) (string, bool), providers ...string) *Pool {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if len(providers) == 0 {
		providers = KnownProviders
	}

	keys := make(map[string][]string, len(providers))
	for _, provider := range providers {
		name := normaliseProvider(provider)
		var list []string

		if v, ok := lookup(name + "_API_KEY"); ok && strings.TrimSpace(v) != "" {
			list = append(list, v)
		}
		for i := 1; ; i++ {
			v, ok := lookup(fmt.Sprintf("%s_API_KEY_%d", name, i))
			if !ok || strings.TrimSpace(v) == "" {
				break
			}
			list = append(list, v)
		}

		if len(list) > 0 {
			keys[name] = list
		}
	}
	return New(keys)
}

// Next returns the key at the provider's cursor and advances the cursor.
// ok is false when the provider has no keys; that is a disabled provider,
// not an error.
func (p *Pool) Next(provider string) (string, bool) {
	name := normaliseProvider(provider)

	p.mu.Lock()
	defer p.mu.Unlock()

	keys := p.keys[name]
	if len(keys) == 0 {
		return "", false
	}

	idx := p.cursors[name] % len(keys)
	p.cursors[name] = (idx + 1) % len(keys)
	p.statsLocked(name).Requests++

	return keys[idx], true
}

// Has reports whether the provider has at least one key
func (p *Pool) Has(provider string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys[normaliseProvider(provider)]) > 0
}

// Size returns the number of keys configured for the provider
func (p *Pool) Size(provider string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys[normaliseProvider(provider)])
}

// Providers returns the configured provider names, sorted
func (p *Pool) Providers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.keys))
	for name := range p.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TotalKeys returns the number of keys across all providers
func (p *Pool) TotalKeys() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, keys := range p.keys {
		total += len(keys)
	}
	return total
}

// RecordSuccess counts a successful search for the provider
func (p *Pool) RecordSuccess(provider string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statsLocked(normaliseProvider(provider)).Successes++
}

// RecordFailure counts a failed search for the provider
func (p *Pool) RecordFailure(provider string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statsLocked(normaliseProvider(provider)).Failures++
}

// Stats returns a copy of the counters
func (p *Pool) Stats() map[string]ProviderStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]ProviderStats, len(p.stats))
	for name, s := range p.stats {
		out[name] = *s
	}
	return out
}

func (p *Pool) statsLocked(name string) *ProviderStats {
	s, ok := p.stats[name]
	if !ok {
		s = &ProviderStats{}
		p.stats[name] = s
	}
	return s
}

func normaliseProvider(provider string) string {
	return strings.ToUpper(strings.TrimSpace(provider))
}
