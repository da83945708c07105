package unified

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prt-busca/prt-busca/internal/keyring"
	"github.com/prt-busca/prt-busca/internal/tools"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

// InterleavedSearchTool exposes the coordinator as a tool
type InterleavedSearchTool struct {
	coordinator *Coordinator
}

// NewInterleavedSearchTool wraps a coordinator
func NewInterleavedSearchTool(c *Coordinator) *InterleavedSearchTool {
	return &InterleavedSearchTool{coordinator: c}
}

// Definition returns the tool's definition for MCP registration
func (t *InterleavedSearchTool) Definition() mcp.Tool {
	providers := t.coordinator.Providers()
	description := fmt.Sprintf(`Search every configured provider at once and merge the results.

Configured providers: [%s]

Results from all providers that answered are returned together with a de-duplicated URL list.
Providers that fail are reported but never fail the whole search.`, strings.Join(providers, ", "))

	return mcp.NewTool("interleaved_search",
		mcp.WithDescription(description),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query term"),
		),
	)
}

// Execute runs the search
func (t *InterleavedSearchTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("missing or invalid required parameter: query")
	}

	outcome := t.coordinator.Search(ctx, logger, strings.TrimSpace(query))
	return internetsearch.NewToolResultJSON(outcome)
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *InterleavedSearchTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description:    "Search all providers for a market segment",
				Arguments:      map[string]any{"query": "cursos de confeitaria online"},
				ExpectedResult: "Merged results from every provider with a key, plus consolidated_urls",
			},
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "successful_searches is 0",
				Solution: "Check the failures list; set <PROVIDER>_API_KEY (and GOOGLE_CSE_ID for Google).",
			},
		},
		WhenToUse: "Use to collect raw web results for a query across all configured search APIs.",
	}
}

// ProviderStatsTool reports key counts and request counters per provider
type ProviderStatsTool struct {
	pool *keyring.Pool
}

// NewProviderStatsTool creates the stats tool
func NewProviderStatsTool(pool *keyring.Pool) *ProviderStatsTool {
	return &ProviderStatsTool{pool: pool}
}

// ProviderStatus is one row of the stats report
type ProviderStatus struct {
	Provider string `json:"provider"`
	Keys     int    `json:"keys"`
	keyring.ProviderStats
}

// Definition returns the tool's definition for MCP registration
func (t *ProviderStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("search_provider_stats",
		mcp.WithDescription("Show configured search providers, how many API keys each has, and request/success/failure counters since start."),
	)
}

// Execute returns the report
func (t *ProviderStatsTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	return internetsearch.NewToolResultJSON(ProviderReport(t.pool))
}

// ProviderReport lists every configured or used provider, sorted by name
func ProviderReport(pool *keyring.Pool) []ProviderStatus {
	stats := pool.Stats()
	names := map[string]struct{}{}
	for _, name := range pool.Providers() {
		names[name] = struct{}{}
	}
	for name := range stats {
		names[name] = struct{}{}
	}

	report := make([]ProviderStatus, 0, len(names))
	for name := range names {
		report = append(report, ProviderStatus{
			Provider:      name,
			Keys:          pool.Size(name),
			ProviderStats: stats[name],
		})
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Provider < report[j].Provider })
	return report
}
