package massivesearch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prt-busca/prt-busca/internal/tools"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

// ResultSaver stores a finished result under its session
type ResultSaver interface {
	SaveResult(sessionID string, v any) error
}

// Tool exposes the aggregator over MCP
type Tool struct {
	aggregator *Aggregator
	saver      ResultSaver
}

// NewTool wraps an aggregator. saver may be nil.
func NewTool(a *Aggregator, saver ResultSaver) *Tool {
	return &Tool{aggregator: a, saver: saver}
}

// Definition returns the tool's definition for MCP registration
func (t *Tool) Definition() mcp.Tool {
	limits := t.aggregator.Limits()
	return mcp.NewTool("massive_search",
		mcp.WithDescription(fmt.Sprintf(`Run a massive market search: every configured search API at once, then deep navigation (up to %d pages, %d levels), social content extraction (up to %d pages) and lead extraction.

Stage failures never fail the call; they are reported inside websailor_results, social_results and leads_error. Check statistics.total_sources and the error field.`,
			limits.NavMaxPages, limits.NavDepthLevels, limits.SocialMaxPages)),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session id. Generated when omitted; only [A-Za-z0-9_-] ids are stored on disk."),
		),
		mcp.WithString("segmento",
			mcp.Description("Market segment"),
		),
		mcp.WithString("produto",
			mcp.Description("Product or service"),
		),
		mcp.WithString("publico",
			mcp.Description("Target audience"),
		),
		mcp.WithObject("context",
			mcp.Description("Additional market context as string values, e.g. {\"regiao\": \"sudeste\"}. segmento, produto and publico keys fill the fields above when those are empty."),
		),
	)
}

// Execute runs the massive search
func (t *Tool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	req, err := RequestFromArgs(args)
	if err != nil {
		return nil, err
	}

	result := t.aggregator.Run(ctx, req)

	if t.saver != nil {
		if err := t.saver.SaveResult(result.SessionID, result); err != nil {
			logger.WithError(err).WithField("session_id", result.SessionID).Warn("Failed to save massive search result")
		}
	}

	return internetsearch.NewToolResultJSON(result)
}

// RequestFromArgs builds a request from tool arguments, generating a session
// id when none is given
func RequestFromArgs(args map[string]any) (Request, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return Request{}, fmt.Errorf("missing or invalid required parameter: query")
	}

	req := Request{
		Query:     strings.TrimSpace(query),
		SessionID: stringArg(args, "session_id"),
		Context: SearchContext{
			Segmento: stringArg(args, "segmento"),
			Produto:  stringArg(args, "produto"),
			Publico:  stringArg(args, "publico"),
		},
	}
	if raw, ok := args["context"]; ok && raw != nil {
		object, ok := raw.(map[string]any)
		if !ok {
			return Request{}, fmt.Errorf("invalid parameter: context must be an object")
		}
		values := make(map[string]string, len(object))
		for key, value := range object {
			if value != nil {
				values[key] = fmt.Sprint(value)
			}
		}
		req.Context = req.Context.Merge(values)
	}
	if req.SessionID == "" {
		req.SessionID = NewSessionID()
	}
	return req, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// ProvideExtendedInfo provides detailed usage information for the tool
func (t *Tool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description: "Research a segment with market context",
				Arguments: map[string]any{
					"query":    "confeitaria artesanal São Paulo",
					"segmento": "confeitaria",
					"produto":  "curso online de bolos",
					"publico":  "mulheres 25-45 empreendedoras",
					"context":  map[string]any{"regiao": "sudeste", "canal": "instagram"},
				},
				ExpectedResult: "API results, consolidated URLs, navigation pages, social content, leads and statistics",
			},
		},
		ParameterDetails: map[string]string{
			"session_id": "Results are stored under the session directory; reuse an id to overwrite its stored result",
			"context":    "Free-form key/value context passed to deep navigation alongside segmento, produto and publico",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "websailor_results contains an error",
				Solution: "Deep navigation failed or is disabled; API results and statistics are still valid.",
			},
			{
				Problem:  "statistics.api_sources is 0",
				Solution: "No provider answered. Run search_provider_stats and check the <PROVIDER>_API_KEY variables.",
			},
		},
		WhenToUse:    "Use for broad market research where coverage matters more than latency.",
		WhenNotToUse: "Use interleaved_search when only raw search results are needed.",
	}
}
