package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prt-busca/prt-busca/internal/leads"
	"github.com/prt-busca/prt-busca/internal/massivesearch"
	"github.com/prt-busca/prt-busca/internal/registry"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch/unified"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type echoTool struct{}

func (echoTool) Definition() mcp.Tool {
	return mcp.NewTool("echo_args",
		mcp.WithDescription("Echo arguments\nsecond line"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query")),
		mcp.WithNumber("max_pages", mcp.Description("Page limit")),
		mcp.WithBoolean("verbose", mcp.Description("Verbose")),
	)
}

func (echoTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	data, _ := json.Marshal(args)
	return mcp.NewToolResultText(string(data)), nil
}

func newRunner(t *testing.T, output OutputFormat) (*Runner, *bytes.Buffer) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	reg := registry.New(logger, "")
	reg.Register(echoTool{})
	buf := &bytes.Buffer{}
	return NewRunner(reg, logger, output, buf), buf
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, OutputJSON, f)

	f, err = ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, OutputText, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestRunner_ListAndHelp(t *testing.T) {
	r, buf := newRunner(t, OutputText)
	require.NoError(t, r.ListTools())
	assert.Contains(t, buf.String(), "echo_args")
	assert.NotContains(t, buf.String(), "second line")

	buf.Reset()
	require.NoError(t, r.HelpTool("echo-args"))
	out := buf.String()
	assert.Contains(t, out, "--query")
	assert.Contains(t, out, "(required)")
	assert.Contains(t, out, "--max-pages")

	assert.Error(t, r.HelpTool("nope"))
}

func TestRunner_RunToolParsesFlags(t *testing.T) {
	r, buf := newRunner(t, OutputText)
	require.NoError(t, r.RunTool(context.Background(), "echo_args",
		[]string{"--query=doces", "--max-pages", "5", "--verbose", `{"query":"ignored","extra":"x"}`}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "doces", got["query"])
	assert.EqualValues(t, 5, got["max_pages"])
	assert.Equal(t, true, got["verbose"])
	assert.Equal(t, "x", got["extra"])

	assert.Error(t, r.RunTool(context.Background(), "echo_args", []string{"positional"}))
	assert.Error(t, r.RunTool(context.Background(), "missing", nil))
}

func sampleResult() *massivesearch.Result {
	return &massivesearch.Result{
		Query:            "doces",
		SessionID:        "s1",
		ConsolidatedURLs: []string{"https://a.example.com"},
		WebsailorResults: massivesearch.Failed[massivesearch.NavigationResult](errors.New("navigator not configured")),
		LeadsExtracted: []leads.Lead{
			{Name: "Doceria A", Email: "contato@a.example.com", Domain: "a.example.com"},
			{Name: "Doceria C", Instagram: "doceriac"},
		},
		Statistics: massivesearch.Statistics{APISources: 2, SocialPosts: 1, TotalSources: 3, LeadsCount: 2, SearchDuration: 1.234},
		Stage:      massivesearch.StageFinalized,
	}
}

func TestRunner_RenderMassiveText(t *testing.T) {
	r, buf := newRunner(t, OutputText)
	require.NoError(t, r.RenderMassive(sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "Massive search: doces")
	assert.Contains(t, out, "(navigator not configured)")
	assert.Contains(t, out, "Total sources")
	assert.Contains(t, out, "1.23s")
	assert.Contains(t, out, "https://a.example.com")
	assert.Contains(t, out, "contato@a.example.com")
	assert.Contains(t, out, "@doceriac")
	assert.NotContains(t, out, "error:")
}

func TestRunner_RenderMassiveJSON(t *testing.T) {
	r, buf := newRunner(t, OutputJSON)
	require.NoError(t, r.RenderMassive(sampleResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "doces", got["query"])
	assert.Equal(t, map[string]any{"error": "navigator not configured"}, got["websailor_results"])
}

func TestRunner_RenderOutcome(t *testing.T) {
	r, buf := newRunner(t, OutputText)
	outcome := &unified.Outcome{
		Query:     "doces",
		Timestamp: time.Now(),
		AllResults: []internetsearch.ProviderResult{
			internetsearch.Success("SERPER", []internetsearch.Item{{Title: "A", URL: "https://a.example.com"}}),
		},
		Successful: 1,
		Failed:     1,
		Failures:   []internetsearch.ProviderResult{internetsearch.Failure("EXA", errors.New("HTTP 401"))},
	}
	require.NoError(t, r.RenderOutcome(outcome))

	out := buf.String()
	assert.Contains(t, out, "1 ok, 1 failed")
	assert.Contains(t, out, "SERPER")
	assert.Contains(t, out, "failed EXA: HTTP 401")
}

func TestRunner_RenderProviders(t *testing.T) {
	r, buf := newRunner(t, OutputText)
	require.NoError(t, r.RenderProviders(nil))
	assert.Contains(t, buf.String(), "No search providers configured")

	buf.Reset()
	require.NoError(t, r.RenderProviders([]unified.ProviderStatus{{Provider: "SERPER", Keys: 2}}))
	assert.Contains(t, buf.String(), "PROVIDER")
	assert.Contains(t, buf.String(), "SERPER")
}
