package cli

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchDefinition() mcp.Tool {
	return mcp.NewTool("massive_search",
		mcp.WithString("query", mcp.Required()),
		mcp.WithString("sessionId"),
		mcp.WithString("mode", mcp.Enum("fast", "deep")),
		mcp.WithNumber("max_pages"),
		mcp.WithBoolean("dry_run"),
		mcp.WithArray("domains"),
	)
}

func TestToFlagName(t *testing.T) {
	assert.Equal(t, "max-pages", toFlagName("max_pages"))
	assert.Equal(t, "session-id", toFlagName("sessionId"))
	assert.Equal(t, "query", toFlagName("query"))
}

func TestParamSet_Parse(t *testing.T) {
	set := newParamSet(searchDefinition())

	got, err := set.parse([]string{
		"--query", "padarias",
		"--session-id=s1",
		"--mode=deep",
		"--max-pages", "2.5",
		"--dry-run=false",
		"--domains", "a.com,b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "padarias", got["query"])
	assert.Equal(t, "s1", got["sessionId"])
	assert.Equal(t, "deep", got["mode"])
	assert.Equal(t, 2.5, got["max_pages"])
	assert.Equal(t, false, got["dry_run"])
	assert.Equal(t, []string{"a.com", "b.com"}, got["domains"])
}

func TestParamSet_ParseErrors(t *testing.T) {
	set := newParamSet(searchDefinition())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing required", args: []string{"--mode=fast"}, want: "missing required parameter --query"},
		{name: "enum", args: []string{"--query=x", "--mode=slow"}, want: "must be one of fast, deep"},
		{name: "number", args: []string{"--query=x", "--max-pages=many"}, want: "expects a number"},
		{name: "boolean", args: []string{"--query=x", "--dry-run=maybe"}, want: "expects true or false"},
		{name: "dangling flag", args: []string{"--query"}, want: "requires a value"},
		{name: "bad json", args: []string{"{oops"}, want: "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := set.parse(tt.args)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParamSet_SortedRequiredFirst(t *testing.T) {
	params := newParamSet(searchDefinition()).sorted()
	require.NotEmpty(t, params)
	assert.Equal(t, "query", params[0].name)
	assert.Equal(t, "domains", params[1].name)
}
