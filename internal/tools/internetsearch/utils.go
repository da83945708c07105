package internetsearch

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/microcosm-cc/bluemonday"
)

// SnippetLimit is the maximum snippet length in runes
const SnippetLimit = 300

var strictPolicy = bluemonday.StrictPolicy()

// NewToolResultJSON creates a new tool result with JSON content
func NewToolResultJSON(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// CleanText strips markup from provider text and collapses whitespace
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	if strings.ContainsAny(s, "<&") {
		s = strictPolicy.Sanitize(s)
		s = unescapeEntities(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// Snippet cleans s and truncates it to SnippetLimit runes
func Snippet(s string) string {
	return Truncate(CleanText(s), SnippetLimit)
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#34;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// bluemonday escapes what it keeps; callers want plain text
func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}
