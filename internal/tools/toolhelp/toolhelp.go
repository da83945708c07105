package toolhelp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prt-busca/prt-busca/internal/registry"
	"github.com/prt-busca/prt-busca/internal/tools"
	"github.com/prt-busca/prt-busca/internal/tools/internetsearch"
	"github.com/sirupsen/logrus"
)

// Response is what tool_help returns for one tool
type Response struct {
	ToolName    string               `json:"tool_name"`
	Description string               `json:"description"`
	InputSchema *mcp.ToolInputSchema `json:"input_schema,omitempty"`
	Extended    *tools.ExtendedHelp  `json:"extended_info,omitempty"`
}

// Tool answers usage questions about the other registered tools
type Tool struct {
	registry *registry.Registry
}

// New binds the help tool to a registry
func New(reg *registry.Registry) *Tool {
	return &Tool{registry: reg}
}

// Definition returns the tool's definition for MCP registration
func (t *Tool) Definition() mcp.Tool {
	names := t.registry.NamesWithExtendedHelp()

	description := "No tools currently provide extended help information."
	if len(names) > 0 {
		description = "Get usage examples and troubleshooting tips for a search tool, e.g. when a search returns nothing."
	}

	return mcp.NewTool("tool_help",
		mcp.WithDescription(description),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for"),
			mcp.Enum(names...),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute returns the help of the named tool
func (t *Tool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	name, ok := args["tool_name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("missing or invalid required parameter: tool_name")
	}

	response, err := t.Lookup(name)
	if err != nil {
		return nil, err
	}
	return internetsearch.NewToolResultJSON(response)
}

// Lookup builds the help response for a registered tool
func (t *Tool) Lookup(name string) (*Response, error) {
	tool, ok := t.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool '%s' not found or disabled, tools with extended help: %s", name, strings.Join(t.registry.NamesWithExtendedHelp(), ", "))
	}

	provider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		return nil, fmt.Errorf("tool '%s' does not provide extended help, tools with extended help: %s", name, strings.Join(t.registry.NamesWithExtendedHelp(), ", "))
	}

	def := tool.Definition()
	response := &Response{
		ToolName:    def.Name,
		Description: def.Description,
		Extended:    provider.ProvideExtendedInfo(),
	}
	if def.InputSchema.Type != "" {
		response.InputSchema = &def.InputSchema
	}
	return response, nil
}
