// Package cli runs registered tools and renders search results on the
// terminal. Tools are invoked in-process through the registry.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prt-busca/prt-busca/internal/registry"
	"github.com/prt-busca/prt-busca/internal/tools"
	"github.com/sirupsen/logrus"
)

// OutputFormat selects text or JSON rendering
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an --output value
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (expected text or json)", s)
}

// Runner executes commands against a tool registry
type Runner struct {
	registry *registry.Registry
	logger   *logrus.Logger
	output   OutputFormat
	out      io.Writer
}

// NewRunner creates a Runner writing to out
func NewRunner(reg *registry.Registry, logger *logrus.Logger, output OutputFormat, out io.Writer) *Runner {
	return &Runner{registry: reg, logger: logger, output: output, out: out}
}

type toolSummary struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ExtendedHelp bool   `json:"extended_help"`
}

// ListTools prints every registered tool with the first line of its description
func (r *Runner) ListTools() error {
	var summaries []toolSummary
	for _, tool := range r.registry.Tools() {
		def := tool.Definition()
		_, documented := tool.(tools.ExtendedHelpProvider)
		summaries = append(summaries, toolSummary{
			Name:         def.Name,
			Description:  firstLine(def.Description),
			ExtendedHelp: documented,
		})
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, summaries)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\n", bold(s.Name), s.Description)
	}
	return w.Flush()
}

// HelpTool prints the parameters of one tool and its examples, if it has any
func (r *Runner) HelpTool(name string) error {
	tool, ok := r.resolveTool(name)
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}
	def := tool.Definition()

	var extended *tools.ExtendedHelp
	if provider, ok := tool.(tools.ExtendedHelpProvider); ok {
		extended = provider.ProvideExtendedInfo()
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, struct {
			Tool     mcp.Tool            `json:"tool"`
			Extended *tools.ExtendedHelp `json:"extended_info,omitempty"`
		}{def, extended})
	}

	fmt.Fprintf(r.out, "%s %s\n\n", bold("Tool:"), def.Name)
	if def.Description != "" {
		fmt.Fprintf(r.out, "%s\n\n", def.Description)
	}

	params := newParamSet(def).sorted()
	if len(params) == 0 {
		fmt.Fprintln(r.out, "No parameters.")
	} else {
		fmt.Fprintln(r.out, bold("Parameters:"))
		w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
		for _, p := range params {
			var notes []string
			if p.required {
				notes = append(notes, "(required)")
			}
			if len(p.enum) > 0 {
				notes = append(notes, "["+strings.Join(p.enum, "|")+"]")
			}
			fmt.Fprintf(w, "  --%s\t%s\t%s %s\n", p.flag, p.kind, firstLine(p.description), strings.Join(notes, " "))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if extended == nil {
		return nil
	}
	if extended.WhenToUse != "" {
		fmt.Fprintf(r.out, "\n%s %s\n", bold("When to use:"), extended.WhenToUse)
	}
	for _, ex := range extended.Examples {
		args, _ := json.Marshal(ex.Arguments)
		fmt.Fprintf(r.out, "\n%s %s\n  prt-busca tools run %s '%s'\n", blue("Example:"), ex.Description, def.Name, args)
	}
	for _, tip := range extended.Troubleshooting {
		fmt.Fprintf(r.out, "\n%s %s\n  %s\n", yellow("Problem:"), tip.Problem, tip.Solution)
	}
	return nil
}

// RunTool executes a tool. args are --key=value or --key value flags, bare
// --flag for booleans, and JSON objects whose keys fill in what flags leave unset.
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	tool, ok := r.resolveTool(name)
	if !ok {
		return fmt.Errorf("unknown tool: %s (run 'prt-busca tools list' to see available tools)", name)
	}

	params, err := newParamSet(tool.Definition()).parse(args)
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}

	r.logger.WithField("tool", name).Debug("Running tool from the command line")
	result, err := tool.Execute(ctx, r.logger, r.registry.Cache(), params)
	if err != nil {
		return fmt.Errorf("tool error: %w", err)
	}
	return r.renderResult(result)
}

func (r *Runner) renderResult(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}
	if r.output == OutputJSON {
		return writeJSON(r.out, result)
	}

	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			fmt.Fprintln(r.out, text.Text)
			continue
		}
		if err := writeJSON(r.out, content); err != nil {
			return err
		}
	}

	if result.IsError {
		return fmt.Errorf("tool returned an error")
	}
	return nil
}

// resolveTool accepts kebab-case names for snake_case tools
func (r *Runner) resolveTool(name string) (tools.Tool, bool) {
	if tool, ok := r.registry.Get(name); ok {
		return tool, true
	}
	return r.registry.Get(strings.ReplaceAll(name, "-", "_"))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
