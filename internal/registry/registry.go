// Package registry holds the tools served over MCP and from the command line.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/prt-busca/prt-busca/internal/tools"
	"github.com/sirupsen/logrus"
)

// DisabledToolsEnvVar lists tool names that must not be registered
const DisabledToolsEnvVar = "DISABLED_TOOLS"

// Registry maps tool names to implementations. Build one per process with New.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]tools.Tool
	disabled map[string]bool
	logger   *logrus.Logger
	cache    *sync.Map
}

// New creates a registry. disabled is a comma separated list of tool names,
// usually the value of DISABLED_TOOLS.
func New(logger *logrus.Logger, disabled string) *Registry {
	r := &Registry{
		tools:    make(map[string]tools.Tool),
		disabled: parseDisabledTools(disabled),
		logger:   logger,
		cache:    &sync.Map{},
	}
	if len(r.disabled) > 0 {
		logger.WithField("count", len(r.disabled)).Debug("Parsed disabled tools from environment")
	}
	return r
}

func parseDisabledTools(value string) map[string]bool {
	disabled := make(map[string]bool)
	for tool := range strings.SplitSeq(value, ",") {
		if tool = normaliseToolName(tool); tool != "" {
			disabled[tool] = true
		}
	}
	return disabled
}

// normaliseToolName lowercases and maps hyphens to underscores
func normaliseToolName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
}

// Register adds a tool unless it is disabled. It reports whether the tool was added.
func (r *Registry) Register(tool tools.Tool) bool {
	name := tool.Definition().Name
	if r.disabled[normaliseToolName(name)] {
		r.logger.WithField("tool", name).Debug("Tool disabled via environment variable")
		return false
	}

	r.mu.Lock()
	r.tools[name] = tool
	r.mu.Unlock()

	r.logger.WithField("tool", name).Debug("Tool successfully registered")
	return true
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the registered tools sorted by name
func (r *Registry) Tools() []tools.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.namesLocked()
	out := make([]tools.Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns a sorted list of registered tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// NamesWithExtendedHelp returns the sorted names of tools that provide extended help
func (r *Registry) NamesWithExtendedHelp() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, tool := range r.tools {
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Logger returns the shared logger
func (r *Registry) Logger() *logrus.Logger {
	return r.logger
}

// Cache returns the cache shared by tool executions
func (r *Registry) Cache() *sync.Map {
	return r.cache
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
