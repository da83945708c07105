package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// param describes one tool input as seen from the command line
type param struct {
	name        string
	flag        string
	kind        string
	description string
	required    bool
	enum        []string
}

// paramSet is the command line view of a tool's input schema
type paramSet struct {
	byFlag map[string]param
	byName map[string]param
}

func newParamSet(def mcp.Tool) paramSet {
	set := paramSet{
		byFlag: make(map[string]param, len(def.InputSchema.Properties)),
		byName: make(map[string]param, len(def.InputSchema.Properties)),
	}
	for name, raw := range def.InputSchema.Properties {
		p := param{
			name:     name,
			flag:     toFlagName(name),
			required: slices.Contains(def.InputSchema.Required, name),
		}
		if schema, ok := raw.(map[string]any); ok {
			p.kind, _ = schema["type"].(string)
			p.description, _ = schema["description"].(string)
			p.enum = enumValues(schema["enum"])
		}
		set.byFlag[p.flag] = p
		set.byName[name] = p
	}
	return set
}

// sorted returns required parameters first, then the rest, each by name
func (s paramSet) sorted() []param {
	out := make([]param, 0, len(s.byName))
	for _, p := range s.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].required != out[j].required {
			return out[i].required
		}
		return out[i].name < out[j].name
	})
	return out
}

// lookup finds a parameter by flag, falling back to the snake_case spelling
func (s paramSet) lookup(flag string) param {
	if p, ok := s.byFlag[flag]; ok {
		return p
	}
	name := strings.ReplaceAll(flag, "-", "_")
	if p, ok := s.byName[name]; ok {
		return p
	}
	return param{name: name, flag: flag}
}

// parse turns --flag arguments and JSON objects into tool arguments.
// Flags take precedence over JSON keys.
func (s paramSet) parse(args []string) (map[string]any, error) {
	values := make(map[string]any)
	var fromJSON []map[string]any

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "{"):
			var obj map[string]any
			if err := json.Unmarshal([]byte(arg), &obj); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}
			fromJSON = append(fromJSON, obj)

		case strings.HasPrefix(arg, "--"):
			flag, raw, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			p := s.lookup(flag)
			if !hasValue {
				if p.kind == "boolean" {
					values[p.name] = true
					continue
				}
				i++
				if i >= len(args) {
					return nil, fmt.Errorf("flag --%s requires a value", flag)
				}
				raw = args[i]
			}
			v, err := p.coerce(raw)
			if err != nil {
				return nil, err
			}
			values[p.name] = v

		default:
			return nil, fmt.Errorf("unexpected argument: %s (use --key=value flags or pass a JSON object)", arg)
		}
	}

	for _, obj := range fromJSON {
		for k, v := range obj {
			if _, set := values[k]; !set {
				values[k] = v
			}
		}
	}

	for _, p := range s.byName {
		if _, ok := values[p.name]; p.required && !ok {
			return nil, fmt.Errorf("missing required parameter --%s", p.flag)
		}
	}
	return values, nil
}

// coerce converts a raw flag value to the parameter's JSON Schema type
func (p param) coerce(raw string) (any, error) {
	switch p.kind {
	case "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		return nil, fmt.Errorf("--%s expects an integer, got %q", p.flag, raw)
	case "number":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return nil, fmt.Errorf("--%s expects a number, got %q", p.flag, raw)
	case "boolean":
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("--%s expects true or false, got %q", p.flag, raw)
		}
		return b, nil
	case "array":
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr, nil
		}
		return strings.Split(raw, ","), nil
	case "object":
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, fmt.Errorf("--%s expects a JSON object: %w", p.flag, err)
		}
		return obj, nil
	}

	if len(p.enum) > 0 && !slices.Contains(p.enum, raw) {
		return nil, fmt.Errorf("--%s must be one of %s", p.flag, strings.Join(p.enum, ", "))
	}
	return raw, nil
}

func enumValues(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}

// toFlagName converts camelCase or snake_case to kebab-case
func toFlagName(s string) string {
	var out strings.Builder
	for i, r := range strings.ReplaceAll(s, "_", "-") {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				out.WriteByte('-')
			}
			r += 'a' - 'A'
		}
		out.WriteRune(r)
	}
	return out.String()
}
