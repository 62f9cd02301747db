package gemini

import (
	"strings"

	llmprovider "github.com/starhound/null-llm-go"
)

// convertToContents lowers the conversation to Gemini turns. Assistant tool
// calls become functionCall parts and tool results become functionResponse
// parts named after the call they answer; a result whose call is not in the
// history is sent as plain text.
func convertToContents(messages []llmprovider.Message) []Content {
	names := make(map[string]string)
	contents := make([]Content, 0, len(messages))

	appendPart := func(role string, part Part) {
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, part)
			return
		}
		contents = append(contents, Content{Role: role, Parts: []Part{part}})
	}

	for _, msg := range messages {
		switch msg.Role {
		case llmprovider.RoleAssistant:
			if msg.Content != "" {
				appendPart("model", Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				names[call.ID] = call.Name
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				appendPart("model", Part{FunctionCall: &FunctionCall{Name: call.Name, Args: args}})
			}

		case llmprovider.RoleTool:
			name, ok := names[msg.ToolCallID]
			if !ok {
				appendPart("user", Part{Text: "Tool Result: " + msg.Content})
				continue
			}
			appendPart("user", Part{FunctionResponse: &FunctionResponse{
				Name:     name,
				Response: map[string]any{"content": msg.Content},
			}})

		default:
			if msg.Content != "" {
				appendPart("user", Part{Text: msg.Content})
			}
		}
	}
	return contents
}

// convertTools maps tools to function declarations.
func convertTools(tools []llmprovider.Tool) []Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  convertSchema(tool.Function.Parameters),
		})
	}
	return []Tool{{FunctionDeclarations: decls}}
}

// convertSchema rewrites a JSON schema into the OpenAPI subset Gemini
// accepts: type names are upper case, a nullable union such as
// ["string","null"] becomes one type plus nullable, oneOf is sent as anyOf,
// allOf branches are merged, and additionalProperties is dropped at every
// depth.
func convertSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	out := make(map[string]any, len(schema))
	var merged []map[string]any
	for key, value := range schema {
		switch key {
		case "type":
			typ, nullable := schemaType(value)
			if typ != "" {
				out[key] = typ
			}
			if nullable {
				out["nullable"] = true
			}
		case "properties":
			props, ok := value.(map[string]any)
			if !ok {
				out[key] = value
				continue
			}
			converted := make(map[string]any, len(props))
			for name, prop := range props {
				if sub, ok := prop.(map[string]any); ok {
					converted[name] = convertSchema(sub)
				} else {
					converted[name] = prop
				}
			}
			out[key] = converted
		case "items":
			if sub, ok := value.(map[string]any); ok {
				out[key] = convertSchema(sub)
			} else {
				out[key] = value
			}
		case "anyOf", "oneOf":
			branches, nullable := convertBranches(value)
			if nullable {
				out["nullable"] = true
			}
			if len(branches) == 1 {
				merged = append(merged, branches[0])
			} else if len(branches) > 1 {
				out["anyOf"] = branches
			}
		case "allOf":
			branches, _ := convertBranches(value)
			merged = append(merged, branches...)
		case "additionalProperties", "$schema":
			// rejected by the API
		default:
			out[key] = value
		}
	}
	for _, branch := range merged {
		mergeSchema(out, branch)
	}
	return out
}

// schemaType returns the upper-cased type of a "type" value, which may be a
// single name or a list. "null" in a list is reported as nullable.
func schemaType(value any) (string, bool) {
	var names []string
	switch v := value.(type) {
	case string:
		names = []string{v}
	case []string:
		names = v
	case []any:
		for _, n := range v {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
	}
	typ, nullable := "", false
	for _, name := range names {
		if name == "null" {
			nullable = true
		} else if typ == "" {
			typ = strings.ToUpper(name)
		}
	}
	return typ, nullable
}

// convertBranches converts each subschema of a union. A branch that is only
// {"type":"null"} is dropped and reported as nullable.
func convertBranches(value any) ([]map[string]any, bool) {
	var raw []map[string]any
	switch v := value.(type) {
	case []map[string]any:
		raw = v
	case []any:
		for _, b := range v {
			if m, ok := b.(map[string]any); ok {
				raw = append(raw, m)
			}
		}
	}
	branches := make([]map[string]any, 0, len(raw))
	nullable := false
	for _, b := range raw {
		if t, ok := b["type"].(string); ok && t == "null" && len(b) == 1 {
			nullable = true
			continue
		}
		branches = append(branches, convertSchema(b))
	}
	return branches, nullable
}

// mergeSchema folds an allOf branch into dst: properties and required are
// unioned, anything else is kept from whichever side set it first.
func mergeSchema(dst, src map[string]any) {
	for k, v := range src {
		switch k {
		case "properties":
			props, _ := dst[k].(map[string]any)
			if props == nil {
				props = make(map[string]any)
			}
			if sp, ok := v.(map[string]any); ok {
				for name, prop := range sp {
					props[name] = prop
				}
			}
			dst[k] = props
		case "required":
			if required := appendRequired(dst[k], v); len(required) > 0 {
				dst[k] = required
			}
		default:
			if _, set := dst[k]; !set {
				dst[k] = v
			}
		}
	}
}

func appendRequired(dst, src any) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range []any{dst, src} {
		var names []string
		switch v := list.(type) {
		case []string:
			names = v
		case []any:
			for _, n := range v {
				if s, ok := n.(string); ok {
					names = append(names, s)
				}
			}
		}
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}
