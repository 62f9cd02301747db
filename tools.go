package llmprovider

import (
	"errors"
	"fmt"
)

// ToolTypeFunction is the only tool type the canonical format knows.
const ToolTypeFunction = "function"

// FunctionDetails represents the function definition within a tool (OpenAI format).
// This matches the universal standard used by OpenAI-compatible vendors and
// converts cleanly to Anthropic, Gemini, Cohere and Ollama.
type FunctionDetails struct {
	Name        string         `json:"name"`                  // Function name (required)
	Description string         `json:"description,omitempty"` // What the function does
	Parameters  map[string]any `json:"parameters"`            // JSON Schema for parameters
}

// Tool represents a function tool in the canonical interchange shape
// {type: "function", function: {name, description, parameters}}:
//   - OpenAI family: sent as is
//   - Anthropic/Bedrock: flattened, parameters → input_schema
//   - Gemini: flattened into functionDeclarations with an upper-cased schema
type Tool struct {
	Type     string          `json:"type"`     // Always "function" for function tools
	Function FunctionDetails `json:"function"` // Function definition
}

// NewFunctionTool builds a validated function tool.
func NewFunctionTool(name, description string, parameters map[string]any) (*Tool, error) {
	if parameters == nil {
		parameters = ObjectSchema(nil)
	}
	tool := &Tool{
		Type: ToolTypeFunction,
		Function: FunctionDetails{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
	if err := tool.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tool %q: %w", name, err)
	}
	return tool, nil
}

// ObjectSchema returns a JSON schema object with the given properties and required names.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Validate checks if the Tool is properly configured
func (t *Tool) Validate() error {
	if t.Type == "" {
		return errors.New("tool type is required")
	}

	if t.Type != ToolTypeFunction {
		return fmt.Errorf("unsupported tool type: %s (only 'function' is supported)", t.Type)
	}

	if t.Function.Name == "" {
		return errors.New("function name is required")
	}

	if t.Function.Parameters == nil {
		return errors.New("function parameters are required")
	}

	// Validate that parameters is a valid JSON schema object
	if schemaType, ok := t.Function.Parameters["type"].(string); !ok || schemaType != "object" {
		return errors.New("function parameters must be a JSON schema with type 'object'")
	}

	return nil
}

// RequiredParameters returns the schema's "required" list whether it was
// built in Go ([]string) or decoded from JSON ([]any).
func (t *Tool) RequiredParameters() []string {
	switch required := t.Function.Parameters["required"].(type) {
	case []string:
		return required
	case []any:
		out := make([]string, 0, len(required))
		for _, v := range required {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
