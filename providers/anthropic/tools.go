package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	llmprovider "github.com/starhound/null-llm-go"
)

// convertToolsToAnthropicTools converts canonical tools to Anthropic custom tools.
func convertToolsToAnthropicTools(tools []llmprovider.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for i := range tools {
		tool := &tools[i]
		if err := tool.Validate(); err != nil {
			return nil, fmt.Errorf("%w: tool %d (%s): %v", llmprovider.ErrInvalidRequest, i, tool.Function.Name, err)
		}
		result = append(result, convertCustomTool(tool))
	}
	return result, nil
}

// convertCustomTool converts OpenAI format (function.parameters) to
// Anthropic format (input_schema).
//
// Anthropic's schema param wants:
//   - Properties: just the properties object (not the full schema)
//   - Required: the required list
//   - ExtraFields: every other schema keyword
func convertCustomTool(tool *llmprovider.Tool) anthropic.ToolUnionParam {
	properties := tool.Function.Parameters["properties"]
	if properties == nil {
		properties = map[string]any{}
	}

	// Type can be elided (zero value) - it will marshal as "object"
	schema := anthropic.ToolInputSchemaParam{
		Properties:  properties,
		Required:    tool.RequiredParameters(),
		ExtraFields: make(map[string]any),
	}
	for key, value := range tool.Function.Parameters {
		if key != "type" && key != "properties" && key != "required" {
			schema.ExtraFields[key] = value
		}
	}

	toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
	if tool.Function.Description != "" {
		toolParam.OfTool.Description = anthropic.String(tool.Function.Description)
	}
	return toolParam
}
