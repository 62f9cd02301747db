package openaicompat

import (
	"fmt"

	llmprovider "github.com/starhound/null-llm-go"
)

// convertToOpenAITools validates tools and maps them to function tools.
// The canonical tool format is already OpenAI's, so this is a direct mapping.
func convertToOpenAITools(tools []llmprovider.Tool) ([]Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	result := make([]Tool, 0, len(tools))
	for i := range tools {
		tool := &tools[i]
		if err := tool.Validate(); err != nil {
			return nil, fmt.Errorf("%w: tool %d (%s): %v", llmprovider.ErrInvalidRequest, i, tool.Function.Name, err)
		}
		result = append(result, Tool{
			Type: "function",
			Function: FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}
	return result, nil
}
