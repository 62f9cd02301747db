package validation

import (
	"fmt"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/usage"
)

// ModelRule flags models the metadata table does not know.
type ModelRule struct {
	table *usage.Table
}

func (r *ModelRule) Name() string {
	return "Model Validation"
}

func (r *ModelRule) Check(req *Request) []Warning {
	if req.Model == "" || r.table.Known(req.Model) {
		return nil
	}
	return []Warning{{
		Code:     WarningCodeModelUnknown,
		Category: "model",
		Field:    "model",
		Value:    req.Model,
		Message:  fmt.Sprintf("Model %s not found in the model table; context budget uses the %d token default", req.Model, r.table.DefaultContextWindow),
		Severity: SeverityInfo,
	}}
}

// ContextRule estimates the prompt size and compares it with the model's
// context window.
type ContextRule struct {
	table *usage.Table
}

func (r *ContextRule) Name() string {
	return "Context Validation"
}

func (r *ContextRule) Check(req *Request) []Warning {
	window := r.table.ContextWindowFor(req.Model)
	counter := usage.NewCounter(req.Provider, req.Model)

	msgs := llmprovider.Conversation(req.Prompt, req.History)
	if system := llmprovider.SystemPromptOrDefault(req.SystemPrompt); system != "" {
		msgs = append([]llmprovider.Message{{Role: llmprovider.RoleSystem, Content: system}}, msgs...)
	}
	tokens := counter.CountMessages(msgs)
	for _, tool := range req.Tools {
		tokens += counter.Count(tool.Function.Name) + counter.Count(tool.Function.Description)
	}

	switch {
	case tokens > window:
		return []Warning{{
			Code:     WarningCodeContextExceeded,
			Category: "context",
			Field:    "history",
			Value:    tokens,
			Message:  fmt.Sprintf("Estimated %d tokens exceeds the %d token context window of %s", tokens, window, req.Model),
			Severity: SeverityError,
		}}
	case tokens*10 >= window*8:
		return []Warning{{
			Code:     WarningCodeContextNearlyFull,
			Category: "context",
			Field:    "history",
			Value:    tokens,
			Message:  fmt.Sprintf("Estimated %d tokens uses over 80%% of the %d token context window", tokens, window),
			Severity: SeverityWarning,
		}}
	}
	return nil
}

// ToolRule checks tool declarations and tool-result pairing.
type ToolRule struct{}

func (r *ToolRule) Name() string {
	return "Tool Validation"
}

func (r *ToolRule) Check(req *Request) []Warning {
	var warnings []Warning

	if len(req.Tools) > 0 && !req.SupportsTools {
		warnings = append(warnings, Warning{
			Code:     WarningCodeToolsUnsupported,
			Category: "tool",
			Field:    "tools",
			Value:    len(req.Tools),
			Message:  fmt.Sprintf("%s does not support tools; the request will run as plain generation", req.Provider),
			Severity: SeverityWarning,
		})
	}

	seen := make(map[string]bool, len(req.Tools))
	for i := range req.Tools {
		tool := req.Tools[i]
		if err := tool.Validate(); err != nil {
			warnings = append(warnings, Warning{
				Code:     WarningCodeToolInvalid,
				Category: "tool",
				Field:    "tools",
				Value:    tool.Function.Name,
				Message:  fmt.Sprintf("Tool %q is invalid: %v", tool.Function.Name, err),
				Severity: SeverityError,
			})
		}
		if seen[tool.Function.Name] {
			warnings = append(warnings, Warning{
				Code:     WarningCodeToolDuplicate,
				Category: "tool",
				Field:    "tools",
				Value:    tool.Function.Name,
				Message:  fmt.Sprintf("Tool %q is declared more than once", tool.Function.Name),
				Severity: SeverityWarning,
			})
		}
		seen[tool.Function.Name] = true
	}

	calls := map[string]bool{}
	for _, msg := range req.History {
		for _, call := range msg.ToolCalls {
			calls[call.ID] = true
		}
		if msg.Role == llmprovider.RoleTool && !calls[msg.ToolCallID] {
			warnings = append(warnings, Warning{
				Code:     WarningCodeToolResultWithoutCall,
				Category: "tool",
				Field:    "history",
				Value:    msg.ToolCallID,
				Message:  fmt.Sprintf("Tool result %q does not answer an earlier tool call", msg.ToolCallID),
				Severity: SeverityWarning,
			})
		}
	}

	return warnings
}

// ParameterRule reports generation options that are out of range.
type ParameterRule struct{}

func (r *ParameterRule) Name() string {
	return "Parameter Validation"
}

func (r *ParameterRule) Check(req *Request) []Warning {
	if err := req.Options.Validate(); err != nil {
		return []Warning{{
			Code:     WarningCodeParameterInvalid,
			Category: "parameter",
			Field:    "options",
			Value:    err.Error(),
			Message:  err.Error(),
			Severity: SeverityError,
		}}
	}
	return nil
}
