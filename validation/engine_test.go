package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/usage"
)

func smallTable() *usage.Table {
	return &usage.Table{
		DefaultContextWindow: 4096,
		ContextWindows:       []usage.ContextWindow{{Model: "tiny", Tokens: 100}},
	}
}

func TestModelRule(t *testing.T) {
	engine := NewEngine(DefaultRules(smallTable())...)

	warnings := engine.Validate(&Request{Provider: llmprovider.ProviderOllama, Model: "mystery"})
	unknown := FilterByCode(warnings, WarningCodeModelUnknown)
	require.Len(t, unknown, 1)
	assert.Equal(t, SeverityInfo, unknown[0].Severity)

	warnings = engine.Validate(&Request{Provider: llmprovider.ProviderOllama, Model: "tiny-v2"})
	assert.Empty(t, FilterByCode(warnings, WarningCodeModelUnknown))
}

func TestContextRule(t *testing.T) {
	rule := &ContextRule{table: smallTable()}

	base := &Request{Provider: llmprovider.ProviderOllama, Model: "tiny"}
	base.SystemPrompt = "s"
	base.Prompt = "hi"
	assert.Empty(t, rule.Check(base))

	near := &Request{Provider: llmprovider.ProviderOllama, Model: "tiny"}
	near.SystemPrompt = "s"
	near.Prompt = strings.Repeat("a", 320) // 80 tokens + overhead
	warnings := rule.Check(near)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningCodeContextNearlyFull, warnings[0].Code)

	over := &Request{Provider: llmprovider.ProviderOllama, Model: "tiny"}
	over.Prompt = strings.Repeat("a", 1000)
	warnings = rule.Check(over)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningCodeContextExceeded, warnings[0].Code)
	assert.Equal(t, SeverityError, warnings[0].Severity)
}

func TestToolRule(t *testing.T) {
	good, err := llmprovider.NewFunctionTool("ls", "list", nil)
	require.NoError(t, err)
	bad := llmprovider.Tool{Type: "function", Function: llmprovider.FunctionDetails{Name: "broken"}}

	req := &Request{Provider: llmprovider.ProviderCohere, SupportsTools: false}
	req.Tools = []llmprovider.Tool{*good, *good, bad}
	req.History = []llmprovider.Message{
		llmprovider.AssistantMessage("", llmprovider.ToolCallRequest{ID: "call_0", Name: "ls"}),
		llmprovider.ToolResultMessage("call_0", "a b c"),
		llmprovider.ToolResultMessage("call_9", "orphan"),
	}

	warnings := (&ToolRule{}).Check(req)
	assert.Len(t, FilterByCode(warnings, WarningCodeToolsUnsupported), 1)
	assert.Len(t, FilterByCode(warnings, WarningCodeToolDuplicate), 1)
	assert.Len(t, FilterByCode(warnings, WarningCodeToolInvalid), 1)

	orphans := FilterByCode(warnings, WarningCodeToolResultWithoutCall)
	require.Len(t, orphans, 1)
	assert.Equal(t, "call_9", orphans[0].Value)
}

func TestParameterRule(t *testing.T) {
	rule := &ParameterRule{}
	assert.Empty(t, rule.Check(&Request{}))
	assert.Empty(t, rule.Check(&Request{Options: &llmprovider.Options{Temperature: llmprovider.Float(0.5)}}))

	warnings := rule.Check(&Request{Options: &llmprovider.Options{MaxTokens: llmprovider.Int(0)}})
	require.Len(t, warnings, 1)
	assert.Equal(t, SeverityError, warnings[0].Severity)
}

type countingRule struct{ calls int }

func (r *countingRule) Name() string { return "counting" }

func (r *countingRule) Check(*Request) []Warning {
	r.calls++
	return []Warning{{Code: "CUSTOM", Category: "custom", Severity: SeverityInfo}}
}

func TestEngineAddRemoveRule(t *testing.T) {
	engine := NewEngine()
	rule := &countingRule{}
	engine.AddRule(rule)

	warnings := engine.Validate(&Request{})
	assert.Len(t, warnings, 1)
	assert.Equal(t, 1, rule.calls)

	assert.True(t, engine.RemoveRule("counting"))
	assert.False(t, engine.RemoveRule("counting"))
	assert.Empty(t, engine.Validate(&Request{}))
}

func TestFilters(t *testing.T) {
	warnings := []Warning{
		{Code: "A", Category: "tool", Severity: SeverityInfo},
		{Code: "B", Category: "model", Severity: SeverityError},
		{Code: "C", Category: "tool", Severity: SeverityWarning},
	}
	assert.Len(t, FilterBySeverity(warnings, SeverityError, SeverityWarning), 2)
	assert.Len(t, FilterByCategory(warnings, "tool"), 2)
	assert.Len(t, FilterByCode(warnings, "B"), 1)
	assert.NotNil(t, FilterByCode(warnings, "Z"))
}
