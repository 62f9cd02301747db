package validation

import (
	"sync"

	"github.com/starhound/null-llm-go/usage"
)

// Engine manages validation rules and executes them
type Engine struct {
	rules []Rule
	mu    sync.RWMutex
}

// NewEngine returns an engine running rules in order.
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// DefaultRules returns the built-in rules backed by table.
func DefaultRules(table *usage.Table) []Rule {
	return []Rule{
		&ModelRule{table: table},
		&ContextRule{table: table},
		&ToolRule{},
		&ParameterRule{},
	}
}

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
)

// Default returns the engine with the built-in rules on the default model table.
func Default() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngine = NewEngine(DefaultRules(usage.Default())...)
	})
	return defaultEngine
}

// AddRule adds a validation rule to the engine
func (e *Engine) AddRule(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

// RemoveRule removes a validation rule by name
func (e *Engine) RemoveRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, rule := range e.rules {
		if rule.Name() == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Validate runs all validation rules and returns warnings
func (e *Engine) Validate(req *Request) []Warning {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var warnings []Warning
	for _, rule := range e.rules {
		warnings = append(warnings, rule.Check(req)...)
	}
	return warnings
}

// Warnings runs the default engine. The result is informational: callers
// choose whether to show it.
func Warnings(req *Request) []Warning {
	return Default().Validate(req)
}

// FilterBySeverity returns warnings matching the specified severities
func FilterBySeverity(warnings []Warning, severities ...Severity) []Warning {
	set := make(map[Severity]bool, len(severities))
	for _, s := range severities {
		set[s] = true
	}
	return filter(warnings, func(w Warning) bool { return set[w.Severity] })
}

// FilterByCategory returns warnings matching the specified categories
func FilterByCategory(warnings []Warning, categories ...string) []Warning {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return filter(warnings, func(w Warning) bool { return set[w.Category] })
}

// FilterByCode returns warnings matching the specified codes
func FilterByCode(warnings []Warning, codes ...WarningCode) []Warning {
	set := make(map[WarningCode]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return filter(warnings, func(w Warning) bool { return set[w.Code] })
}

func filter(warnings []Warning, keep func(Warning) bool) []Warning {
	filtered := make([]Warning, 0)
	for _, w := range warnings {
		if keep(w) {
			filtered = append(filtered, w)
		}
	}
	return filtered
}
