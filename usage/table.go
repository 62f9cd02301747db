// Package usage turns model names and token counts into context-window
// limits and dollar estimates.
//
// The data is metadata for display and budgeting. It is not enforced:
// vendor APIs remain the source of truth, and the table may lag behind new
// model releases. Callers can replace the embedded table with LoadFromFile
// or SetDefault.
package usage

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	llmprovider "github.com/starhound/null-llm-go"
)

//go:embed models.yaml
var modelsYAML []byte

// DefaultContextWindow is returned for models the table does not know.
const DefaultContextWindow = 4096

// Table is the model metadata document.
type Table struct {
	Version              string          `yaml:"version"`      // Semantic version (e.g., "1.0.0")
	LastUpdated          string          `yaml:"last_updated"` // ISO 8601 date
	DefaultContextWindow int             `yaml:"default_context_window"`
	ContextWindows       []ContextWindow `yaml:"context_windows"`
	Pricing              []Pricing       `yaml:"pricing"`
}

// ContextWindow maps a model key to its context size in tokens.
type ContextWindow struct {
	Model  string `yaml:"model"`
	Tokens int    `yaml:"tokens"`
}

// Pricing is the per-million-token price of a model key.
type Pricing struct {
	Model       string  `yaml:"model"`
	InputPer1M  float64 `yaml:"input_per_1m"`
	OutputPer1M float64 `yaml:"output_per_1m"`
}

// ParseTable decodes a YAML model table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model table: %w", err)
	}
	if t.DefaultContextWindow <= 0 {
		t.DefaultContextWindow = DefaultContextWindow
	}
	for i, cw := range t.ContextWindows {
		if cw.Model == "" || cw.Tokens <= 0 {
			return nil, fmt.Errorf("context_windows[%d]: model and positive tokens are required", i)
		}
	}
	for i, p := range t.Pricing {
		if p.Model == "" || p.InputPer1M < 0 || p.OutputPer1M < 0 {
			return nil, fmt.Errorf("pricing[%d]: model and non-negative prices are required", i)
		}
	}
	return &t, nil
}

// ContextWindowFor returns the context size for model, or the table default.
func (t *Table) ContextWindowFor(model string) int {
	i := match(model, len(t.ContextWindows), func(i int) string { return t.ContextWindows[i].Model })
	if i < 0 {
		return t.DefaultContextWindow
	}
	return t.ContextWindows[i].Tokens
}

// Known reports whether model has a context window entry.
func (t *Table) Known(model string) bool {
	return match(model, len(t.ContextWindows), func(i int) string { return t.ContextWindows[i].Model }) >= 0
}

// PricingFor returns the input and output price per million tokens.
// Unknown models are free (local), not an error.
func (t *Table) PricingFor(model string) (input, output float64) {
	i := match(model, len(t.Pricing), func(i int) string { return t.Pricing[i].Model })
	if i < 0 {
		return 0, 0
	}
	return t.Pricing[i].InputPer1M, t.Pricing[i].OutputPer1M
}

// CostFor returns the USD cost of usage on model.
func (t *Table) CostFor(u llmprovider.TokenUsage, model string) float64 {
	in, out := t.PricingFor(model)
	return float64(u.InputTokens)/1e6*in + float64(u.OutputTokens)/1e6*out
}

// match returns the index of the entry for model: exact (case-insensitive)
// first, then the first key contained in model, in declaration order.
func match(model string, n int, key func(int) string) int {
	m := strings.ToLower(strings.TrimSpace(model))
	if m == "" {
		return -1
	}
	for i := 0; i < n; i++ {
		if strings.ToLower(key(i)) == m {
			return i
		}
	}
	for i := 0; i < n; i++ {
		if strings.Contains(m, strings.ToLower(key(i))) {
			return i
		}
	}
	return -1
}

var (
	defaultTable     *Table
	defaultTableMu   sync.RWMutex
	defaultTableOnce sync.Once
)

// Default returns the process-wide table, loading the embedded one on first use.
func Default() *Table {
	defaultTableOnce.Do(func() {
		t, err := ParseTable(modelsYAML)
		if err != nil {
			// The embedded file is covered by tests; an empty table still
			// answers every lookup with defaults.
			t = &Table{DefaultContextWindow: DefaultContextWindow}
		}
		defaultTableMu.Lock()
		if defaultTable == nil {
			defaultTable = t
		}
		defaultTableMu.Unlock()
	})
	defaultTableMu.RLock()
	defer defaultTableMu.RUnlock()
	return defaultTable
}

// SetDefault replaces the process-wide table.
func SetDefault(t *Table) {
	Default()
	defaultTableMu.Lock()
	defer defaultTableMu.Unlock()
	defaultTable = t
}

// LoadFromFile parses a YAML table from path and makes it the default.
func LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model table: %w", err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return err
	}
	SetDefault(t)
	return nil
}

// ContextWindowFor looks model up in the default table.
func ContextWindowFor(model string) int {
	return Default().ContextWindowFor(model)
}

// PricingFor looks model up in the default table.
func PricingFor(model string) (input, output float64) {
	return Default().PricingFor(model)
}

// CostFor prices usage with the default table.
func CostFor(u llmprovider.TokenUsage, model string) float64 {
	return Default().CostFor(u, model)
}

// EstimateTokens is the crude len/4 estimate used only when a vendor
// reports no usage at all.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}
