package usage

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	llmprovider "github.com/starhound/null-llm-go"
)

// Encoder turns text into tokens. *tiktoken.Tiktoken satisfies it.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

const defaultEncoding = "cl100k_base"

// Message structure overhead, in tokens.
const (
	messageOverhead  = 4 // role and separators
	toolCallOverhead = 3
	replyPriming     = 3
)

var charsPerToken = map[llmprovider.ProviderID]float64{
	llmprovider.ProviderAnthropic:   3.5,
	llmprovider.ProviderClaudeOAuth: 3.5,
	llmprovider.ProviderBedrock:     3.5,
}

const defaultCharsPerToken = 4.0

var (
	encodings   = map[string]Encoder{}
	encodingsMu sync.Mutex
)

// loadEncoding returns a cached tiktoken encoding. Failures (the BPE file is
// fetched on first use) are cached as nil so estimation takes over.
func loadEncoding(name string) Encoder {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	if enc, ok := encodings[name]; ok {
		return enc
	}
	var enc Encoder
	if tke, err := tiktoken.GetEncoding(name); err == nil {
		enc = tke
	}
	encodings[name] = enc
	return enc
}

// Counter counts tokens for one provider and model: exactly with tiktoken
// for the OpenAI family, by characters-per-token estimate elsewhere.
type Counter struct {
	provider      llmprovider.ProviderID
	model         string
	charsPerToken float64

	encOnce sync.Once
	enc     Encoder
	load    func() Encoder
}

// CounterOption configures a Counter.
type CounterOption func(*Counter)

// WithEncoder forces a specific encoder regardless of provider.
func WithEncoder(enc Encoder) CounterOption {
	return func(c *Counter) {
		c.load = func() Encoder { return enc }
	}
}

// NewCounter returns a counter for provider and model.
func NewCounter(provider llmprovider.ProviderID, model string, opts ...CounterOption) *Counter {
	c := &Counter{
		provider:      provider,
		model:         strings.ToLower(model),
		charsPerToken: defaultCharsPerToken,
	}
	if cpt, ok := charsPerToken[provider]; ok {
		c.charsPerToken = cpt
	}
	if usesTiktoken(provider) {
		c.load = func() Encoder { return loadEncoding(defaultEncoding) }
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func usesTiktoken(provider llmprovider.ProviderID) bool {
	return provider == llmprovider.ProviderOpenAI || provider == llmprovider.ProviderAzure
}

func (c *Counter) encoder() Encoder {
	c.encOnce.Do(func() {
		if c.load != nil {
			c.enc = c.load()
		}
	})
	return c.enc
}

// Exact reports whether counts come from a real tokenizer.
func (c *Counter) Exact() bool {
	return c.encoder() != nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return int(float64(len([]rune(text))) / c.charsPerToken)
}

// CountMessage returns the tokens of one message including structure overhead.
func (c *Counter) CountMessage(msg llmprovider.Message) int {
	overhead := messageOverhead
	tokens := c.Count(msg.Content)
	for _, call := range msg.ToolCalls {
		tokens += c.Count(call.Name)
		if len(call.Arguments) > 0 {
			if args, err := json.Marshal(call.Arguments); err == nil {
				tokens += c.Count(string(args))
			}
		}
		overhead += toolCallOverhead
	}
	return tokens + overhead
}

// CountMessages returns the tokens of a conversation plus reply priming.
func (c *Counter) CountMessages(msgs []llmprovider.Message) int {
	total := 0
	for _, msg := range msgs {
		total += c.CountMessage(msg)
	}
	return total + replyPriming
}
