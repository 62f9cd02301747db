package llmprovider

// ProviderID represents a unique provider identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// Local / self-hosted
	ProviderOllama   ProviderID = "ollama"
	ProviderLMStudio ProviderID = "lm_studio"
	ProviderLlamaCpp ProviderID = "llama_cpp"

	// Major cloud vendors
	ProviderOpenAI       ProviderID = "openai"
	ProviderAnthropic    ProviderID = "anthropic"
	ProviderClaudeOAuth  ProviderID = "claude_oauth"
	ProviderGoogle       ProviderID = "google"
	ProviderGoogleVertex ProviderID = "google_vertex"
	ProviderAzure        ProviderID = "azure"
	ProviderBedrock      ProviderID = "bedrock"
	ProviderCohere       ProviderID = "cohere"

	// OpenAI-compatible hosted APIs
	ProviderGroq        ProviderID = "groq"
	ProviderMistral     ProviderID = "mistral"
	ProviderTogether    ProviderID = "together"
	ProviderNvidia      ProviderID = "nvidia"
	ProviderXAI         ProviderID = "xai"
	ProviderOpenRouter  ProviderID = "openrouter"
	ProviderFireworks   ProviderID = "fireworks"
	ProviderDeepSeek    ProviderID = "deepseek"
	ProviderPerplexity  ProviderID = "perplexity"
	ProviderCustom      ProviderID = "custom"
	ProviderHuggingFace ProviderID = "huggingface"
	ProviderCloudflare  ProviderID = "cloudflare"

	// ProviderLorem is the offline mock provider for testing
	ProviderLorem ProviderID = "lorem"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	_, ok := providerInfo[p]
	return ok
}

// Info returns the metadata for p and whether p is known.
func (p ProviderID) Info() (ProviderInfo, bool) {
	info, ok := providerInfo[p]
	return info, ok
}

// ProviderInfo describes what a provider needs before it can be used.
type ProviderInfo struct {
	ID          ProviderID
	DisplayName string
	Description string

	RequiresAPIKey   bool // Cloud API keyed by a secret
	RequiresEndpoint bool // Needs a base URL (local servers, azure, custom)
	RequiresOAuth    bool // Bearer token from a TokenSource
	CredentialChain  bool // Ambient cloud credentials (AWS, gcloud)
	Local            bool // Runs on the user's machine
}

// KnownProviders returns every provider in display order.
func KnownProviders() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(providerOrder))
	for _, id := range providerOrder {
		out = append(out, providerInfo[id])
	}
	return out
}

var providerOrder = []ProviderID{
	ProviderOllama,
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderClaudeOAuth,
	ProviderGoogle,
	ProviderGoogleVertex,
	ProviderAzure,
	ProviderBedrock,
	ProviderGroq,
	ProviderMistral,
	ProviderTogether,
	ProviderNvidia,
	ProviderCohere,
	ProviderXAI,
	ProviderLMStudio,
	ProviderOpenRouter,
	ProviderFireworks,
	ProviderDeepSeek,
	ProviderPerplexity,
	ProviderCustom,
	ProviderHuggingFace,
	ProviderLlamaCpp,
	ProviderCloudflare,
	ProviderLorem,
}

var providerInfo = map[ProviderID]ProviderInfo{
	ProviderOllama:       {ID: ProviderOllama, DisplayName: "Ollama", Description: "Local models via Ollama", RequiresEndpoint: true, Local: true},
	ProviderOpenAI:       {ID: ProviderOpenAI, DisplayName: "OpenAI", Description: "GPT-4o, o-series, etc.", RequiresAPIKey: true},
	ProviderAnthropic:    {ID: ProviderAnthropic, DisplayName: "Anthropic", Description: "Claude 3.5, Claude 3, etc.", RequiresAPIKey: true},
	ProviderClaudeOAuth:  {ID: ProviderClaudeOAuth, DisplayName: "Claude (subscription)", Description: "Claude via OAuth login", RequiresOAuth: true},
	ProviderGoogle:       {ID: ProviderGoogle, DisplayName: "Google AI", Description: "Gemini 2.x via AI Studio", RequiresAPIKey: true},
	ProviderGoogleVertex: {ID: ProviderGoogleVertex, DisplayName: "Google Vertex AI", Description: "Gemini via Vertex AI", CredentialChain: true},
	ProviderAzure:        {ID: ProviderAzure, DisplayName: "Azure OpenAI", Description: "OpenAI models via Azure", RequiresAPIKey: true, RequiresEndpoint: true},
	ProviderBedrock:      {ID: ProviderBedrock, DisplayName: "AWS Bedrock", Description: "Claude, Llama, etc. via AWS", CredentialChain: true},
	ProviderGroq:         {ID: ProviderGroq, DisplayName: "Groq", Description: "Fast inference (Llama, Mixtral)", RequiresAPIKey: true},
	ProviderMistral:      {ID: ProviderMistral, DisplayName: "Mistral AI", Description: "Mistral, Mixtral, Codestral", RequiresAPIKey: true},
	ProviderTogether:     {ID: ProviderTogether, DisplayName: "Together AI", Description: "Open models (Llama, Qwen, etc.)", RequiresAPIKey: true},
	ProviderNvidia:       {ID: ProviderNvidia, DisplayName: "NVIDIA NIM", Description: "NVIDIA AI Foundation models", RequiresAPIKey: true},
	ProviderCohere:       {ID: ProviderCohere, DisplayName: "Cohere", Description: "Command R, Command R+", RequiresAPIKey: true},
	ProviderXAI:          {ID: ProviderXAI, DisplayName: "xAI", Description: "Grok models", RequiresAPIKey: true},
	ProviderLMStudio:     {ID: ProviderLMStudio, DisplayName: "LM Studio", Description: "Local models via LM Studio", RequiresEndpoint: true, Local: true},
	ProviderOpenRouter:   {ID: ProviderOpenRouter, DisplayName: "OpenRouter", Description: "Unified API for many models", RequiresAPIKey: true},
	ProviderFireworks:    {ID: ProviderFireworks, DisplayName: "Fireworks AI", Description: "Fast open model inference", RequiresAPIKey: true},
	ProviderDeepSeek:     {ID: ProviderDeepSeek, DisplayName: "DeepSeek", Description: "DeepSeek Coder & Chat", RequiresAPIKey: true},
	ProviderPerplexity:   {ID: ProviderPerplexity, DisplayName: "Perplexity", Description: "Online LLMs (Sonar)", RequiresAPIKey: true},
	ProviderCustom:       {ID: ProviderCustom, DisplayName: "Custom HTTP", Description: "Any OpenAI-compatible API", RequiresAPIKey: true, RequiresEndpoint: true},
	ProviderHuggingFace:  {ID: ProviderHuggingFace, DisplayName: "HuggingFace", Description: "Inference API (TGI/v1)", RequiresAPIKey: true},
	ProviderLlamaCpp:     {ID: ProviderLlamaCpp, DisplayName: "Llama.cpp Server", Description: "Local llama.cpp (OpenAI format)", RequiresEndpoint: true, Local: true},
	ProviderCloudflare:   {ID: ProviderCloudflare, DisplayName: "Cloudflare Workers AI", Description: "Workers AI (Llama, etc.)", RequiresAPIKey: true, RequiresEndpoint: true},
	ProviderLorem:        {ID: ProviderLorem, DisplayName: "Lorem", Description: "Offline mock provider", Local: true},
}
