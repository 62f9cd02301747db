package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	llmprovider "github.com/starhound/null-llm-go"
)

// vendorEnv maps the environment variables vendors document to settings.
var vendorEnv = []struct {
	provider string
	field    string
	keys     []string
}{
	{"openai", "api_key", []string{"OPENAI_API_KEY"}},
	{"anthropic", "api_key", []string{"ANTHROPIC_API_KEY"}},
	{"claude_oauth", "access_token", []string{"CLAUDE_CODE_OAUTH_TOKEN"}},
	{"google", "api_key", []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}},
	{"google_vertex", "project_id", []string{"GOOGLE_CLOUD_PROJECT"}},
	{"google_vertex", "location", []string{"GOOGLE_CLOUD_LOCATION"}},
	{"google_vertex", "access_token", []string{"GOOGLE_OAUTH_ACCESS_TOKEN"}},
	{"azure", "api_key", []string{"AZURE_OPENAI_API_KEY"}},
	{"azure", "endpoint", []string{"AZURE_OPENAI_ENDPOINT"}},
	{"bedrock", "region", []string{"AWS_REGION", "AWS_DEFAULT_REGION"}},
	{"groq", "api_key", []string{"GROQ_API_KEY"}},
	{"mistral", "api_key", []string{"MISTRAL_API_KEY"}},
	{"together", "api_key", []string{"TOGETHER_API_KEY"}},
	{"nvidia", "api_key", []string{"NVIDIA_API_KEY"}},
	{"cohere", "api_key", []string{"COHERE_API_KEY", "CO_API_KEY"}},
	{"xai", "api_key", []string{"XAI_API_KEY"}},
	{"openrouter", "api_key", []string{"OPENROUTER_API_KEY"}},
	{"fireworks", "api_key", []string{"FIREWORKS_API_KEY"}},
	{"deepseek", "api_key", []string{"DEEPSEEK_API_KEY"}},
	{"perplexity", "api_key", []string{"PERPLEXITY_API_KEY"}},
	{"huggingface", "api_key", []string{"HF_TOKEN", "HUGGINGFACE_API_KEY"}},
	{"cloudflare", "api_key", []string{"CLOUDFLARE_API_TOKEN"}},
	{"cloudflare", "account_id", []string{"CLOUDFLARE_ACCOUNT_ID"}},
	{"ollama", "endpoint", []string{"OLLAMA_HOST"}},
}

var providerFields = []string{
	"api_key", "endpoint", "region", "model", "api_version",
	"project_id", "location", "account_id", "access_token",
}

// envPrefix namespaces the overrides of this program.
const envPrefix = "NULL_LLM_"

// applyEnv overlays environment variables on s. Vendor variables fill
// empty fields; NULL_LLM_<PROVIDER>_<FIELD> and the top-level NULL_LLM_*
// variables always win.
func applyEnv(s *Settings, lookup func(string) (string, bool)) {
	if s.Providers == nil {
		s.Providers = make(map[string]ProviderSettings)
	}

	for _, v := range vendorEnv {
		p := s.Providers[v.provider]
		if p.get(v.field) != "" {
			continue
		}
		for _, key := range v.keys {
			if value, ok := lookup(key); ok && value != "" {
				p.set(v.field, value)
				s.Providers[v.provider] = p
				break
			}
		}
	}

	for _, name := range knownProviders() {
		for _, field := range providerFields {
			key := envPrefix + strings.ToUpper(name+"_"+field)
			if value, ok := lookup(key); ok && value != "" {
				p := s.Providers[name]
				p.set(field, value)
				s.Providers[name] = p
			}
		}
	}

	if v, ok := lookup(envPrefix + "PROVIDER"); ok && v != "" {
		s.Provider = v
	}
	if v, ok := lookup(envPrefix + "SYSTEM_PROMPT"); ok && v != "" {
		s.SystemPrompt = v
	}
	if v, ok := lookup(envPrefix + "MODELS_FILE"); ok && v != "" {
		s.ModelsFile = v
	}
	if v, ok := lookup(envPrefix + "FALLBACK_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Fallback.Enabled = &b
		}
	}
	if v, ok := lookup(envPrefix + "FALLBACK_PROVIDERS"); ok && v != "" {
		s.Fallback.Providers = splitList(v)
	}
}

func (p *ProviderSettings) field(name string) *string {
	switch name {
	case "api_key":
		return &p.APIKey
	case "endpoint":
		return &p.Endpoint
	case "region":
		return &p.Region
	case "model":
		return &p.Model
	case "api_version":
		return &p.APIVersion
	case "project_id":
		return &p.ProjectID
	case "location":
		return &p.Location
	case "account_id":
		return &p.AccountID
	case "access_token":
		return &p.AccessToken
	}
	return nil
}

func (p *ProviderSettings) get(name string) string {
	if f := p.field(name); f != nil {
		return *f
	}
	return ""
}

func (p *ProviderSettings) set(name, value string) {
	if f := p.field(name); f != nil {
		*f = value
	}
}

func knownProviders() []string {
	infos := llmprovider.KnownProviders()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.ID.String())
	}
	return names
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FindDotEnv walks up from dir (the working directory when empty) and
// returns the first .env file found.
func FindDotEnv(dir string) (string, bool) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", false
		}
		dir = wd
	}

	for {
		path := filepath.Join(dir, ".env")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// LoadDotEnv loads the nearest .env file into the process environment.
// Variables that are already set are kept. No file is not an error.
func LoadDotEnv(dir string) error {
	path, ok := FindDotEnv(dir)
	if !ok {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
