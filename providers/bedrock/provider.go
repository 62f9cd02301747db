// Package bedrock serves Claude and Llama models hosted on AWS Bedrock.
//
// Claude models go through the Anthropic SDK's Bedrock transport and keep
// full tool support. Llama models stream through InvokeModelWithResponseStream,
// decoded from the AWS event stream framing, and are text only. Both run
// their blocking work on a bounded worker pool.
package bedrock

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	llmprovider "github.com/starhound/null-llm-go"
	"github.com/starhound/null-llm-go/internal/transport"
	"github.com/starhound/null-llm-go/internal/workerpool"
	anthropicprovider "github.com/starhound/null-llm-go/providers/anthropic"
)

const (
	// DefaultRegion is used when the configuration names none.
	DefaultRegion = "us-east-1"

	// DefaultModel is used when the configuration names no model.
	DefaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

	// DefaultPoolSize bounds concurrent blocking Bedrock calls.
	DefaultPoolSize = 4

	loadConfigTimeout = 10 * time.Second
)

// FallbackModels is returned when listing foundation models fails.
var FallbackModels = []string{
	"anthropic.claude-3-5-sonnet-20241022-v2:0",
	"anthropic.claude-3-5-haiku-20241022-v1:0",
	"anthropic.claude-3-opus-20240229-v1:0",
	"anthropic.claude-3-haiku-20240307-v1:0",
	"meta.llama3-1-70b-instruct-v1:0",
	"meta.llama3-1-8b-instruct-v1:0",
}

// Family is the prompt format a Bedrock model speaks.
type Family int

const (
	FamilyUnsupported Family = iota
	FamilyClaude
	FamilyLlama
)

// FamilyOf classifies a Bedrock model ID.
func FamilyOf(model string) Family {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "claude"):
		return FamilyClaude
	case strings.Contains(m, "llama"):
		return FamilyLlama
	default:
		return FamilyUnsupported
	}
}

// Provider implements llmprovider.Provider for AWS Bedrock.
type Provider struct {
	model  string
	region string
	family Family

	claude  *anthropicprovider.Provider
	runtime *transport.Client
	control *transport.Client

	options  *llmprovider.Options
	pool     *workerpool.Pool
	ownsPool bool
	logger   *slog.Logger
}

type settings struct {
	awsConfig       *aws.Config
	httpClient      *http.Client
	runtimeEndpoint string
	controlEndpoint string
	pool            *workerpool.Pool
	logger          *slog.Logger
}

// Option configures a Provider.
type Option func(*settings)

// WithAWSConfig skips loading the default credential chain.
func WithAWSConfig(cfg aws.Config) Option {
	return func(s *settings) { s.awsConfig = &cfg }
}

// WithHTTPClient replaces the shared pooled HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithEndpoints overrides the runtime and control-plane base URLs.
func WithEndpoints(runtime, control string) Option {
	return func(s *settings) {
		s.runtimeEndpoint = runtime
		s.controlEndpoint = control
	}
}

// WithWorkerPool shares pool instead of creating one per provider.
func WithWorkerPool(pool *workerpool.Pool) Option {
	return func(s *settings) { s.pool = pool }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New creates a Bedrock provider. Credentials come from the standard AWS
// chain (environment, shared config, SSO, instance role) unless
// WithAWSConfig supplies them.
func New(cfg llmprovider.ProviderConfig, opts ...Option) (*Provider, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.httpClient == nil {
		s.httpClient = transport.ForOptions(cfg.Options)
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	region := llmprovider.GetOrDefault(cfg.Region, DefaultRegion)

	awsCfg, err := loadAWSConfig(s.awsConfig, region)
	if err != nil {
		return nil, err
	}
	awsCfg.HTTPClient = s.httpClient

	runtimeURL := llmprovider.GetOrDefault(s.runtimeEndpoint, fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region))
	controlURL := llmprovider.GetOrDefault(s.controlEndpoint, fmt.Sprintf("https://bedrock.%s.amazonaws.com", region))

	signer := newSigner(awsCfg.Credentials, region)

	runtime, err := transport.New(llmprovider.ProviderBedrock.String(), runtimeURL, s.httpClient)
	if err != nil {
		return nil, err
	}
	runtime.Prepare = signer.prepare("bedrock")
	runtime.Logger = s.logger
	runtime.ApplyOptions(cfg.Options)

	control, err := transport.New(llmprovider.ProviderBedrock.String(), controlURL, s.httpClient)
	if err != nil {
		return nil, err
	}
	control.Prepare = signer.prepare("bedrock")
	control.Logger = s.logger
	control.ApplyOptions(cfg.Options)

	p := &Provider{
		model:   llmprovider.GetOrDefault(cfg.Model, DefaultModel),
		region:  region,
		runtime: runtime,
		control: control,
		options: cfg.Options,
		pool:    s.pool,
		logger:  s.logger.With("provider", llmprovider.ProviderBedrock.String()),
	}
	if p.pool == nil {
		p.pool = workerpool.New(DefaultPoolSize)
		p.ownsPool = true
	}
	p.family = FamilyOf(p.model)

	if p.family == FamilyClaude {
		requestOpts := []option.RequestOption{bedrock.WithConfig(awsCfg)}
		if s.runtimeEndpoint != "" {
			requestOpts = append(requestOpts, option.WithBaseURL(s.runtimeEndpoint))
		}
		p.claude, err = anthropicprovider.NewWithTransport(
			llmprovider.ProviderConfig{Model: p.model, Options: cfg.Options},
			DefaultModel,
			requestOpts,
			anthropicprovider.WithIdentity(llmprovider.ProviderBedrock, FallbackModels, false),
			anthropicprovider.WithHTTPClient(s.httpClient),
			anthropicprovider.WithWorkerPool(p.pool),
			anthropicprovider.WithLogger(s.logger),
		)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

func loadAWSConfig(provided *aws.Config, region string) (aws.Config, error) {
	if provided != nil {
		cfg := provided.Copy()
		if cfg.Region == "" {
			cfg.Region = region
		}
		return cfg, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadConfigTimeout)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("%w: failed to load AWS configuration: %v", llmprovider.ErrAuthentication, err)
	}
	return cfg, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return llmprovider.ProviderBedrock
}

// Model returns the Bedrock model ID.
func (p *Provider) Model() string {
	return p.model
}

// Region returns the AWS region requests go to.
func (p *Provider) Region() string {
	return p.region
}

// SupportsTools is true for Claude models only.
func (p *Provider) SupportsTools() bool {
	return p.family == FamilyClaude
}

// Close waits for in-flight blocking calls when the pool is private.
func (p *Provider) Close() error {
	if p.ownsPool {
		p.pool.Close()
	}
	return nil
}
