package factory

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/providers"
	"github.com/frogteam/frogteam/llm/providers/openaicompat"
	"github.com/frogteam/frogteam/types"
	"go.uber.org/zap"
)

// Provider names understood by NewProviderFromConfig.
const (
	ProviderOpenAI       = "openai"
	ProviderAzure        = "azure"
	ProviderOpenAICompat = "openai-compatible"
	ProviderBedrock      = "bedrock"
)

const (
	DefaultAzureAPIVersion = "2024-06-01"
	DefaultMaxTokens       = 4096
	defaultOpenAIBaseURL   = "https://api.openai.com"
)

// ProviderConfig is the flat per-member configuration accepted by the factory.
type ProviderConfig struct {
	Provider     string        `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model        string        `json:"model" yaml:"model"`
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Endpoint     string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AzDeployment string        `json:"az_deployment,omitempty" yaml:"az_deployment,omitempty"`
	AzAPIVersion string        `json:"az_api_version,omitempty" yaml:"az_api_version,omitempty"`
	AWSRegion    string        `json:"aws_region,omitempty" yaml:"aws_region,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// ResolveProviderName infers the provider when cfg.Provider is empty.
// An endpoint selects Azure, a base URL selects a generic compatible gateway,
// Bedrock model ids (anthropic.* / meta.*) select Bedrock, anything else is OpenAI.
func ResolveProviderName(cfg ProviderConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Provider)); p != "" {
		return p
	}
	switch {
	case len(strings.TrimSpace(cfg.Endpoint)) > 5:
		return ProviderAzure
	case cfg.BaseURL != "":
		return ProviderOpenAICompat
	case strings.HasPrefix(cfg.Model, "anthropic.") || strings.HasPrefix(cfg.Model, "meta."):
		return ProviderBedrock
	default:
		return ProviderOpenAI
	}
}

// ResolveAPIKey treats key as the name of an environment variable when one
// with that name is set, and as a literal key otherwise.
func ResolveAPIKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return key
}

// NewProviderFromConfig creates the provider for a member.
func NewProviderFromConfig(cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		return nil, types.NewError(types.ErrConfigurationMissing, "no model")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	apiKey := ResolveAPIKey(cfg.APIKey)

	name := ResolveProviderName(cfg)
	switch name {
	case ProviderOpenAI:
		base := cfg.BaseURL
		if base == "" {
			base = defaultOpenAIBaseURL
		}
		return openaicompat.New(openaicompat.Config{
			ProviderName: ProviderOpenAI,
			APIKey:       apiKey,
			BaseURL:      base,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			MaxTokens:    cfg.MaxTokens,
		}, logger), nil

	case ProviderAzure:
		if cfg.AzDeployment == "" {
			return nil, types.Errorf(types.ErrConfigurationMissing, "azure member %q has no az_deployment", cfg.Model)
		}
		version := cfg.AzAPIVersion
		if version == "" {
			version = DefaultAzureAPIVersion
		}
		return openaicompat.New(openaicompat.Config{
			ProviderName: ProviderAzure,
			APIKey:       apiKey,
			BaseURL:      strings.TrimRight(cfg.Endpoint, "/"),
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			EndpointPath: "/openai/deployments/" + url.PathEscape(cfg.AzDeployment) + "/chat/completions",
			HealthPath:   "/openai/models",
			Query:        url.Values{"api-version": []string{version}},
			MaxTokens:    cfg.MaxTokens,
			BuildHeaders: providers.AzureKeyHeaders,
		}, logger), nil

	case ProviderOpenAICompat:
		if cfg.BaseURL == "" {
			return nil, types.NewError(types.ErrConfigurationMissing, "openai-compatible provider requires base_url")
		}
		return openaicompat.New(openaicompat.Config{
			ProviderName: ProviderOpenAICompat,
			APIKey:       apiKey,
			BaseURL:      strings.TrimRight(cfg.BaseURL, "/"),
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			MaxTokens:    cfg.MaxTokens,
		}, logger), nil

	case ProviderBedrock:
		logger.Warn("bedrock members are not supported", zap.String("model", cfg.Model), zap.String("region", cfg.AWSRegion))
		return nil, types.NewError(types.ErrConfigurationMissing, "no model")

	default:
		return nil, types.Errorf(types.ErrConfigurationMissing, "unknown provider %q", name)
	}
}
