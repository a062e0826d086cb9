// =============================================================================
// frogteam OpenAI-Compatible Provider
// =============================================================================
// Chat Completions over HTTP. Serves plain OpenAI, Azure OpenAI deployments
// and any gateway that speaks the same wire format; the differences are the
// endpoint path, query parameters and the auth header.
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/providers"
	"go.uber.org/zap"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "openai", "azure").
	ProviderName string

	// APIKey is the authentication key for the provider's API.
	APIKey string

	// BaseURL is the base URL for the provider's API (e.g., "https://api.openai.com").
	BaseURL string

	// DefaultModel is the model to use when none is specified in the request.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// HealthPath is probed by HealthCheck. Defaults to "/v1/models".
	HealthPath string

	// Query is appended to every request URL (Azure needs api-version).
	Query url.Values

	// MaxTokens is applied when the request does not set one.
	MaxTokens int

	// BuildHeaders sets auth headers. Defaults to providers.BearerTokenHeaders.
	BuildHeaders func(req *http.Request, apiKey string)
}

// Provider is the OpenAI-compatible chat completion client.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/v1/models"
	}
	if cfg.BuildHeaders == nil {
		cfg.BuildHeaders = providers.BearerTokenHeaders
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: secureHTTPClient(cfg.Timeout),
		Logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// secureHTTPClient pins TLS 1.2+ with AEAD-only suites.
func secureHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
				CipherSuites: []uint16{
					tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
					tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
					tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
					tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
				},
			},
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.Cfg.ProviderName }

// SupportsNativeFunctionCalling is always true for the chat completions protocol.
func (p *Provider) SupportsNativeFunctionCalling() bool { return true }

// endpoint builds the full URL for a given path.
func (p *Provider) endpoint(path string) string {
	u := strings.TrimRight(p.Cfg.BaseURL, "/") + path
	if len(p.Cfg.Query) > 0 {
		u += "?" + p.Cfg.Query.Encode()
	}
	return u
}

// HealthCheck verifies the provider is reachable.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.Cfg.HealthPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.Cfg.BuildHeaders(httpReq, p.Cfg.APIKey)

	resp, err := p.Client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check failed: status=%d msg=%s", p.Cfg.ProviderName, resp.StatusCode, msg)
	}

	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req, p.Cfg.DefaultModel, "")
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.Cfg.MaxTokens
	}

	body := providers.OpenAICompatRequest{
		Model:       model,
		Messages:    providers.ConvertMessagesToOpenAI(req.Messages),
		Tools:       providers.ConvertToolsToOpenAI(req.Tools),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	if req.ToolChoice != "" && len(body.Tools) > 0 {
		body.ToolChoice = req.ToolChoice
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.Cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.Cfg.BuildHeaders(httpReq, p.Cfg.APIKey)

	start := time.Now()
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		p.Logger.Warn("completion rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", model),
			zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var oaResp providers.OpenAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	result := providers.ToLLMChatResponse(oaResp, p.Name())
	if oaResp.Created != 0 {
		result.CreatedAt = time.Unix(oaResp.Created, 0)
	}
	p.Logger.Debug("completion finished",
		zap.String("model", result.Model),
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return result, nil
}
