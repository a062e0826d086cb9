package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveProviderName(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProviderConfig
		want string
	}{
		{"explicit wins", ProviderConfig{Provider: "Azure", Model: "gpt-4o"}, ProviderAzure},
		{"endpoint selects azure", ProviderConfig{Model: "gpt-4o", Endpoint: "https://acme.openai.azure.com"}, ProviderAzure},
		{"short endpoint ignored", ProviderConfig{Model: "gpt-4o", Endpoint: "n/a"}, ProviderOpenAI},
		{"base url selects compat", ProviderConfig{Model: "llama3", BaseURL: "http://localhost:11434"}, ProviderOpenAICompat},
		{"anthropic bedrock", ProviderConfig{Model: "anthropic.claude-3-5-sonnet-20240620-v1:0"}, ProviderBedrock},
		{"meta bedrock", ProviderConfig{Model: "meta.llama3-70b-instruct-v1:0"}, ProviderBedrock},
		{"default openai", ProviderConfig{Model: "gpt-4o"}, ProviderOpenAI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveProviderName(tt.cfg))
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("FROGTEAM_TEST_OPENAI_KEY", "sk-from-env")
	assert.Equal(t, "sk-from-env", ResolveAPIKey("FROGTEAM_TEST_OPENAI_KEY"))
	assert.Equal(t, "sk-literal", ResolveAPIKey("sk-literal"))
	assert.Equal(t, "", ResolveAPIKey("  "))
}

func TestNewProviderFromConfig_Errors(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewProviderFromConfig(ProviderConfig{}, logger)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigurationMissing))

	_, err = NewProviderFromConfig(ProviderConfig{Model: "anthropic.claude-3-haiku-20240307-v1:0", AWSRegion: "us-east-1"}, logger)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigurationMissing))
	assert.Contains(t, err.Error(), "no model")

	_, err = NewProviderFromConfig(ProviderConfig{Model: "gpt-4o", Endpoint: "https://acme.openai.azure.com"}, logger)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigurationMissing))

	_, err = NewProviderFromConfig(ProviderConfig{Model: "gpt-4o", Provider: "nope"}, logger)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigurationMissing))
}

func TestNewProviderFromConfig_AzureRequestShape(t *testing.T) {
	var gotPath, gotVersion, gotKey string
	var gotMaxTokens int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		gotKey = r.Header.Get("api-key")
		var body struct {
			MaxTokens int `json:"max_tokens"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotMaxTokens = body.MaxTokens
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer srv.Close()

	p, err := NewProviderFromConfig(ProviderConfig{
		Model:        "gpt-4o",
		APIKey:       "azure-key",
		Endpoint:     srv.URL,
		AzDeployment: "prod-4o",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ProviderAzure, p.Name())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{Messages: []llm.Message{llm.UserMessage("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.FirstMessage().Content)
	assert.Equal(t, "/openai/deployments/prod-4o/chat/completions", gotPath)
	assert.Equal(t, DefaultAzureAPIVersion, gotVersion)
	assert.Equal(t, "azure-key", gotKey)
	assert.Equal(t, DefaultMaxTokens, gotMaxTokens)
}

func TestNewProviderFromConfig_OpenAIDefaults(t *testing.T) {
	p, err := NewProviderFromConfig(ProviderConfig{Model: "gpt-4o", APIKey: "sk"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
	assert.True(t, p.SupportsNativeFunctionCalling())
}
