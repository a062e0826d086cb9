// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持按脚本逐轮返回 (文本或工具调用)、错误注入与请求记录。
package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/frogteam/frogteam/llm"
)

// ErrScriptExhausted is returned when a call arrives after the last step and
// no fallback response is configured.
var ErrScriptExhausted = errors.New("mock provider: script exhausted")

// Step is one scripted model turn.
type Step struct {
	Content   string
	ToolCalls []llm.ToolCall
	Err       error
	// Before runs when the step is consumed, before the response is returned.
	Before func(req *llm.ChatRequest)
	Delay  time.Duration
}

// TextStep answers with plain content.
func TextStep(content string) Step { return Step{Content: content} }

// ToolCallStep answers with tool calls and no content.
func ToolCallStep(calls ...llm.ToolCall) Step { return Step{ToolCalls: calls} }

// ErrorStep fails the call.
func ErrorStep(err error) Step { return Step{Err: err} }

// ToolCall builds a call whose arguments are args marshaled to JSON.
func ToolCall(id, name string, args any) llm.ToolCall {
	data, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return llm.ToolCall{ID: id, Name: name, Arguments: data}
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// MockProvider 是 LLM Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	name        string
	script      []Step
	next        int
	fallback    *Step
	nativeTools bool

	promptTokens     int
	completionTokens int

	calls          []MockProviderCall
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:             "mock",
		nativeTools:      true,
		promptTokens:     10,
		completionTokens: 20,
	}
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithScript 追加脚本步骤, 每次 Completion 消费一步
func (m *MockProvider) WithScript(steps ...Step) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, steps...)
	return m
}

// WithResponse 设置脚本耗尽后的固定响应
func (m *MockProvider) WithResponse(response string) *MockProvider {
	return m.WithFallback(TextStep(response))
}

// WithFallback 设置脚本耗尽后重复使用的步骤
func (m *MockProvider) WithFallback(step Step) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &step
	return m
}

// WithError 设置脚本耗尽后返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	return m.WithFallback(ErrorStep(err))
}

// WithoutFunctionCalling 模拟不支持原生工具调用的模型
func (m *MockProvider) WithoutFunctionCalling() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeTools = false
	return m
}

// WithTokenUsage 设置 Token 使用量
func (m *MockProvider) WithTokenUsage(prompt, completion int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promptTokens = prompt
	m.completionTokens = completion
	return m
}

// WithCompletionFunc 设置自定义 Completion 函数, 优先于脚本
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// SupportsNativeFunctionCalling 返回是否支持原生函数调用
func (m *MockProvider) SupportsNativeFunctionCalling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nativeTools
}

// HealthCheck 执行健康检查
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Completion 返回脚本中的下一步
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	if m.completionFunc != nil {
		fn := m.completionFunc
		m.mu.Unlock()
		resp, err := fn(ctx, req)
		m.record(req, resp, err)
		return resp, err
	}

	var step Step
	switch {
	case m.next < len(m.script):
		step = m.script[m.next]
		m.next++
	case m.fallback != nil:
		step = *m.fallback
	default:
		m.mu.Unlock()
		m.record(req, nil, ErrScriptExhausted)
		return nil, ErrScriptExhausted
	}
	name, prompt, completion := m.name, m.promptTokens, m.completionTokens
	m.mu.Unlock()

	if step.Before != nil {
		step.Before(req)
	}
	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			m.record(req, nil, ctx.Err())
			return nil, ctx.Err()
		}
	}
	if step.Err != nil {
		m.record(req, nil, step.Err)
		return nil, step.Err
	}

	finish := "stop"
	if len(step.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	resp := &llm.ChatResponse{
		ID:       "mock-response-id",
		Provider: name,
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: finish,
			Message: llm.Message{
				Role:      llm.RoleAssistant,
				Content:   step.Content,
				ToolCalls: step.ToolCalls,
			},
		}},
		Usage: llm.ChatUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
		CreatedAt: time.Now(),
	}
	m.record(req, resp, nil)
	return resp, nil
}

func (m *MockProvider) record(req *llm.ChatRequest, resp *llm.ChatResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	cp.Tools = append([]llm.ToolSchema(nil), req.Tools...)
	m.calls = append(m.calls, MockProviderCall{Request: &cp, Response: resp, Error: err})
}

// Calls 返回调用记录
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 返回最后一次请求
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}
