package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/types"
	"go.uber.org/zap"
)

// ToolFunc defines the tool function signature. Tools answer with plain text.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// ToolMetadata describes tool metadata.
type ToolMetadata struct {
	Schema  llm.ToolSchema // Tool JSON Schema
	Timeout time.Duration  // Execution timeout (default 30s)
}

// ToolResult represents tool execution result.
type ToolResult struct {
	ToolCallID string        `json:"tool_call_id"`
	Name       string        `json:"name"`
	Output     string        `json:"output"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Failed reports whether the tool returned an error.
func (r ToolResult) Failed() bool { return r.Error != "" }

// ToolRegistry defines tool registry interface.
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	List() []llm.ToolSchema
	Has(name string) bool
}

// ====== 实现：Registry ======

// Registry keeps tools in registration order so the schema list sent to the
// model is stable.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	tools    map[string]ToolFunc
	metadata map[string]ToolMetadata
	logger   *zap.Logger
}

// NewRegistry 创建工具注册中心。
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]ToolFunc),
		metadata: make(map[string]ToolMetadata),
		logger:   logger.With(zap.String("component", "tool_registry")),
	}
}

func (r *Registry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	// 校验 Schema
	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}

	// 设置默认超时
	if metadata.Timeout == 0 {
		metadata.Timeout = 30 * time.Second
	}

	r.order = append(r.order, name)
	r.tools[name] = fn
	r.metadata[name] = metadata

	r.logger.Debug("tool registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

func (r *Registry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, types.Errorf(types.ErrUnknownTool, "tool %s is not registered", name)
	}
	return fn, r.metadata[name], nil
}

func (r *Registry) List() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.metadata[name].Schema)
	}
	return schemas
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// ====== 实现：Executor ======

// FailurePrefix starts the text returned to the model for a failed call.
const FailurePrefix = "tool failed: "

// Executor runs tool calls one at a time.
type Executor struct {
	registry ToolRegistry
	logger   *zap.Logger
}

// NewExecutor 创建工具执行器。
func NewExecutor(registry ToolRegistry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry: registry,
		logger:   logger.With(zap.String("component", "tool_executor")),
	}
}

// ExecuteOne runs a single call. Only an unregistered tool produces an error;
// any other failure is folded into the result.
func (e *Executor) ExecuteOne(ctx context.Context, call llm.ToolCall) (ToolResult, error) {
	start := time.Now()
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		e.logger.Error("unknown tool requested", zap.String("name", call.Name))
		return result, err
	}

	fail := func(msg string) (ToolResult, error) {
		result.Error = msg
		result.Output = FailurePrefix + msg
		result.Duration = time.Since(start)
		return result, nil
	}

	// 参数校验：确保是有效 JSON
	if len(call.Arguments) > 0 && !json.Valid(call.Arguments) {
		e.logger.Warn("invalid tool arguments", zap.String("name", call.Name))
		return fail("invalid arguments")
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	// 使用带缓冲的 channel 防止 goroutine 泄漏
	type outcome struct {
		out string
		err error
	}
	doneChan := make(chan outcome, 1)
	go func() {
		// 工具 panic 只算本次调用失败
		defer func() {
			if r := recover(); r != nil {
				doneChan <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, err := fn(execCtx, call.Arguments)
		doneChan <- outcome{out, err}
	}()

	select {
	case done := <-doneChan:
		if done.err != nil {
			e.logger.Warn("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(done.err),
				zap.Duration("duration", time.Since(start)))
			return fail(done.err.Error())
		}
		result.Output = done.out
		result.Duration = time.Since(start)
		e.logger.Debug("tool executed",
			zap.String("name", call.Name),
			zap.Duration("duration", result.Duration))
		return result, nil

	case <-execCtx.Done():
		e.logger.Warn("tool execution timeout",
			zap.String("name", call.Name),
			zap.Duration("timeout", meta.Timeout))
		return fail(fmt.Sprintf("execution timeout after %s", meta.Timeout))
	}
}

// Execute runs calls sequentially and stops at the first unknown tool.
func (e *Executor) Execute(ctx context.Context, calls []llm.ToolCall) ([]ToolResult, error) {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		res, err := e.ExecuteOne(ctx, call)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// DecodeArgs unmarshals tool arguments, treating empty input as an empty object.
func DecodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// ObjectSchema builds a JSON schema for an object whose properties are all
// required strings.
func ObjectSchema(props map[string]string, required ...string) json.RawMessage {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]string{"type": "string", "description": desc}
	}
	if required == nil {
		required = []string{}
	}
	b, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	})
	return b
}
