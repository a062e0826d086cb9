package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func echoTool(_ context.Context, args json.RawMessage) (string, error) {
	return string(args), nil
}

func TestRegistry_RegisterAndList(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	require.NoError(t, reg.Register("b", echoTool, ToolMetadata{}))
	require.NoError(t, reg.Register("a", echoTool, ToolMetadata{Schema: llm.ToolSchema{Description: "first"}}))

	assert.Error(t, reg.Register("a", echoTool, ToolMetadata{}))
	assert.Error(t, reg.Register("c", echoTool, ToolMetadata{Schema: llm.ToolSchema{Name: "other"}}))

	schemas := reg.List()
	require.Len(t, schemas, 2)
	assert.Equal(t, "b", schemas[0].Name)
	assert.Equal(t, "a", schemas[1].Name)

	_, meta, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, meta.Timeout)
	assert.True(t, reg.Has("b"))
	assert.False(t, reg.Has("z"))
}

func TestExecutor_UnknownToolIsFatal(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register("known", echoTool, ToolMetadata{}))
	exec := NewExecutor(reg, nil)

	results, err := exec.Execute(context.Background(), []llm.ToolCall{
		{ID: "1", Name: "known", Arguments: json.RawMessage(`{"x":1}`)},
		{ID: "2", Name: "missing"},
		{ID: "3", Name: "known"},
	})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrUnknownTool))
	require.Len(t, results, 1)
	assert.Equal(t, `{"x":1}`, results[0].Output)
}

func TestExecutor_FailureBecomesOutput(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register("broken", func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("disk on fire")
	}, ToolMetadata{}))
	exec := NewExecutor(reg, nil)

	res, err := exec.ExecuteOne(context.Background(), llm.ToolCall{ID: "1", Name: "broken"})
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, "tool failed: disk on fire", res.Output)

	res, err = exec.ExecuteOne(context.Background(), llm.ToolCall{ID: "2", Name: "broken", Arguments: json.RawMessage(`{oops`)})
	require.NoError(t, err)
	assert.Equal(t, "tool failed: invalid arguments", res.Output)
}

func TestExecutor_PanicBecomesOutput(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register("crashy", func(context.Context, json.RawMessage) (string, error) {
		var m map[string]int
		m["lily"] = 1
		return "unreachable", nil
	}, ToolMetadata{}))
	exec := NewExecutor(reg, nil)

	res, err := exec.ExecuteOne(context.Background(), llm.ToolCall{ID: "1", Name: "crashy"})
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.True(t, strings.HasPrefix(res.Output, "tool failed: tool panicked:"), res.Output)
}

func TestExecutor_Timeout(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register("slow", func(ctx context.Context, _ json.RawMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, ToolMetadata{Timeout: 20 * time.Millisecond}))
	exec := NewExecutor(reg, nil)

	res, err := exec.ExecuteOne(context.Background(), llm.ToolCall{ID: "1", Name: "slow"})
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Output, FailurePrefix)
}

func TestObjectSchema(t *testing.T) {
	var schema struct {
		Type       string                       `json:"type"`
		Properties map[string]map[string]string `json:"properties"`
		Required   []string                     `json:"required"`
	}
	require.NoError(t, json.Unmarshal(ObjectSchema(map[string]string{"fileName": "path"}, "fileName"), &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, "string", schema.Properties["fileName"]["type"])
	assert.Equal(t, []string{"fileName"}, schema.Required)
}
