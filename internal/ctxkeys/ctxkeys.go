// Package ctxkeys holds typed context keys shared across packages.
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey        contextKey = "trace_id"
	runIDKey          contextKey = "run_id"
	conversationIDKey contextKey = "conversation_id"
	parentEntryIDKey  contextKey = "parent_entry_id"
	memberKey         contextKey = "member"
)

func withString(ctx context.Context, key contextKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithTraceID 设置 TraceID (HTTP 请求 ID)
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withString(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) { return stringValue(ctx, traceIDKey) }

// WithRunID 设置 RunID (一次编排运行)
func WithRunID(ctx context.Context, runID string) context.Context {
	return withString(ctx, runIDKey, runID)
}

// RunID 获取 RunID
func RunID(ctx context.Context) (string, bool) { return stringValue(ctx, runIDKey) }

// WithConversationID 设置当前运行所属的会话
func WithConversationID(ctx context.Context, id string) context.Context {
	return withString(ctx, conversationIDKey, id)
}

// ConversationID 获取会话 ID
func ConversationID(ctx context.Context) (string, bool) { return stringValue(ctx, conversationIDKey) }

// WithParentEntryID 设置工具调用产生的历史条目应挂靠的父条目
func WithParentEntryID(ctx context.Context, id string) context.Context {
	return withString(ctx, parentEntryIDKey, id)
}

// ParentEntryID 获取父条目 ID
func ParentEntryID(ctx context.Context) (string, bool) { return stringValue(ctx, parentEntryIDKey) }

// WithMember 设置正在执行的成员名
func WithMember(ctx context.Context, name string) context.Context {
	return withString(ctx, memberKey, name)
}

// Member 获取成员名
func Member(ctx context.Context) (string, bool) { return stringValue(ctx, memberKey) }
