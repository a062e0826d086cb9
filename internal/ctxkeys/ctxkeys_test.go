package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := ConversationID(ctx)
	assert.False(t, ok)

	ctx = WithTraceID(ctx, "req-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithConversationID(ctx, "conv-1")
	ctx = WithParentEntryID(ctx, "entry-1")
	ctx = WithMember(ctx, "Arch")

	for name, got := range map[string]func(context.Context) (string, bool){
		"req-1":   TraceID,
		"run-1":   RunID,
		"conv-1":  ConversationID,
		"entry-1": ParentEntryID,
		"Arch":    Member,
	} {
		v, ok := got(ctx)
		assert.True(t, ok)
		assert.Equal(t, name, v)
	}

	_, ok = Member(WithMember(context.Background(), ""))
	assert.False(t, ok)
}
