package assignment

import (
	"context"
	"testing"

	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/tools"
	"github.com/frogteam/frogteam/testutil/fixtures"
	"github.com/frogteam/frogteam/testutil/mocks"
	"github.com/frogteam/frogteam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInit, StateAwaitingModel, true},
		{StateInit, StateSummarizing, false},
		{StateAwaitingModel, StateToolsPending, true},
		{StateAwaitingModel, StateSummarizing, true},
		{StateAwaitingModel, StateExecutingTools, false},
		{StateToolsPending, StateExecutingTools, true},
		{StateExecutingTools, StateAwaitingModel, true},
		{StateExecutingTools, StateSummarizing, false},
		{StateSummarizing, StateDone, true},
		{StateSummarizing, StateAwaitingModel, false},
		{StateDone, StateAwaitingModel, false},
		{StateErrored, StateInit, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
	for _, s := range []State{StateInit, StateAwaitingModel, StateToolsPending, StateExecutingTools, StateSummarizing} {
		assert.True(t, CanTransition(s, StateErrored), s)
		assert.False(t, s.Terminal(), s)
	}
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateErrored.Terminal())
}

func TestStep_Individually(t *testing.T) {
	env := newEnv(t, mocks.NewMockProvider().WithScript(mocks.TextStep("hello")))
	o := New(env.rt)
	r := o.newRun(env.rt, devAssignment("q"), "run-1")
	ctx := context.Background()

	r.step(ctx)
	require.Equal(t, StateAwaitingModel, r.state)
	require.Len(t, r.messages, 2)
	assert.True(t, r.registry.Has(FetchHistoryTool))

	r.step(ctx)
	require.Equal(t, StateSummarizing, r.state)
	assert.Equal(t, "hello", r.lastContent)
	assert.NotEmpty(t, r.taskEntryID)

	// tools pending with a call the registry does not know
	r.state = StateToolsPending
	r.pending = []llm.ToolCall{{Name: "nope"}}
	r.step(ctx)
	assert.Equal(t, StateErrored, r.state)
	assert.True(t, types.IsErrorCode(r.err, types.ErrUnknownTool))
}

func TestStep_ToolsPendingAssignsMissingCallIDs(t *testing.T) {
	env := newEnv(t, mocks.NewMockProvider())
	r := New(env.rt).newRun(env.rt, devAssignment("q"), "run-1")
	r.registry = tools.NewRegistry(nil)
	require.NoError(t, env.rt.Workspace.Register(r.registry))
	r.state = StateToolsPending
	r.pending = []llm.ToolCall{{Name: tools.GetFileContentTool}}

	r.step(context.Background())
	assert.Equal(t, StateExecutingTools, r.state)
	assert.NotEmpty(t, r.pending[0].ID)
}

func TestTransition_RejectsIllegalMove(t *testing.T) {
	env := newEnv(t, mocks.NewMockProvider())
	r := New(env.rt).newRun(env.rt, Assignment{Member: fixtures.DevSetup()}, "run-1")
	r.state = StateSummarizing
	r.transition(StateToolsPending)
	assert.Equal(t, StateErrored, r.state)
	assert.Equal(t, ErrInvalidTransition{From: StateSummarizing, To: StateToolsPending}, r.err)
}
