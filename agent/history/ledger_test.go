package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/frogteam/frogteam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
}

func newTestLedger(t *testing.T, store Store) *Ledger {
	t.Helper()
	clock := &stepClock{t: time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC)}
	l := NewLedger(store, zaptest.NewLogger(t), WithClock(clock.Now), WithIDGenerator(sequentialIDs()))
	require.NoError(t, l.Load(context.Background()))
	return l
}

func TestLedger_AddEntryFillsFields(t *testing.T) {
	l := newTestLedger(t, NewMemoryStore())
	ctx := context.Background()

	id, err := l.AddEntry(ctx, NewEntry{
		AskBy: "user", ResponseBy: "Dev", Model: "gpt-4o",
		Ask: "q", Answer: "line1\nline2",
		LookupTag: TagMemberTask, ConversationID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-01", id)

	e, ok := l.FindEntryByID(id)
	require.True(t, ok)
	assert.True(t, e.Markdown)
	assert.Equal(t, types.NoProject, e.ProjectName)
	assert.Equal(t, time.Date(2024, 6, 4, 9, 0, 1, 0, time.UTC), e.Timestamp)

	_, err = l.AddEntry(ctx, NewEntry{LookupTag: "Bogus"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	assert.Equal(t, 1, l.Len())
}

type failingStore struct {
	MemoryStore
	fail bool
}

func (s *failingStore) Save(ctx context.Context, entries []Entry) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, entries)
}

func TestLedger_RollsBackOnPersistFailure(t *testing.T) {
	store := &failingStore{}
	l := newTestLedger(t, store)
	ctx := context.Background()

	parent, err := l.AddEntry(ctx, NewEntry{LookupTag: TagProjectDescription, ConversationID: "c"})
	require.NoError(t, err)

	store.fail = true
	_, err = l.AddEntry(ctx, NewEntry{LookupTag: TagToolOutput, ConversationID: "c", ParentID: parent})
	require.Error(t, err)

	assert.Equal(t, 1, l.Len())
	assert.Empty(t, l.FindChildrenByID(parent))
	assert.Len(t, l.FindEntriesByConversationID("c", false), 1)
	_, ok := l.FindEntryByID("id-02")
	assert.False(t, ok)
}

func TestLedger_IndexesAndQueries(t *testing.T) {
	l := newTestLedger(t, NewMemoryStore())
	ctx := context.Background()

	task, _ := l.AddEntry(ctx, NewEntry{LookupTag: TagMemberTask, ConversationID: "c1", ProjectName: "alpha"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagToolOutput, ConversationID: "c1", ParentID: task, ResponseBy: "getFileContentApi"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagToolOutput, ConversationID: "c1", ParentID: task, ResponseBy: "saveContentToFileApi"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberResponse, ConversationID: "c1", ParentID: task})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberTask, ConversationID: "c2"})

	assert.Len(t, l.FindChildrenByID(task), 3)
	assert.Len(t, l.FindEntriesByConversationID("c1", false), 4)
	tools := l.FindEntriesByConversationID("c1", true)
	require.Len(t, tools, 2)
	assert.Equal(t, "getFileContentApi", tools[0].ResponseBy)
	assert.Equal(t, "saveContentToFileApi", tools[1].ResponseBy)
	assert.Empty(t, l.FindEntriesByConversationID("nope", false))

	project, err := l.GetProjectByHistoryID(task)
	require.NoError(t, err)
	assert.Equal(t, "alpha", project)
	_, err = l.GetProjectByHistoryID("missing")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))

	byProject := l.GroupByProject()
	require.Len(t, byProject, 2)
	assert.Equal(t, "alpha", byProject[0].Key)
	assert.Len(t, byProject[0].Entries, 1)
	assert.Equal(t, types.NoProject, byProject[1].Key)
	assert.Len(t, byProject[1].Entries, 4)

	byDate := l.GroupByDate()
	require.Len(t, byDate, 1)
	assert.Equal(t, "Tue Jun 04 2024", byDate[0].Key)
}

func TestLedger_BuildConversationThreadsOrder(t *testing.T) {
	l := newTestLedger(t, NewMemoryStore())
	ctx := context.Background()

	parent, _ := l.AddEntry(ctx, NewEntry{LookupTag: TagProjectDescription, Ask: "build it", Answer: "plan"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagProjectResponse, ParentID: parent, Ask: "build it", Answer: "summary"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberResponse, ParentID: parent, Ask: "part a", Answer: "did a"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagToolOutput, ParentID: parent, Ask: "args: {}", Answer: "ok"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberResponse, ParentID: parent, Ask: "part b", Answer: "did b"})

	assert.Equal(t, []Thread{
		{Human: "part a", AI: "did a"},
		{Human: "part b", AI: "did b"},
		{Human: "build it", AI: "summary"},
	}, l.BuildConversationThreads(parent))
	assert.Empty(t, l.BuildConversationThreads("missing"))
}

func TestLedger_FetchLatestResponse(t *testing.T) {
	l := newTestLedger(t, NewMemoryStore())
	ctx := context.Background()

	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberResponse, ProjectName: "web", Answer: "first"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagProjectResponse, ProjectName: "web", Answer: "second"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberTask, ProjectName: "web", Answer: "not a response"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberResponse, ProjectName: "web", Answer: "third"})
	_, _ = l.AddEntry(ctx, NewEntry{LookupTag: TagMemberResponse, ProjectName: "api", Ask: "touch src/web", Answer: "other"})

	e, ok := l.FetchLatestResponse("web")
	require.True(t, ok)
	assert.Equal(t, "other", e.Answer, "ask mentioning the directory also matches")

	e, ok = l.FetchLatestResponse("api")
	require.True(t, ok)
	assert.Equal(t, "other", e.Answer)

	_, ok = l.FetchLatestResponse("mobile")
	assert.False(t, ok)
}

func TestLedger_Subscribe(t *testing.T) {
	l := newTestLedger(t, NewMemoryStore())
	ch, cancel := l.Subscribe(4)

	id, err := l.AddEntry(context.Background(), NewEntry{LookupTag: TagMemberTask})
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, id, e.ID)
	case <-time.After(time.Second):
		t.Fatal("no entry delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	_, err = l.AddEntry(context.Background(), NewEntry{LookupTag: TagMemberTask})
	require.NoError(t, err)
}
