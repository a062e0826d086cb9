package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJobs() []JobSpec {
	ts := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	return []JobSpec{
		{ID: "j1", Type: JobMemberAssignment, Caller: "Arch", Member: "Dev", Question: "build it", ConversationID: "c1", ParentID: "p1", Timestamp: ts, TokenEstimate: 12},
		{ID: "j2", Type: JobDalleImage, Caller: "user", Member: "Designer", Question: "a frog", ConversationID: "c2", Timestamp: ts.Add(time.Second), TokenEstimate: 1000},
	}
}

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, store JobStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	got, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	want := sampleJobs()
	require.NoError(t, store.SaveSnapshot(ctx, want))
	got, err = store.LoadSnapshot(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, store.SaveSnapshot(ctx, want[:1]))
	got, err = store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, store.Clear(ctx))
	got, err = store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryJobStore(t *testing.T) {
	store := NewMemoryJobStore()
	exerciseStore(t, store)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.SaveSnapshot(context.Background(), nil), ErrStoreClosed)
}

func TestFileJobStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frogteam", DefaultSnapshotFile)
	store, err := NewFileJobStore(path)
	require.NoError(t, err)
	exerciseStore(t, store)

	require.NoError(t, store.SaveSnapshot(context.Background(), sampleJobs()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "member-assignment"`)
	assert.Contains(t, string(data), `"conversationId": "c1"`)

	require.NoError(t, store.Close())
	_, err = store.LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestFileJobStore_EmptyPath(t *testing.T) {
	_, err := NewFileJobStore("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRedisJobStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisJobStoreWithClient(client, "test:")
	exerciseStore(t, store)

	require.NoError(t, store.SaveSnapshot(context.Background(), sampleJobs()))
	assert.True(t, mr.Exists("test:queue:snapshot"))
	require.NoError(t, store.Close())
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewJobStore(t *testing.T) {
	s, err := NewJobStore(StoreConfig{Type: StoreTypeMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryJobStore{}, s)

	s, err = NewJobStore(StoreConfig{Type: StoreTypeFile, FilePath: filepath.Join(t.TempDir(), "q.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileJobStore{}, s)

	mr := miniredis.RunT(t)
	s, err = NewJobStore(StoreConfig{Type: StoreTypeRedis, Redis: RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisJobStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewJobStore(StoreConfig{Type: "mongo"})
	assert.Error(t, err)
}

func TestJobType_Valid(t *testing.T) {
	assert.True(t, JobMemberAssignment.Valid())
	assert.True(t, JobStabilityImage.Valid())
	assert.False(t, JobType("video").Valid())
}
