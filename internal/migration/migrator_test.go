package migration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/config"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"postgres", DialectPostgres, false},
		{"postgresql", DialectPostgres, false},
		{"pg", DialectPostgres, false},
		{"POSTGRES", DialectPostgres, false},
		{"mysql", DialectMySQL, false},
		{"mariadb", DialectMySQL, false},
		{"sqlite", DialectSQLite, false},
		{" sqlite3 ", DialectSQLite, false},
		{"oracle", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDialect(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/team?sslmode=require",
		BuildURL(DialectPostgres, "db", 5432, "team", "u", "p", "require"))
	assert.Equal(t, "postgres://u:p@db:5432/team?sslmode=disable",
		BuildURL(DialectPostgres, "db", 5432, "team", "u", "p", ""))
	assert.Equal(t, "u:p@tcp(db:3306)/team?parseTime=true&multiStatements=true",
		BuildURL(DialectMySQL, "db", 3306, "team", "u", "p", ""))
	assert.Equal(t, "file:data/frogteam.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		BuildURL(DialectSQLite, "", 0, "data/frogteam.db", "", "", ""))
	assert.Empty(t, BuildURL("oracle", "db", 1, "x", "", "", ""))
}

func TestAvailable_EveryDialectShipsSameVersions(t *testing.T) {
	var want []Version
	for i, d := range []Dialect{DialectSQLite, DialectPostgres, DialectMySQL} {
		versions, err := Available(d)
		require.NoError(t, err, d)
		if i == 0 {
			want = versions
			require.Len(t, want, 2)
			assert.Equal(t, Version{Number: 1, Name: "create_history_entries"}, want[0])
			assert.Equal(t, Version{Number: 2, Name: "index_project_responses"}, want[1])
			continue
		}
		assert.Equal(t, want, versions, d)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Dialect: DialectSQLite}, nil)
	assert.Error(t, err)

	_, err = New(Config{Dialect: "oracle", URL: "x"}, nil)
	assert.Error(t, err)

	_, err = FromDatabaseConfig(config.DatabaseConfig{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestSQLite_UpDownAndStatus(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frogteam.db")

	m, err := FromDatabaseConfig(config.DatabaseConfig{Driver: "sqlite", Name: path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	v, dirty, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "second up is a no-op")

	info, err := m.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Info{Current: 2, Total: 2, Applied: 2}, info)

	require.NoError(t, m.Down(ctx))
	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.True(t, status[0].Applied)
	assert.False(t, status[1].Applied)

	require.NoError(t, m.DownAll(ctx))
	info, err = m.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Pending)

	require.NoError(t, m.Goto(ctx, 1))
	v, _, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

// The migrated table must be usable by the history store without AutoMigrate.
func TestSQLite_SchemaServesHistoryStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frogteam.db")

	m, err := New(Config{Dialect: DialectSQLite, URL: BuildURL(DialectSQLite, "", 0, path, "", "", "")}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Close())

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	store, err := history.NewGormStore(db, false)
	require.NoError(t, err)

	entry := history.Entry{
		ID:             "e-1",
		AskBy:          "Arch",
		ResponseBy:     "Dev",
		Timestamp:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Ask:            "build it",
		Answer:         "done",
		LookupTag:      history.TagMemberTask,
		ConversationID: "c-1",
		ProjectName:    "web",
	}
	require.NoError(t, store.Append(ctx, entry))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e-1", got[0].ID)
	assert.Equal(t, history.TagMemberTask, got[0].LookupTag)
}

type fakeMigrator struct {
	version uint
	dirty   bool
	err     error
	calls   []string
}

func (f *fakeMigrator) Up(context.Context) error {
	f.calls = append(f.calls, "up")
	f.version = 2
	return f.err
}
func (f *fakeMigrator) Down(context.Context) error {
	f.calls = append(f.calls, "down")
	f.version = 1
	return f.err
}
func (f *fakeMigrator) DownAll(context.Context) error {
	f.calls = append(f.calls, "downall")
	f.version = 0
	return f.err
}
func (f *fakeMigrator) Steps(_ context.Context, n int) error {
	f.calls = append(f.calls, "steps")
	f.version = uint(int(f.version) + n)
	return f.err
}
func (f *fakeMigrator) Goto(_ context.Context, v uint) error { f.version = v; return f.err }
func (f *fakeMigrator) Force(_ context.Context, v int) error {
	f.version = uint(v)
	f.dirty = false
	return f.err
}
func (f *fakeMigrator) Version(context.Context) (uint, bool, error) {
	return f.version, f.dirty, f.err
}
func (f *fakeMigrator) Status(context.Context) ([]Version, error) {
	return []Version{
		{Number: 1, Name: "create_history_entries", Applied: f.version >= 1},
		{Number: 2, Name: "index_project_responses", Applied: f.version >= 2, Dirty: f.dirty},
	}, f.err
}
func (f *fakeMigrator) Info(ctx context.Context) (*Info, error) {
	versions, _ := f.Status(ctx)
	return summarize(versions, f.version, f.dirty), f.err
}
func (f *fakeMigrator) Close() error { return nil }

func TestCLI(t *testing.T) {
	color.NoColor = true
	ctx := context.Background()
	fake := &fakeMigrator{}
	var buf bytes.Buffer
	cli := NewCLI(fake)
	cli.SetOutput(&buf)

	require.NoError(t, cli.RunVersion(ctx))
	assert.Contains(t, buf.String(), "No migrations applied yet.")

	buf.Reset()
	require.NoError(t, cli.RunUp(ctx))
	assert.Contains(t, buf.String(), "Migrations complete. Current version: 2")

	buf.Reset()
	require.NoError(t, cli.RunStatus(ctx))
	assert.Regexp(t, `000001\s+create_history_entries\s+Applied`, buf.String())
	assert.Contains(t, buf.String(), "Total: 2, Applied: 2, Pending: 0")

	buf.Reset()
	require.NoError(t, cli.RunSteps(ctx, -1))
	assert.Contains(t, buf.String(), "Rolling back 1 migration(s)...")
	assert.Contains(t, buf.String(), "Current version: 1")
	assert.Error(t, cli.RunSteps(ctx, 0))

	fake.dirty = true
	buf.Reset()
	require.NoError(t, cli.RunVersion(ctx))
	assert.Equal(t, "Current version: 1 (dirty)\n", buf.String())

	buf.Reset()
	require.NoError(t, cli.RunForce(ctx, 1))
	assert.Equal(t, "Version forced to 1\n", buf.String())

	buf.Reset()
	require.NoError(t, cli.RunInfo(ctx))
	assert.Contains(t, buf.String(), "Pending Migrations: 1")

	fake.err = errors.New("locked")
	assert.ErrorContains(t, cli.RunDown(ctx), "locked")
	assert.Equal(t, []string{"up", "steps", "down"}, fake.calls)
}
