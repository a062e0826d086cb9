// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 100, cfg.Queue.MaxQueueSize)
	assert.Equal(t, 50, cfg.Queue.PersistThreshold)
	assert.Equal(t, time.Second, cfg.Queue.AdmitBackoff)
	assert.Equal(t, 60, cfg.Window.MaxRPM)
	assert.Equal(t, 100000, cfg.Window.MaxTPM)
	assert.Equal(t, time.Minute, cfg.Window.Window)
	assert.Equal(t, 120*time.Second, cfg.Orchestrator.MaxDuration)
	assert.Equal(t, 4096, cfg.Orchestrator.MaxTokens)
	assert.Equal(t, "file", cfg.History.StoreType)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "frogteam.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
workspace:
  root: /srv/site
  ignore_dirs: [".git", "vendor"]
queue:
  max_queue_size: 10
  persist_threshold: 5
  store_type: redis
history:
  store_type: database
database:
  driver: postgres
  name: team
log:
  level: debug
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/srv/site", cfg.Workspace.Root)
	assert.Equal(t, []string{".git", "vendor"}, cfg.Workspace.IgnoreDirs)
	assert.Equal(t, 10, cfg.Queue.MaxQueueSize)
	assert.Equal(t, "redis", cfg.Queue.StoreType)
	assert.Equal(t, "database", cfg.History.StoreType)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未在文件中出现的字段保留默认值
	assert.Equal(t, time.Second, cfg.Queue.AdmitBackoff)
	assert.Equal(t, "frogteam", cfg.Telemetry.ServiceName)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))
	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("FROGTEAM_SERVER_HTTP_PORT", "9000")
	t.Setenv("FROGTEAM_WINDOW_MAX_RPM", "30")
	t.Setenv("FROGTEAM_ORCHESTRATOR_MAX_DURATION", "45s")
	t.Setenv("FROGTEAM_SERVER_RATE_LIMIT_RPS", "2.5")
	t.Setenv("FROGTEAM_TELEMETRY_ENABLED", "true")
	t.Setenv("FROGTEAM_WORKSPACE_IGNORE_DIRS", "a, b ,c")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 30, cfg.Window.MaxRPM)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.MaxDuration)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Workspace.IgnoreDirs)
}

func TestLoader_CustomPrefixAndBadValue(t *testing.T) {
	t.Setenv("TEAM_QUEUE_MAX_QUEUE_SIZE", "not-a-number")
	_, err := NewLoader().WithEnvPrefix("TEAM").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEAM_QUEUE_MAX_QUEUE_SIZE")
}

func TestLoader_Validator(t *testing.T) {
	cfg, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Setenv("FROGTEAM_HISTORY_STORE_TYPE", "mongo")
	_, err = NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.store_type")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, "HTTP port"},
		{"threshold above size", func(c *Config) { c.Queue.PersistThreshold = 500 }, "persist_threshold"},
		{"zero window", func(c *Config) { c.Window.Window = 0 }, "window"},
		{"queue store", func(c *Config) { c.Queue.StoreType = "database" }, "queue.store_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", d.DSN())
	d.Driver = "mysql"
	assert.Equal(t, "u:p@tcp(db:5432)/n?parseTime=true", d.DSN())
	d.Driver = "sqlite"
	assert.Equal(t, "n", d.DSN())
	d.Driver = "oracle"
	assert.Equal(t, "", d.DSN())
}

func TestWorkspacePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace.Root = "/repo"

	assert.Equal(t, "/repo/.vscode/frogteam/setups.json", cfg.Workspace.SetupsPath())
	assert.Equal(t, "/repo/.vscode/frogteam/prompts.json", cfg.Workspace.PromptsPath())
	assert.Equal(t, "/repo/.vscode/projects.json", cfg.Workspace.ProjectsPath())
	assert.Equal(t, "/repo/.vscode/frogteam/history.json", cfg.HistoryPath())
	assert.Equal(t, "/repo/.vscode/frogteam/queue-backup.json", cfg.QueueSnapshotPath())

	cfg.History.FilePath = "/tmp/h.json"
	cfg.Workspace.DataDir = "/data"
	assert.Equal(t, "/tmp/h.json", cfg.HistoryPath())
	assert.Equal(t, "/data/queue-backup.json", cfg.QueueSnapshotPath())
}
