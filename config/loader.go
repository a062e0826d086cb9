// =============================================================================
// 📦 frogteam 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("frogteam.yaml").
//	    WithEnvPrefix("FROGTEAM").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEnvPrefix 环境变量默认前缀
const DefaultEnvPrefix = "FROGTEAM"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 frogteam 的完整配置结构
type Config struct {
	Server       ServerConfig       `yaml:"server" env:"SERVER"`
	Workspace    WorkspaceConfig    `yaml:"workspace" env:"WORKSPACE"`
	Queue        QueueConfig        `yaml:"queue" env:"QUEUE"`
	Window       WindowConfig       `yaml:"window" env:"WINDOW"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
	History      HistoryConfig      `yaml:"history" env:"HISTORY"`
	Database     DatabaseConfig     `yaml:"database" env:"DATABASE"`
	Redis        RedisConfig        `yaml:"redis" env:"REDIS"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口, 0 表示在 HTTP 端口上暴露 /metrics
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时; assignment 请求会阻塞到结果返回
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个客户端的限流
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// JWT HMAC 密钥, 为空时不启用认证
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// WorkspaceConfig 工作区配置
type WorkspaceConfig struct {
	// 工作区根目录, 成员的文件工具以此为根
	Root string `yaml:"root" env:"ROOT"`
	// 团队数据目录, 相对路径基于 Root
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
	// 文件列表与搜索忽略的目录
	IgnoreDirs []string `yaml:"ignore_dirs" env:"IGNORE_DIRS"`
	// .env 文件, 供 setups 中以环境变量名给出的 apiKey 使用
	EnvFile string `yaml:"env_file" env:"ENV_FILE"`
	// 监听团队文件变化并重载
	WatchRoster bool `yaml:"watch_roster" env:"WATCH_ROSTER"`
	// 文件工具等待文件锁的上限
	FileLockWait time.Duration `yaml:"file_lock_wait" env:"FILE_LOCK_WAIT"`
}

// QueueConfig 作业队列配置
type QueueConfig struct {
	MaxQueueSize     int           `yaml:"max_queue_size" env:"MAX_QUEUE_SIZE"`
	PersistThreshold int           `yaml:"persist_threshold" env:"PERSIST_THRESHOLD"`
	AdmitBackoff     time.Duration `yaml:"admit_backoff" env:"ADMIT_BACKOFF"`
	// 快照存储: memory, file, redis
	StoreType string `yaml:"store_type" env:"STORE_TYPE"`
	// 快照文件, 为空时使用 DataDir/queue-backup.json
	SnapshotPath string `yaml:"snapshot_path" env:"SNAPSHOT_PATH"`
	// 启动时恢复上次未完成的作业
	RestoreOnStart bool `yaml:"restore_on_start" env:"RESTORE_ON_START"`
}

// WindowConfig 速率/Token 滑动窗口配置
type WindowConfig struct {
	MaxRPM int           `yaml:"max_rpm" env:"MAX_RPM"`
	MaxTPM int           `yaml:"max_tpm" env:"MAX_TPM"`
	Window time.Duration `yaml:"window" env:"WINDOW"`
}

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	// 工具循环的墙钟上限
	MaxDuration time.Duration `yaml:"max_duration" env:"MAX_DURATION"`
	// 每次模型调用的最大输出 Token
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 作业 Token 估算
	TokenEncoding        string `yaml:"token_encoding" env:"TOKEN_ENCODING"`
	DefaultTokenEstimate int    `yaml:"default_token_estimate" env:"DEFAULT_TOKEN_ESTIMATE"`
	// lead 等待单个成员作业的上限
	DelegationTimeout time.Duration `yaml:"delegation_timeout" env:"DELEGATION_TIMEOUT"`
}

// HistoryConfig 历史账本配置
type HistoryConfig struct {
	// 存储: memory, file, database, redis
	StoreType string `yaml:"store_type" env:"STORE_TYPE"`
	// 文件存储路径, 为空时使用 DataDir/history.json
	FilePath string `yaml:"file_path" env:"FILE_PATH"`
	// database 存储时使用 gorm AutoMigrate 而不是迁移文件
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名, sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Queue.MaxQueueSize <= 0 {
		errs = append(errs, "queue.max_queue_size must be positive")
	}
	if c.Queue.PersistThreshold <= 0 || c.Queue.PersistThreshold > c.Queue.MaxQueueSize {
		errs = append(errs, "queue.persist_threshold must be between 1 and max_queue_size")
	}
	if c.Window.MaxRPM <= 0 || c.Window.MaxTPM <= 0 || c.Window.Window <= 0 {
		errs = append(errs, "window limits must be positive")
	}
	if c.Orchestrator.MaxDuration <= 0 {
		errs = append(errs, "orchestrator.max_duration must be positive")
	}
	switch c.History.StoreType {
	case "memory", "file", "database", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unsupported history.store_type %q", c.History.StoreType))
	}
	switch c.Queue.StoreType {
	case "memory", "file", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unsupported queue.store_type %q", c.Queue.StoreType))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite", "sqlite3":
		return d.Name
	default:
		return ""
	}
}

// =============================================================================
// 📁 工作区路径
// =============================================================================

// DataPath resolves name inside the team data directory.
func (w WorkspaceConfig) DataPath(name string) string {
	dir := w.DataDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(w.Root, dir)
	}
	return filepath.Join(dir, name)
}

func (w WorkspaceConfig) SetupsPath() string  { return w.DataPath("setups.json") }
func (w WorkspaceConfig) PromptsPath() string { return w.DataPath("prompts.json") }

// ProjectsPath is kept one level above the data directory.
func (w WorkspaceConfig) ProjectsPath() string {
	return w.DataPath(filepath.Join("..", "projects.json"))
}

// HistoryPath returns the file history store path.
func (c *Config) HistoryPath() string {
	if c.History.FilePath != "" {
		return c.History.FilePath
	}
	return c.Workspace.DataPath("history.json")
}

// QueueSnapshotPath returns the file queue snapshot path.
func (c *Config) QueueSnapshotPath() string {
	if c.Queue.SnapshotPath != "" {
		return c.Queue.SnapshotPath
	}
	return c.Workspace.DataPath("queue-backup.json")
}
