// =============================================================================
// 📦 frogteam 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Workspace:    DefaultWorkspaceConfig(),
		Queue:        DefaultQueueConfig(),
		Window:       DefaultWindowConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
		History:      DefaultHistoryConfig(),
		Database:     DefaultDatabaseConfig(),
		Redis:        DefaultRedisConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    15 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultWorkspaceConfig 返回默认工作区配置
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Root:         ".",
		DataDir:      ".vscode/frogteam",
		IgnoreDirs:   []string{".git", ".vscode", "node_modules", "dist", "build", "out"},
		EnvFile:      ".env",
		WatchRoster:  true,
		FileLockWait: 10 * time.Second,
	}
}

// DefaultQueueConfig 返回默认队列配置
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxQueueSize:     100,
		PersistThreshold: 50,
		AdmitBackoff:     time.Second,
		StoreType:        "file",
		RestoreOnStart:   true,
	}
}

// DefaultWindowConfig 返回默认窗口配置
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		MaxRPM: 60,
		MaxTPM: 100000,
		Window: time.Minute,
	}
}

// DefaultOrchestratorConfig 返回默认编排器配置
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxDuration:          120 * time.Second,
		MaxTokens:            4096,
		TokenEncoding:        "cl100k_base",
		DefaultTokenEstimate: 1000,
		DelegationTimeout:    10 * time.Minute,
	}
}

// DefaultHistoryConfig 返回默认历史配置
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{StoreType: "file"}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "frogteam",
		Name:            "frogteam.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		PoolSize:  10,
		KeyPrefix: "frogteam:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "frogteam",
		SampleRate:   0.1,
	}
}
