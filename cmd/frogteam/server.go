package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/frogteam/frogteam/agent/assignment"
	"github.com/frogteam/frogteam/agent/hierarchical"
	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/agent/persistence"
	"github.com/frogteam/frogteam/agent/queue"
	"github.com/frogteam/frogteam/agent/roster"
	"github.com/frogteam/frogteam/api/handlers"
	"github.com/frogteam/frogteam/config"
	"github.com/frogteam/frogteam/internal/database"
	"github.com/frogteam/frogteam/internal/metrics"
	"github.com/frogteam/frogteam/internal/server"
	"github.com/frogteam/frogteam/internal/telemetry"
	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/budget"
	"github.com/frogteam/frogteam/llm/factory"
	"github.com/frogteam/frogteam/llm/tokenizer"
	"github.com/frogteam/frogteam/llm/tools"
)

// =============================================================================
// 🖥️ Server 组装所有组件
// =============================================================================

// Server owns the long-lived components started by "serve".
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	telemetry *telemetry.Providers
	collector *metrics.Collector
	pool      *database.PoolManager
	ledger    *history.Ledger
	jobStore  persistence.JobStore
	queue     *queue.Queue
	watcher   *roster.Watcher
	gauges    metric.Registration

	httpServer    *server.Manager
	metricsServer *server.Manager
}

// NewServer builds every component from cfg. Partially built components are
// released when a later step fails.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Server, err error) {
	s := &Server{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.close(context.Background())
		}
	}()

	// 1. 遥测与指标
	s.telemetry, err = telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.collector = metrics.NewCollector("frogteam", logger)

	// 2. 历史账本
	store, pool, err := openHistoryStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	s.pool = pool
	s.ledger = history.NewLedger(store, logger)
	if err = s.ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// 3. 团队文件
	setups := roster.NewSetupRegistry(cfg.Workspace.SetupsPath(), logger)
	prompts := roster.NewPromptRegistry(cfg.Workspace.PromptsPath(), logger)
	projects := roster.NewProjectRegistry(cfg.Workspace.ProjectsPath(), logger)
	for _, l := range []interface{ Load(context.Context) error }{setups, prompts, projects} {
		if err = l.Load(ctx); err != nil {
			return nil, fmt.Errorf("load roster: %w", err)
		}
	}
	if missing := prompts.ValidateRequired(); len(missing) > 0 {
		logger.Warn("required prompts are missing", zap.Any("missing", missing))
	}
	if cfg.Workspace.WatchRoster {
		s.watcher, err = roster.NewWatcher(logger, setups, prompts, projects)
		if err != nil {
			return nil, fmt.Errorf("create roster watcher: %w", err)
		}
		s.watcher.OnReload(func(path string, err error) {
			if err != nil {
				logger.Warn("roster reload failed", zap.String("path", path), zap.Error(err))
			}
		})
	}

	// 4. 速率窗口与作业快照
	window := budget.NewMetricsWindow(budget.Config{
		MaxRPM: cfg.Window.MaxRPM,
		MaxTPM: cfg.Window.MaxTPM,
		Window: cfg.Window.Window,
	}, budget.WithObserver(s.collector.ObserveWindow))

	s.jobStore, err = persistence.NewJobStore(persistence.StoreConfig{
		Type:     persistence.StoreType(cfg.Queue.StoreType),
		FilePath: cfg.QueueSnapshotPath(),
		Redis: persistence.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	// 5. 运行时上下文
	workspace := tools.NewWorkspace(cfg.Workspace.Root, cfg.Workspace.IgnoreDirs, logger)
	workspace.LockWait = cfg.Workspace.FileLockWait
	rt := queue.RuntimeContext{
		Ledger:    s.ledger,
		Setups:    setups,
		Prompts:   prompts,
		Projects:  projects,
		Workspace: workspace,
		Providers: func(setup roster.Setup) (llm.Provider, error) {
			return factory.NewProviderFromConfig(setup.ProviderConfig(), logger)
		},
		Tools: func() (*tools.Registry, error) {
			reg := tools.NewRegistry(logger)
			if err := workspace.Register(reg); err != nil {
				return nil, err
			}
			return reg, nil
		},
	}

	// 6. 编排器, 队列, 协调器
	orch := assignment.New(rt,
		assignment.WithConfig(assignment.Config{
			MaxDuration: cfg.Orchestrator.MaxDuration,
			MaxTokens:   cfg.Orchestrator.MaxTokens,
		}),
		assignment.WithRecorder(s.collector),
		assignment.WithWindow(window),
		assignment.WithTracerProvider(s.telemetry.TracerProvider()),
		assignment.WithLogger(logger),
	)
	s.queue = queue.New(queue.Config{
		MaxQueueSize:     cfg.Queue.MaxQueueSize,
		PersistThreshold: cfg.Queue.PersistThreshold,
		AdmitBackoff:     cfg.Queue.AdmitBackoff,
	}, window, rt,
		queue.WithHandler(queue.JobMemberAssignment, orch.HandleJob),
		queue.WithStore(s.jobStore),
		queue.WithEstimator(tokenizer.NewEstimator(cfg.Orchestrator.TokenEncoding, cfg.Orchestrator.DefaultTokenEstimate)),
		queue.WithRecorder(s.collector),
		queue.WithLogger(logger),
	)
	if cfg.Queue.RestoreOnStart {
		n, rerr := s.queue.Restore(ctx)
		if rerr != nil {
			logger.Warn("queue restore failed", zap.Error(rerr))
		} else if n > 0 {
			logger.Info("restored queued jobs", zap.Int("count", n))
		}
	}
	coord := hierarchical.NewCoordinator(setups, orch, s.queue,
		hierarchical.Config{DelegationTimeout: cfg.Orchestrator.DelegationTimeout}, logger)

	s.gauges, err = telemetry.RegisterQueueGauges(s.telemetry.MeterProvider(), s.queue.Metrics,
		func() int { return len(s.queue.Pending()) })
	if err != nil {
		return nil, fmt.Errorf("register queue gauges: %w", err)
	}

	// 7. HTTP
	health := handlers.NewHealthHandler(logger)
	if s.pool != nil {
		health.RegisterCheck(handlers.NewFuncCheck("database", s.pool.Ping))
	}
	health.RegisterCheck(handlers.NewFuncCheck("job_store", s.jobStore.Ping))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	assignments := handlers.NewAssignmentHandler(coord, s.queue, projects, logger)
	mux.HandleFunc("POST /api/v1/assignments", assignments.HandleAssign)
	mux.HandleFunc("GET /api/v1/projects", assignments.HandleListProjects)
	mux.HandleFunc("POST /api/v1/projects", assignments.HandleRunProject)
	mux.HandleFunc("POST /api/v1/projects/register", assignments.HandleRegisterProject)

	hist := handlers.NewHistoryHandler(s.ledger, logger)
	mux.HandleFunc("GET /api/v1/history", hist.HandleList)
	mux.HandleFunc("GET /api/v1/history/grouped", hist.HandleGrouped)
	mux.HandleFunc("GET /api/v1/history/stream", hist.HandleStream)
	mux.HandleFunc("GET /api/v1/history/{id}", hist.HandleGet)
	mux.HandleFunc("GET /api/v1/history/{id}/children", hist.HandleChildren)
	mux.HandleFunc("GET /api/v1/history/{id}/threads", hist.HandleThreads)
	mux.HandleFunc("GET /api/v1/history/{id}/project", hist.HandleProject)
	mux.HandleFunc("GET /api/v1/conversations/{id}", hist.HandleConversation)

	mux.HandleFunc("GET /api/v1/queue/metrics", handlers.NewQueueHandler(s.queue).HandleMetrics)

	rosterHandler := handlers.NewRosterHandler(setups, prompts, logger, setups, prompts, projects)
	mux.HandleFunc("GET /api/v1/roster", rosterHandler.HandleGet)
	mux.HandleFunc("POST /api/v1/roster/reload", rosterHandler.HandleReload)

	if cfg.Server.MetricsPort == 0 {
		mux.Handle("GET /metrics", promhttp.Handler())
	} else {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", promhttp.Handler())
		s.metricsServer = server.NewManager(metricsMux, server.Config{
			Name:            "metrics",
			Addr:            fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}, logger)
	}

	s.httpServer = server.NewManager(s.buildHandler(ctx, mux), server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	return s, nil
}

// buildHandler wraps mux in the middleware chain, outermost first.
func (s *Server) buildHandler(ctx context.Context, mux http.Handler) http.Handler {
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		OTelTracing(),
		MetricsMiddleware(s.collector),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	if s.cfg.Server.JWTSecret != "" {
		chain = append(chain, JWTAuth(s.cfg.Server.JWTSecret,
			[]string{"/health", "/healthz", "/ready", "/version", "/metrics"}, s.logger))
	} else {
		s.logger.Warn("JWT secret not configured, API authentication disabled")
	}
	return Chain(mux, chain...)
}

// Run serves until ctx is cancelled, then drains the queue and releases
// every component.
func (s *Server) Run(ctx context.Context) error {
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			s.logger.Warn("roster watcher not started", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpServer.Run(gctx) })
	if s.metricsServer != nil {
		g.Go(func() error { return s.metricsServer.Run(gctx) })
	}
	runErr := g.Wait()

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	s.close(shutdownCtx)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Server.ShutdownTimeout > 0 {
		return s.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}

// close releases components in reverse build order. Nil components are
// skipped so it also serves a failed NewServer.
func (s *Server) close(ctx context.Context) {
	if s.queue != nil {
		if err := s.queue.Shutdown(ctx); err != nil {
			s.logger.Warn("queue shutdown", zap.Error(err))
		}
	}
	if s.gauges != nil {
		_ = s.gauges.Unregister()
	}
	if s.watcher != nil {
		_ = s.watcher.Stop()
	}
	if s.jobStore != nil {
		_ = s.jobStore.Close()
	}
	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.logger.Warn("history close", zap.Error(err))
		}
	}
	if s.pool != nil {
		_ = s.pool.Close()
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}
}
