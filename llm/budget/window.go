package budget

import (
	"sync"
	"time"
)

// 默认限额
const (
	DefaultMaxRPM = 60
	DefaultMaxTPM = 100000
	DefaultWindow = 60 * time.Second
)

// Config 配置滑动窗口限额。
type Config struct {
	MaxRPM int           `json:"max_rpm" yaml:"max_rpm"`
	MaxTPM int           `json:"max_tpm" yaml:"max_tpm"`
	Window time.Duration `json:"window" yaml:"window"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{MaxRPM: DefaultMaxRPM, MaxTPM: DefaultMaxTPM, Window: DefaultWindow}
}

// Load is the request and token usage inside the current window.
type Load struct {
	RequestCount int `json:"rpm"`
	TokenSum     int `json:"tpm"`
}

// Snapshot mirrors the queue metrics reported to callers.
type Snapshot struct {
	Load
	MaxRPM            int           `json:"max_rpm"`
	MaxTPM            int           `json:"max_tpm"`
	TotalProcessed    int64         `json:"total_processed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// Observer receives the load after every recorded sample.
type Observer func(Load)

type sample struct {
	at     time.Time
	tokens int
}

// MetricsWindow is a sliding window of usage samples.
type MetricsWindow struct {
	cfg      Config
	now      func() time.Time
	observer Observer

	mu             sync.Mutex
	samples        []sample
	totalProcessed int64
	totalDuration  time.Duration
}

// Option configures a MetricsWindow.
type Option func(*MetricsWindow)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(w *MetricsWindow) { w.now = now }
}

// WithObserver registers a callback invoked after each RecordUsage.
func WithObserver(o Observer) Option {
	return func(w *MetricsWindow) { w.observer = o }
}

// NewMetricsWindow creates a window; zero config fields take defaults.
func NewMetricsWindow(cfg Config, opts ...Option) *MetricsWindow {
	if cfg.MaxRPM <= 0 {
		cfg.MaxRPM = DefaultMaxRPM
	}
	if cfg.MaxTPM <= 0 {
		cfg.MaxTPM = DefaultMaxTPM
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	w := &MetricsWindow{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RecordUsage appends a sample stamped with the current time.
func (w *MetricsWindow) RecordUsage(tokens int) {
	w.mu.Lock()
	w.samples = append(w.samples, sample{at: w.now(), tokens: tokens})
	load := w.pruneLocked()
	obs := w.observer
	w.mu.Unlock()

	if obs != nil {
		obs(load)
	}
}

// RecordProcessing tracks job duration for the average processing time.
func (w *MetricsWindow) RecordProcessing(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.totalProcessed++
	w.totalDuration += d
}

// CurrentLoad prunes expired samples and returns the remaining totals.
func (w *MetricsWindow) CurrentLoad() Load {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pruneLocked()
}

// CanAdmit reports whether another request fits in both limits.
func (w *MetricsWindow) CanAdmit() bool {
	load := w.CurrentLoad()
	return load.RequestCount < w.cfg.MaxRPM && load.TokenSum < w.cfg.MaxTPM
}

// Snapshot returns the current load together with limits and processing stats.
func (w *MetricsWindow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		Load:           w.pruneLocked(),
		MaxRPM:         w.cfg.MaxRPM,
		MaxTPM:         w.cfg.MaxTPM,
		TotalProcessed: w.totalProcessed,
	}
	if w.totalProcessed > 0 {
		s.AvgProcessingTime = w.totalDuration / time.Duration(w.totalProcessed)
	}
	return s
}

// Config returns the effective limits.
func (w *MetricsWindow) Config() Config { return w.cfg }

// samples are appended in clock order, so expired ones form a prefix.
func (w *MetricsWindow) pruneLocked() Load {
	cutoff := w.now().Add(-w.cfg.Window)
	i := 0
	for i < len(w.samples) && !w.samples[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		w.samples = append(w.samples[:0], w.samples[i:]...)
	}
	load := Load{RequestCount: len(w.samples)}
	for _, s := range w.samples {
		load.TokenSum += s.tokens
	}
	return load
}
