package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frogteam/frogteam/agent/persistence"
	"github.com/frogteam/frogteam/llm/budget"
	"github.com/frogteam/frogteam/llm/tokenizer"
	"github.com/frogteam/frogteam/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config 配置作业队列.
type Config struct {
	MaxQueueSize     int           `json:"max_queue_size" yaml:"max_queue_size"`
	PersistThreshold int           `json:"persist_threshold" yaml:"persist_threshold"`
	AdmitBackoff     time.Duration `json:"admit_backoff" yaml:"admit_backoff"`
}

// DefaultConfig 返回默认值: 100 个待处理作业, 超过 50 个时写快照, 每秒重试准入.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:     100,
		PersistThreshold: 50,
		AdmitBackoff:     time.Second,
	}
}

// Recorder receives queue events for metrics export.
type Recorder interface {
	RecordJob(jobType string, status string, d time.Duration)
	SetPending(n int)
}

// Option customizes a Queue.
type Option func(*Queue)

// WithHandler registers h for jobs of type t.
func WithHandler(t JobType, h Handler) Option {
	return func(q *Queue) { q.handlers[t] = h }
}

// WithStore sets the snapshot store. The default keeps snapshots in memory.
func WithStore(s persistence.JobStore) Option {
	return func(q *Queue) { q.store = s }
}

// WithEstimator sets the token estimator used when a job has no estimate.
func WithEstimator(e *tokenizer.Estimator) Option {
	return func(q *Queue) { q.estimator = e }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(q *Queue) { q.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

type job struct {
	spec   JobSpec
	handle *Handle
}

// Queue runs jobs one at a time, gated by the metrics window.
type Queue struct {
	config    Config
	rt        RuntimeContext
	window    *budget.MetricsWindow
	store     persistence.JobStore
	estimator *tokenizer.Estimator
	recorder  Recorder
	handlers  map[JobType]Handler
	logger    *zap.Logger

	jobs chan *job

	mu      sync.Mutex
	pending []JobSpec
	closed  bool

	persisted bool // worker only

	runCtx    context.Context
	runCancel context.CancelFunc
	done      chan struct{}

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New starts the worker. window gates admission; rt is attached to every job.
func New(config Config, window *budget.MetricsWindow, rt RuntimeContext, opts ...Option) *Queue {
	def := DefaultConfig()
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = def.MaxQueueSize
	}
	if config.PersistThreshold <= 0 {
		config.PersistThreshold = def.PersistThreshold
	}
	if config.AdmitBackoff <= 0 {
		config.AdmitBackoff = def.AdmitBackoff
	}
	if window == nil {
		window = budget.NewMetricsWindow(budget.DefaultConfig())
	}

	q := &Queue{
		config:   config,
		rt:       rt,
		window:   window,
		handlers: make(map[JobType]Handler),
		logger:   zap.NewNop(),
		jobs:     make(chan *job, config.MaxQueueSize),
		done:     make(chan struct{}),
	}
	q.handlers[JobDalleImage] = unsupportedImageJob
	q.handlers[JobStabilityImage] = unsupportedImageJob
	for _, opt := range opts {
		opt(q)
	}
	if q.store == nil {
		q.store = persistence.NewMemoryJobStore()
	}
	if q.estimator == nil {
		q.estimator = tokenizer.NewEstimator(tokenizer.DefaultEncoding, tokenizer.FallbackEstimate)
	}
	q.logger = q.logger.With(zap.String("component", "job_queue"))

	q.runCtx, q.runCancel = context.WithCancel(context.Background())
	go q.worker()
	return q
}

func unsupportedImageJob(ctx context.Context, spec JobSpec, rt RuntimeContext) (string, error) {
	return "", types.Errorf(types.ErrConfigurationMissing, "no image adapter configured for %s jobs", spec.Type)
}

// Runtime returns the context attached to jobs.
func (q *Queue) Runtime() RuntimeContext { return q.rt }

// Submit appends spec to the queue. Missing id, timestamp and token estimate are filled in.
func (q *Queue) Submit(ctx context.Context, spec JobSpec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.Type == "" {
		spec.Type = JobMemberAssignment
	}
	if !spec.Type.Valid() {
		return nil, types.Errorf(types.ErrInvalidRequest, "unknown job type %q", spec.Type)
	}
	if spec.ID == "" {
		spec.ID = uuid.New().String()
	}
	if spec.Timestamp.IsZero() {
		spec.Timestamp = time.Now().UTC()
	}
	if spec.TokenEstimate <= 0 {
		spec.TokenEstimate = q.estimator.Estimate(spec.Question)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, types.NewError(types.ErrQueueClosed, "queue is shut down")
	}
	if len(q.pending) >= q.config.MaxQueueSize {
		q.mu.Unlock()
		return nil, types.Errorf(types.ErrQueueFull, "queue is full (%d jobs pending)", q.config.MaxQueueSize).
			WithRetryable(true)
	}
	q.pending = append(q.pending, spec)
	n := len(q.pending)
	h := newHandle(spec)
	// len(jobs) <= len(pending) <= cap(jobs), so this never blocks.
	q.jobs <- &job{spec: spec, handle: h}
	q.mu.Unlock()

	q.submitted.Add(1)
	if q.recorder != nil {
		q.recorder.SetPending(n)
	}
	q.logger.Debug("job submitted",
		zap.String("job_id", spec.ID),
		zap.String("type", string(spec.Type)),
		zap.String("member", spec.Member),
		zap.Int("token_estimate", spec.TokenEstimate),
		zap.Int("pending", n),
	)
	return h, nil
}

// SubmitAssignment queues a member assignment.
func (q *Queue) SubmitAssignment(ctx context.Context, caller, member, question, conversationID, parentID, project string) (*Handle, error) {
	return q.Submit(ctx, JobSpec{
		Type:           JobMemberAssignment,
		Caller:         caller,
		Member:         member,
		Question:       question,
		ConversationID: conversationID,
		ParentID:       parentID,
		Project:        project,
	})
}

// Pending returns a copy of the jobs not yet finished, the active one included.
func (q *Queue) Pending() []JobSpec {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]JobSpec(nil), q.pending...)
}

// Metrics returns the current load of the metrics window.
func (q *Queue) Metrics() budget.Snapshot {
	return q.window.Snapshot()
}

// Stats 返回累计计数.
func (q *Queue) Stats() (submitted, completed, failed int64) {
	return q.submitted.Load(), q.completed.Load(), q.failed.Load()
}

func (q *Queue) worker() {
	defer close(q.done)

	for j := range q.jobs {
		if err := q.waitAdmit(); err != nil {
			q.abandon(j, err)
			continue
		}
		q.syncSnapshot()
		q.process(j)
		q.syncSnapshot()
	}
}

// waitAdmit blocks until the window admits another request.
func (q *Queue) waitAdmit() error {
	if err := q.runCtx.Err(); err != nil {
		return err
	}
	for !q.window.CanAdmit() {
		load := q.window.CurrentLoad()
		q.logger.Debug("rate limit reached, waiting",
			zap.Int("rpm", load.RequestCount),
			zap.Int("tpm", load.TokenSum),
		)
		timer := time.NewTimer(q.config.AdmitBackoff)
		select {
		case <-timer.C:
		case <-q.runCtx.Done():
			timer.Stop()
			return q.runCtx.Err()
		}
	}
	return nil
}

// syncSnapshot writes the pending list while it exceeds PersistThreshold and
// clears an earlier snapshot once it no longer does, so a restart never
// replays finished jobs. Only the worker calls it.
func (q *Queue) syncSnapshot() {
	q.mu.Lock()
	over := len(q.pending) > q.config.PersistThreshold
	var snapshot []JobSpec
	if over {
		snapshot = append([]JobSpec(nil), q.pending...)
	}
	q.mu.Unlock()

	switch {
	case over:
		if err := q.store.SaveSnapshot(q.runCtx, snapshot); err != nil {
			q.logger.Error("failed to persist queue", zap.Int("pending", len(snapshot)), zap.Error(err))
			return
		}
		q.persisted = true
		q.logger.Debug("queue persisted", zap.Int("pending", len(snapshot)))
	case q.persisted:
		if err := q.store.Clear(q.runCtx); err != nil {
			q.logger.Error("failed to clear queue snapshot", zap.Error(err))
			return
		}
		q.persisted = false
		q.logger.Info("queue snapshot cleared")
	}
}

func (q *Queue) process(j *job) {
	start := time.Now()
	handler, ok := q.handlers[j.spec.Type]
	var (
		result string
		err    error
	)
	if !ok {
		err = types.Errorf(types.ErrConfigurationMissing, "no handler registered for %s jobs", j.spec.Type)
	} else {
		result, err = q.run(handler, j.spec)
	}
	elapsed := time.Since(start)

	q.window.RecordUsage(j.spec.TokenEstimate)
	q.window.RecordProcessing(elapsed)
	n := q.remove(j.spec.ID)

	status := "completed"
	if err != nil {
		status = "failed"
		q.failed.Add(1)
		q.logger.Error("job failed",
			zap.String("job_id", j.spec.ID),
			zap.String("member", j.spec.Member),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	} else {
		q.completed.Add(1)
		q.logger.Info("job completed",
			zap.String("job_id", j.spec.ID),
			zap.String("member", j.spec.Member),
			zap.Duration("duration", elapsed),
		)
	}
	if q.recorder != nil {
		q.recorder.RecordJob(string(j.spec.Type), status, elapsed)
		q.recorder.SetPending(n)
	}
	j.handle.resolve(result, err)
}

// run invokes handler, converting a panic into an error.
func (q *Queue) run(handler Handler, spec JobSpec) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.Errorf(types.ErrInternalError, "job panicked: %v", r)
		}
	}()
	return handler(q.runCtx, spec, q.rt)
}

func (q *Queue) abandon(j *job, cause error) {
	j.handle.resolve("", types.NewError(types.ErrQueueClosed, "queue stopped before job ran").WithCause(cause))
}

func (q *Queue) remove(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, s := range q.pending {
		if s.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	return len(q.pending)
}

// Restore resubmits the jobs in the snapshot store and clears it. It returns
// the number of jobs requeued.
func (q *Queue) Restore(ctx context.Context) (int, error) {
	specs, err := q.store.LoadSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	if len(specs) == 0 {
		return 0, nil
	}
	if err := q.store.Clear(ctx); err != nil {
		return 0, err
	}

	var errs []error
	restored := 0
	for _, spec := range specs {
		h, err := q.Submit(ctx, spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		restored++
		go q.logRestored(h)
	}
	q.logger.Info("queue restored", zap.Int("jobs", restored), zap.Int("dropped", len(specs)-restored))
	return restored, errors.Join(errs...)
}

func (q *Queue) logRestored(h *Handle) {
	<-h.Done()
	if h.err != nil {
		q.logger.Warn("restored job failed", zap.String("job_id", h.ID()), zap.Error(h.err))
	}
}

// Shutdown stops accepting jobs and waits for the queue to drain. If ctx ends
// first the running job is cancelled and the remaining jobs are persisted.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	var errs []error
	select {
	case <-q.done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
		q.runCancel()
		<-q.done
	}
	q.runCancel()

	remaining := q.Pending()
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.store.SaveSnapshot(saveCtx, remaining); err != nil {
		errs = append(errs, err)
	}
	q.logger.Info("queue shut down", zap.Int("persisted", len(remaining)))
	return errors.Join(errs...)
}
