package assignment

import (
	"context"
	"time"

	"github.com/frogteam/frogteam/agent/queue"
	"github.com/frogteam/frogteam/internal/ctxkeys"
	"github.com/frogteam/frogteam/llm/budget"
	"github.com/frogteam/frogteam/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/frogteam/frogteam/agent/assignment"

// Config bounds a run.
type Config struct {
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
}

// DefaultConfig returns a 120s tool loop and 4096 max tokens per call.
func DefaultConfig() Config {
	return Config{MaxDuration: 120 * time.Second, MaxTokens: 4096}
}

// Recorder receives run metrics.
type Recorder interface {
	RecordLLMRequest(provider, model, status string, d time.Duration, promptTokens, completionTokens int)
	RecordToolCall(tool, status string, d time.Duration)
	RecordStateTransition(member, from, to string)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithConfig overrides the run limits.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithClock injects the clock used for the tool loop deadline.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTracerProvider sets the tracer provider; the global one is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(tracerName) }
}

// WithWindow records the actual token usage of model calls made by metered
// profiles in w. The lead runs outside the queue, so only its calls land here.
func WithWindow(w *budget.MetricsWindow) Option {
	return func(o *Orchestrator) { o.window = w }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Orchestrator runs assignments against the runtime context.
type Orchestrator struct {
	cfg      Config
	rt       queue.RuntimeContext
	now      func() time.Time
	recorder Recorder
	tracer   trace.Tracer
	window   *budget.MetricsWindow
	logger   *zap.Logger
}

// New creates an orchestrator bound to rt.
func New(rt queue.RuntimeContext, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    DefaultConfig(),
		rt:     rt,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	def := DefaultConfig()
	if o.cfg.MaxDuration <= 0 {
		o.cfg.MaxDuration = def.MaxDuration
	}
	if o.cfg.MaxTokens <= 0 {
		o.cfg.MaxTokens = def.MaxTokens
	}
	o.logger = o.logger.With(zap.String("component", "assignment"))
	return o
}

// Run executes a to completion and returns the final summary. On error the
// partial result, if any, is returned together with the error.
func (o *Orchestrator) Run(ctx context.Context, a Assignment) (string, error) {
	return o.execute(ctx, o.rt, a)
}

// HandleJob runs a queued member assignment. It matches queue.Handler.
func (o *Orchestrator) HandleJob(ctx context.Context, spec queue.JobSpec, rt queue.RuntimeContext) (string, error) {
	if rt.Setups == nil {
		return "", types.NewError(types.ErrConfigurationMissing, "no setups loaded")
	}
	setup, ok := rt.Setups.ByName(spec.Member)
	if !ok {
		return "", types.Errorf(types.ErrNotFound, "member %q not found", spec.Member)
	}
	return o.execute(ctx, rt, Assignment{
		Caller:         spec.Caller,
		Member:         setup,
		Question:       spec.Question,
		ConversationID: spec.ConversationID,
		ParentID:       spec.ParentID,
		Project:        spec.Project,
		Profile:        MemberProfile,
	})
}

func (o *Orchestrator) execute(ctx context.Context, rt queue.RuntimeContext, a Assignment) (string, error) {
	if a.Profile.Name == "" {
		a.Profile = MemberProfile
	}
	if a.ConversationID == "" {
		a.ConversationID = uuid.New().String()
	}
	runID := uuid.New().String()
	ctx = ctxkeys.WithRunID(ctx, runID)
	ctx = ctxkeys.WithConversationID(ctx, a.ConversationID)

	ctx, span := o.tracer.Start(ctx, "assignment.run", trace.WithAttributes(
		attribute.String("frogteam.run_id", runID),
		attribute.String("frogteam.member", a.Member.Name),
		attribute.String("frogteam.profile", a.Profile.Name),
		attribute.String("frogteam.conversation_id", a.ConversationID),
	))
	defer span.End()

	r := o.newRun(rt, a, runID)
	r.logger.Info("assignment started", zap.String("caller", a.askBy()))
	for !r.state.Terminal() {
		r.step(ctx)
	}

	if r.err != nil {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
		return r.partial(), r.err
	}
	span.SetAttributes(attribute.String("frogteam.task_entry_id", r.taskEntryID))
	r.logger.Info("assignment finished", zap.Duration("elapsed", o.now().Sub(r.started)))
	return r.final, nil
}
