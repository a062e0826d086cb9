package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/agent/queue"
	"github.com/frogteam/frogteam/agent/roster"
	"github.com/frogteam/frogteam/internal/ctxkeys"
	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/tools"
	"github.com/frogteam/frogteam/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Entry answers used when the model returns no text.
const (
	answerToolCallsPending = "tool calls pending"
	answerNone             = "no answer"
	answerNoFinal          = "no final response"
)

// run is the mutable state of one assignment.
type run struct {
	o      *Orchestrator
	rt     queue.RuntimeContext
	a      Assignment
	runID  string
	logger *zap.Logger

	state    State
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	messages []llm.Message
	pending  []llm.ToolCall

	taskEntryID  string
	taskRecorded bool
	started      time.Time
	lastContent  string
	final        string
	err          error
}

func (o *Orchestrator) newRun(rt queue.RuntimeContext, a Assignment, runID string) *run {
	return &run{
		o:     o,
		rt:    rt,
		a:     a,
		runID: runID,
		logger: o.logger.With(
			zap.String("run_id", runID),
			zap.String("member", a.Member.Name),
			zap.String("conversation_id", a.ConversationID),
		),
		state:   StateInit,
		started: o.now(),
	}
}

// step runs the action of the current state and moves to the next one.
func (r *run) step(ctx context.Context) {
	var (
		next State
		err  error
	)
	switch r.state {
	case StateInit:
		next, err = r.initialize(ctx)
	case StateAwaitingModel:
		next, err = r.awaitModel(ctx)
	case StateToolsPending:
		next, err = r.checkTools()
	case StateExecutingTools:
		next, err = r.executeTools(ctx)
	case StateSummarizing:
		next, err = r.summarize(ctx)
	default:
		return
	}
	if err != nil {
		r.fail(ctx, err)
		return
	}
	r.transition(next)
}

func (r *run) transition(to State) {
	from := r.state
	if !CanTransition(from, to) {
		r.err = ErrInvalidTransition{From: from, To: to}
		r.state = StateErrored
		return
	}
	r.state = to
	r.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
	if r.o.recorder != nil {
		r.o.recorder.RecordStateTransition(r.a.Member.Name, string(from), string(to))
	}
}

// fail records err in the ledger and ends the run.
func (r *run) fail(ctx context.Context, err error) {
	from := r.state
	r.err = err
	r.state = StateErrored
	if r.o.recorder != nil {
		r.o.recorder.RecordStateTransition(r.a.Member.Name, string(from), string(StateErrored))
	}
	r.logger.Error("assignment failed", zap.String("state", string(from)), zap.Error(err))

	parent := r.taskEntryID
	if parent == "" {
		parent = r.a.ParentID
	}
	if _, lerr := r.record(ctx, history.TagError, r.a.Question, err.Error(), parent, r.a.Member.Name, r.a.askBy()); lerr != nil {
		r.logger.Warn("failed to record error entry", zap.Error(lerr))
	}
}

func (r *run) partial() string {
	if r.final != "" {
		return r.final
	}
	return r.lastContent
}

func (r *run) record(ctx context.Context, tag history.LookupTag, ask, answer, parent, responseBy, askBy string) (string, error) {
	if r.rt.Ledger == nil {
		return "", nil
	}
	return r.rt.Ledger.AddEntry(ctx, history.NewEntry{
		AskBy:          askBy,
		ResponseBy:     responseBy,
		Model:          r.a.Member.Model,
		Ask:            ask,
		Answer:         answer,
		LookupTag:      tag,
		ConversationID: r.a.ConversationID,
		ParentID:       parent,
		ProjectName:    r.a.Project,
	})
}

// initialize resolves the prompt, the model and the tools.
func (r *run) initialize(ctx context.Context) (State, error) {
	m := r.a.Member
	if r.rt.Prompts == nil {
		return "", types.NewError(types.ErrConfigurationMissing, "no prompts loaded")
	}
	prompt, ok := r.rt.Prompts.First(roster.RoleSystem, m.Purpose, m.Model)
	if !ok {
		return "", types.Errorf(types.ErrConfigurationMissing,
			"there is no %s prompt aligned with %s", m.Purpose, m.Model)
	}
	tpl, err := roster.ParseTemplate(prompt.Content)
	if err != nil {
		return "", err
	}
	system := tpl.Execute(r.templateValues(ctx))

	if r.rt.Providers == nil {
		return "", types.NewError(types.ErrConfigurationMissing, "no model")
	}
	provider, err := r.rt.Providers(m)
	if err != nil {
		if _, ok := types.AsError(err); ok {
			return "", err
		}
		return "", types.Errorf(types.ErrConfigurationMissing, "no model for %s", m.Name).WithCause(err)
	}
	r.provider = provider

	reg, err := r.buildRegistry()
	if err != nil {
		return "", err
	}
	if len(reg.List()) > 0 && !provider.SupportsNativeFunctionCalling() {
		return "", types.Errorf(types.ErrConfigurationMissing, "model %s does not support tools", m.Model)
	}
	r.registry = reg
	r.executor = tools.NewExecutor(reg, r.logger)

	r.messages = []llm.Message{llm.SystemMessage(system)}
	if r.a.ParentID != "" && r.rt.Ledger != nil {
		for _, th := range r.rt.Ledger.BuildConversationThreads(r.a.ParentID) {
			r.messages = append(r.messages, llm.UserMessage(th.Human), llm.AssistantMessage(th.AI))
		}
	}
	r.messages = append(r.messages, llm.UserMessage(r.a.Question))
	r.started = r.o.now()
	return StateAwaitingModel, nil
}

func (r *run) templateValues(ctx context.Context) map[string]string {
	values := map[string]string{
		roster.VarName:     r.a.Member.Name,
		roster.VarQuestion: r.a.Question,
		roster.VarCaller:   r.a.askBy(),
		roster.VarProject:  r.a.Project,
		roster.VarFileList: tools.FilesXML(nil),
	}
	if r.rt.Setups != nil {
		values[roster.VarMembers] = r.rt.Setups.PeerRoster()
	}
	if r.rt.Projects != nil {
		if p, ok := r.rt.Projects.Get(r.a.Project); ok {
			values[roster.VarProject] = p.PackageXML()
		}
	}
	if r.rt.Workspace != nil {
		files, err := r.rt.Workspace.ProjectFilesXML(ctx)
		if err != nil {
			r.logger.Warn("failed to list project files", zap.Error(err))
		} else {
			values[roster.VarFileList] = files
		}
	}
	return values
}

func (r *run) buildRegistry() (*tools.Registry, error) {
	var (
		reg *tools.Registry
		err error
	)
	if r.a.Profile.WorkspaceTools {
		switch {
		case r.rt.Tools != nil:
			reg, err = r.rt.Tools()
			if err != nil {
				return nil, err
			}
		case r.rt.Workspace != nil:
			reg = tools.NewRegistry(r.logger)
			if err := r.rt.Workspace.Register(reg); err != nil {
				return nil, err
			}
		}
	}
	if reg == nil {
		reg = tools.NewRegistry(r.logger)
	}
	if r.a.Profile.WorkspaceTools && r.rt.Ledger != nil && !reg.Has(FetchHistoryTool) {
		if err := RegisterHistoryTool(reg, r.rt.Ledger); err != nil {
			return nil, err
		}
	}
	for _, b := range r.a.Tools {
		if err := reg.Register(b.Name, b.Fn, b.Metadata); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// awaitModel calls the model with the tools and decides whether to loop.
func (r *run) awaitModel(ctx context.Context) (State, error) {
	resp, err := r.complete(ctx, r.registry.List(), "")
	if err != nil {
		return "", err
	}
	msg := resp.FirstMessage()
	msg.Role = llm.RoleAssistant
	if msg.Content != "" {
		r.lastContent = msg.Content
	}

	if !r.taskRecorded {
		answer := msg.Content
		switch {
		case answer == "" && len(msg.ToolCalls) > 0:
			answer = answerToolCallsPending
		case answer == "":
			answer = answerNone
		}
		id, err := r.record(ctx, r.a.Profile.TaskTag, r.a.Question, answer, r.a.ParentID, r.a.Member.Name, r.a.askBy())
		if err != nil {
			return "", err
		}
		r.taskEntryID = id
		r.taskRecorded = true
	}

	if len(msg.ToolCalls) == 0 {
		r.messages = append(r.messages, msg)
		return StateSummarizing, nil
	}
	if elapsed := r.o.now().Sub(r.started); elapsed >= r.o.cfg.MaxDuration {
		r.logger.Warn("tool loop time limit reached",
			zap.Duration("elapsed", elapsed),
			zap.Int("dropped_tool_calls", len(msg.ToolCalls)),
		)
		// unanswered calls would make the summary request invalid
		msg.ToolCalls = nil
		r.messages = append(r.messages, msg)
		return StateSummarizing, nil
	}
	r.messages = append(r.messages, msg)
	r.pending = msg.ToolCalls
	return StateToolsPending, nil
}

// checkTools rejects calls to tools the run does not offer.
func (r *run) checkTools() (State, error) {
	for i, call := range r.pending {
		if !r.registry.Has(call.Name) {
			return "", types.Errorf(types.ErrUnknownTool, "unknown tool: %s", call.Name)
		}
		if call.ID == "" {
			r.pending[i].ID = "call_" + uuid.New().String()
		}
	}
	return StateExecutingTools, nil
}

// executeTools runs the pending calls in order, recording one entry per call.
func (r *run) executeTools(ctx context.Context) (State, error) {
	toolCtx := ctxkeys.WithMember(ctx, r.a.Member.Name)
	toolCtx = ctxkeys.WithParentEntryID(toolCtx, r.taskEntryID)

	for _, call := range r.pending {
		spanCtx, span := r.o.tracer.Start(toolCtx, "assignment.tool", trace.WithAttributes(
			attribute.String("frogteam.tool", call.Name),
		))
		res, err := r.executor.ExecuteOne(spanCtx, call)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return "", err
		}
		status := "success"
		if res.Failed() {
			status = "error"
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
		if r.o.recorder != nil {
			r.o.recorder.RecordToolCall(call.Name, status, res.Duration)
		}

		r.messages = append(r.messages, llm.ToolMessage(call.ID, call.Name, res.Output))
		if _, err := r.record(ctx, history.TagToolOutput, "args: "+string(call.Arguments), res.Output,
			r.taskEntryID, call.Name, r.a.Member.Name); err != nil {
			return "", err
		}
	}
	r.pending = nil
	return StateAwaitingModel, nil
}

// summarize asks once for the closing explanation.
func (r *run) summarize(ctx context.Context) (State, error) {
	text := r.a.Profile.SummaryText
	if text == "" {
		if p, ok := r.rt.Prompts.First(roster.RoleSystem, roster.CategoryTaskSummary, r.a.Member.Model); ok {
			text = p.Content
		} else {
			r.logger.Warn("no task-summary prompt, using default summary request")
			text = DefaultSummaryText
		}
	}
	r.messages = append(r.messages, llm.UserMessage(text))

	resp, err := r.complete(ctx, r.registry.List(), "none")
	if err != nil {
		return "", err
	}
	content := resp.FirstMessage().Content
	answer := content
	if answer == "" {
		answer = answerNoFinal
	}
	if _, err := r.record(ctx, r.a.Profile.ResponseTag, r.a.Question, answer, r.taskEntryID, r.a.Member.Name, r.a.askBy()); err != nil {
		return "", err
	}
	r.final = content
	if content != "" {
		r.lastContent = content
	}
	return StateDone, nil
}

// complete performs one model call.
func (r *run) complete(ctx context.Context, schemas []llm.ToolSchema, toolChoice string) (*llm.ChatResponse, error) {
	m := r.a.Member
	ctx, span := r.o.tracer.Start(ctx, "assignment.model", trace.WithAttributes(
		attribute.String("frogteam.provider", r.provider.Name()),
		attribute.String("frogteam.model", m.Model),
		attribute.Int("frogteam.messages", len(r.messages)),
	))
	defer span.End()

	req := &llm.ChatRequest{
		TraceID:    r.runID,
		Model:      m.Model,
		Messages:   append([]llm.Message(nil), r.messages...),
		MaxTokens:  r.o.cfg.MaxTokens,
		Tools:      schemas,
		ToolChoice: toolChoice,
	}
	start := time.Now()
	resp, err := r.provider.Completion(ctx, req)
	elapsed := time.Since(start)

	status := "success"
	var usage llm.ChatUsage
	if err != nil {
		status = "error"
	} else if resp != nil {
		usage = resp.Usage
	}
	if r.o.recorder != nil {
		r.o.recorder.RecordLLMRequest(r.provider.Name(), m.Model, status, elapsed, usage.PromptTokens, usage.CompletionTokens)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var te *types.Error
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, types.Errorf(types.ErrModelInvocationFailure, "model %s call failed", m.Model).WithCause(err)
	}
	if resp == nil {
		return nil, types.Errorf(types.ErrModelInvocationFailure, "model %s returned no response", m.Model)
	}
	if r.o.window != nil && r.a.Profile.Metered {
		r.o.window.RecordUsage(usage.TotalTokens)
	}
	span.SetAttributes(attribute.Int("frogteam.total_tokens", usage.TotalTokens))
	return resp, nil
}
