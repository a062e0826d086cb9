package hierarchical

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/frogteam/frogteam/agent/assignment"
	"github.com/frogteam/frogteam/agent/queue"
	"github.com/frogteam/frogteam/agent/roster"
	"github.com/frogteam/frogteam/internal/ctxkeys"
	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/tools"
	"github.com/frogteam/frogteam/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DelegationTool is the lead-only tool that queues a member assignment.
const DelegationTool = "getQueueMemberAssignmentApi"

// Runner executes one assignment.
type Runner interface {
	Run(ctx context.Context, a assignment.Assignment) (string, error)
}

// Submitter queues member assignments.
type Submitter interface {
	SubmitAssignment(ctx context.Context, caller, member, question, conversationID, parentID, project string) (*queue.Handle, error)
}

// Config 协调器配置
type Config struct {
	// DelegationTimeout bounds how long the lead waits for one member job; 0 waits
	// until the lead's own context ends.
	DelegationTimeout time.Duration `json:"delegation_timeout" yaml:"delegation_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{DelegationTimeout: 10 * time.Minute}
}

// ProjectRequest is a project-level question for the lead architect.
type ProjectRequest struct {
	Question       string `json:"question"`
	Project        string `json:"project,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ParentID       string `json:"parentId,omitempty"`
}

// Delegation records one member job queued by the lead.
type Delegation struct {
	JobID    string `json:"jobId,omitempty"`
	Member   string `json:"member"`
	Question string `json:"question"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ProjectResult 项目运行结果
type ProjectResult struct {
	Lead           string       `json:"lead"`
	ConversationID string       `json:"conversationId"`
	Answer         string       `json:"answer"`
	Delegations    []Delegation `json:"delegations"`
}

// Coordinator 负责 lead-architect 的任务分解与委派
type Coordinator struct {
	setups *roster.SetupRegistry
	runner Runner
	queue  Submitter
	config Config
	logger *zap.Logger
}

// NewCoordinator 创建协调器
func NewCoordinator(setups *roster.SetupRegistry, runner Runner, submitter Submitter, config Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		setups: setups,
		runner: runner,
		queue:  submitter,
		config: config,
		logger: logger.With(zap.String("component", "coordinator")),
	}
}

// SelectLead returns the single lead architect or a *roster.SelectionError.
func (c *Coordinator) SelectLead() (roster.Setup, error) {
	if c.setups == nil {
		return roster.Setup{}, &roster.SelectionError{Kind: roster.SelectionNotFound, Purpose: roster.PurposeLeadArchitect}
	}
	return c.setups.SelectLead()
}

// ProjectGo runs req through the lead architect. Member work requested by the
// lead goes through the queue; the lead itself runs on the caller's goroutine.
func (c *Coordinator) ProjectGo(ctx context.Context, req ProjectRequest) (*ProjectResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "question is required")
	}
	lead, err := c.SelectLead()
	if err != nil {
		c.logger.Warn("lead selection failed", zap.Error(err))
		return nil, err
	}

	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	}
	tracker := &delegationTracker{}
	a := assignment.Assignment{
		Caller:         assignment.DefaultCaller,
		Member:         lead,
		Question:       req.Question,
		ConversationID: req.ConversationID,
		ParentID:       req.ParentID,
		Project:        req.Project,
		Profile:        assignment.LeadProfile,
		Tools:          []assignment.Binding{c.delegationBinding(req.Project, tracker)},
	}

	c.logger.Info("project started", zap.String("lead", lead.Name), zap.String("project", req.Project))
	answer, err := c.runner.Run(ctx, a)
	result := &ProjectResult{
		Lead:           lead.Name,
		ConversationID: req.ConversationID,
		Answer:         answer,
		Delegations:    tracker.list(),
	}
	if err != nil {
		return result, err
	}
	c.logger.Info("project finished",
		zap.String("lead", lead.Name),
		zap.Int("delegations", len(result.Delegations)),
	)
	return result, nil
}

type delegationArgs struct {
	Caller   string `json:"caller"`
	Member   string `json:"member"`
	Question string `json:"question"`
}

func (c *Coordinator) delegationBinding(project string, tracker *delegationTracker) assignment.Binding {
	fn := func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args delegationArgs
		if err := tools.DecodeArgs(raw, &args); err != nil {
			return "", err
		}
		if args.Member == "" || args.Question == "" {
			return "", fmt.Errorf("member and question are required")
		}
		caller := args.Caller
		if caller == "" {
			caller, _ = ctxkeys.Member(ctx)
		}
		conversationID, _ := ctxkeys.ConversationID(ctx)
		parentID, _ := ctxkeys.ParentEntryID(ctx)

		d := Delegation{Member: args.Member, Question: args.Question}
		result, err := c.delegate(ctx, caller, args.Member, args.Question, conversationID, parentID, project, &d)
		if err != nil {
			d.Error = err.Error()
		}
		d.Result = result
		tracker.add(d)
		return result, err
	}
	return assignment.Binding{
		Name: DelegationTool,
		Fn:   fn,
		Metadata: tools.ToolMetadata{
			Schema: llm.ToolSchema{
				Name:        DelegationTool,
				Description: "Assign a task to a team member and wait for the member's answer.",
				Parameters: tools.ObjectSchema(map[string]string{
					"caller":   "The name of the member making the request",
					"member":   "The name of the member to assign the task to",
					"question": "The task for the member",
				}, "member", "question"),
			},
			// the tool executor timeout must cover the queued job
			Timeout: c.waitTimeout(),
		},
	}
}

func (c *Coordinator) waitTimeout() time.Duration {
	if c.config.DelegationTimeout > 0 {
		return c.config.DelegationTimeout
	}
	return 24 * time.Hour
}

func (c *Coordinator) delegate(ctx context.Context, caller, member, question, conversationID, parentID, project string, d *Delegation) (string, error) {
	if c.queue == nil {
		return "", types.NewError(types.ErrConfigurationMissing, "no job queue configured")
	}
	if c.setups != nil {
		if _, ok := c.setups.ByName(member); !ok {
			return "", types.Errorf(types.ErrNotFound, "member %q not found", member)
		}
	}
	h, err := c.queue.SubmitAssignment(ctx, caller, member, question, conversationID, parentID, project)
	if err != nil {
		c.logger.Warn("delegation rejected", zap.String("member", member), zap.Error(err))
		return "", err
	}
	d.JobID = h.ID()
	c.logger.Info("delegation queued",
		zap.String("job_id", h.ID()),
		zap.String("member", member),
		zap.String("parent_id", parentID),
	)
	return h.Wait(ctx)
}

// AssignDirect queues a question addressed to an @member in prompt and waits
// for the answer.
func (c *Coordinator) AssignDirect(ctx context.Context, prompt, conversationID, parentID, project string) (string, error) {
	if c.setups == nil {
		return "", types.NewError(types.ErrConfigurationMissing, "no setups loaded")
	}
	member, err := c.setups.ExtractMember(prompt)
	if err != nil {
		return "", err
	}
	var d Delegation
	return c.delegate(ctx, assignment.DefaultCaller, member.Name, prompt, conversationID, parentID, project, &d)
}

type delegationTracker struct {
	mu    sync.Mutex
	items []Delegation
}

func (t *delegationTracker) add(d Delegation) {
	t.mu.Lock()
	t.items = append(t.items, d)
	t.mu.Unlock()
}

func (t *delegationTracker) list() []Delegation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Delegation{}, t.items...)
}
