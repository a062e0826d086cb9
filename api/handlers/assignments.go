package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/frogteam/frogteam/agent/assignment"
	"github.com/frogteam/frogteam/agent/hierarchical"
	"github.com/frogteam/frogteam/agent/queue"
	"github.com/frogteam/frogteam/agent/roster"
	"github.com/frogteam/frogteam/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProjectRunner is the delegation coordinator as seen by the API.
type ProjectRunner interface {
	ProjectGo(ctx context.Context, req hierarchical.ProjectRequest) (*hierarchical.ProjectResult, error)
	AssignDirect(ctx context.Context, prompt, conversationID, parentID, project string) (string, error)
}

// AssignmentRequest addresses a member either explicitly or through an
// @name mention in Prompt.
type AssignmentRequest struct {
	Member         string `json:"member,omitempty"`
	Caller         string `json:"caller,omitempty"`
	Question       string `json:"question,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ParentID       string `json:"parentId,omitempty"`
	Project        string `json:"project,omitempty"`
}

// AssignmentResponse 任务结果
type AssignmentResponse struct {
	JobID          string `json:"jobId,omitempty"`
	Member         string `json:"member,omitempty"`
	ConversationID string `json:"conversationId"`
	Answer         string `json:"answer"`
}

// AssignmentHandler 任务与项目接口
type AssignmentHandler struct {
	runner    ProjectRunner
	submitter hierarchical.Submitter
	projects  *roster.ProjectRegistry
	logger    *zap.Logger
}

// NewAssignmentHandler 创建处理器
func NewAssignmentHandler(runner ProjectRunner, submitter hierarchical.Submitter, projects *roster.ProjectRegistry, logger *zap.Logger) *AssignmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentHandler{
		runner:    runner,
		submitter: submitter,
		projects:  projects,
		logger:    logger.With(zap.String("handler", "assignments")),
	}
}

// HandleAssign 处理 POST /api/v1/assignments; blocks until the member answers.
func (h *AssignmentHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.New().String()
	}

	if req.Member == "" {
		if strings.TrimSpace(req.Prompt) == "" {
			WriteErrorMessage(w, types.ErrInvalidRequest, "member and question, or a prompt mentioning @member, are required", h.logger)
			return
		}
		answer, err := h.runner.AssignDirect(r.Context(), req.Prompt, req.ConversationID, req.ParentID, req.Project)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		WriteSuccess(w, AssignmentResponse{ConversationID: req.ConversationID, Answer: answer})
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		WriteErrorMessage(w, types.ErrInvalidRequest, "question is required", h.logger)
		return
	}
	caller := req.Caller
	if caller == "" {
		caller = assignment.DefaultCaller
	}
	handle, err := h.submitter.SubmitAssignment(r.Context(), caller, req.Member, req.Question, req.ConversationID, req.ParentID, req.Project)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	answer, err := handle.Wait(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, AssignmentResponse{
		JobID:          handle.ID(),
		Member:         req.Member,
		ConversationID: req.ConversationID,
		Answer:         answer,
	})
}

// HandleRunProject 处理 POST /api/v1/projects
func (h *AssignmentHandler) HandleRunProject(w http.ResponseWriter, r *http.Request) {
	var req hierarchical.ProjectRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Project != "" && h.projects != nil {
		if _, ok := h.projects.Get(req.Project); !ok {
			WriteError(w, types.Errorf(types.ErrNotFound, "project %q not found", req.Project), h.logger)
			return
		}
	}
	result, err := h.runner.ProjectGo(r.Context(), req)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}

// HandleListProjects 处理 GET /api/v1/projects
func (h *AssignmentHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil {
		WriteSuccess(w, []roster.Project{})
		return
	}
	WriteSuccess(w, h.projects.All())
}

// HandleRegisterProject 处理 POST /api/v1/projects/register
func (h *AssignmentHandler) HandleRegisterProject(w http.ResponseWriter, r *http.Request) {
	if h.projects == nil {
		WriteErrorMessage(w, types.ErrConfigurationMissing, "no project registry configured", h.logger)
		return
	}
	var p roster.Project
	if err := DecodeJSONBody(w, r, &p, h.logger); err != nil {
		return
	}
	added, err := h.projects.Add(r.Context(), p)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"project": p, "added": added})
}

var _ hierarchical.Submitter = (*queue.Queue)(nil)
