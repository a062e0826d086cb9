package assignment

import (
	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/agent/roster"
	"github.com/frogteam/frogteam/llm/tools"
)

// DefaultSummaryText is the closing request sent to the lead, and to members
// when no task-summary prompt is configured.
const DefaultSummaryText = "explain your solution by describing each artifact you created or modified. " +
	"Provide the path to each artifact touched. Explain steps to integrate into the larger solution."

// DefaultCaller asks on behalf of the human when no caller is given.
const DefaultCaller = "user"

// Profile selects how a run is recorded and which tools it gets.
type Profile struct {
	Name        string
	TaskTag     history.LookupTag
	ResponseTag history.LookupTag
	// AskBy overrides the assignment caller in history entries.
	AskBy string
	// WorkspaceTools adds the file, search and history tools.
	WorkspaceTools bool
	// SummaryText replaces the task-summary prompt lookup.
	SummaryText string
	// Metered runs record their model usage in the orchestrator's window.
	// Queued runs are metered by the queue instead.
	Metered bool
}

var (
	// MemberProfile is used for queued member assignments.
	MemberProfile = Profile{
		Name:           "member",
		TaskTag:        history.TagMemberTask,
		ResponseTag:    history.TagMemberResponse,
		WorkspaceTools: true,
	}

	// LeadProfile is used for the lead architect's project runs.
	LeadProfile = Profile{
		Name:        "lead",
		TaskTag:     history.TagProjectDescription,
		ResponseTag: history.TagProjectResponse,
		AskBy:       DefaultCaller,
		SummaryText: DefaultSummaryText,
		Metered:     true,
	}
)

// Binding is an extra tool made available to a single run.
type Binding struct {
	Name     string
	Fn       tools.ToolFunc
	Metadata tools.ToolMetadata
}

// Assignment is one question for one member.
type Assignment struct {
	Caller         string
	Member         roster.Setup
	Question       string
	ConversationID string
	ParentID       string
	Project        string
	Profile        Profile
	Tools          []Binding
}

func (a Assignment) askBy() string {
	if a.Profile.AskBy != "" {
		return a.Profile.AskBy
	}
	if a.Caller != "" {
		return a.Caller
	}
	return DefaultCaller
}
