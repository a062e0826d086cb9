package history

import (
	"strings"
	"time"

	"github.com/frogteam/frogteam/types"
)

// LookupTag classifies an entry's role in a conversation thread.
type LookupTag string

const (
	TagProjectDescription LookupTag = "ProjectDescription"
	TagMemberTask         LookupTag = "MemberTask"
	TagProjectResponse    LookupTag = "ProjectResponse"
	TagMemberResponse     LookupTag = "MemberResponse"
	TagToolOutput         LookupTag = "ToolOutput"
	TagError              LookupTag = "Error"
)

// IsResponse reports whether the tag marks a final answer.
func (t LookupTag) IsResponse() bool {
	return t == TagProjectResponse || t == TagMemberResponse
}

// Valid reports whether t is a known tag.
func (t LookupTag) Valid() bool {
	switch t {
	case TagProjectDescription, TagMemberTask, TagProjectResponse, TagMemberResponse, TagToolOutput, TagError:
		return true
	}
	return false
}

// Entry is a single immutable history record.
type Entry struct {
	ID             string    `json:"id"`
	AskBy          string    `json:"ask_by"`
	ResponseBy     string    `json:"response_by"`
	Timestamp      time.Time `json:"timestamp"`
	Model          string    `json:"model"`
	Ask            string    `json:"ask"`
	Answer         string    `json:"answer"`
	Markdown       bool      `json:"markdown"`
	LookupTag      LookupTag `json:"lookupTag"`
	ConversationID string    `json:"conversationId"`
	ParentID       string    `json:"parentId,omitempty"`
	ProjectName    string    `json:"projectName"`
}

// NewEntry carries the caller-supplied fields of an entry. The ledger fills
// in the id, timestamp and markdown flag.
type NewEntry struct {
	AskBy          string
	ResponseBy     string
	Model          string
	Ask            string
	Answer         string
	LookupTag      LookupTag
	ConversationID string
	ParentID       string
	ProjectName    string
}

// IsMarkdown reports whether an answer should be rendered as markdown.
func IsMarkdown(answer string) bool {
	return strings.Contains(answer, "\n")
}

func projectOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return types.NoProject
	}
	return name
}
