package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Prompt roles and well-known categories.
const (
	RoleSystem          = "system"
	CategoryTaskSummary = "task-summary"
)

// ModelList is the set of models a prompt applies to. It decodes from either
// a JSON array or a string of comma or space separated ids; "*" matches all.
type ModelList []string

func (m *ModelList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*m = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("models must be a string or an array of strings")
	}
	*m = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' })
	return nil
}

func (m ModelList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(m, ","))
}

// Matches reports whether model is covered.
func (m ModelList) Matches(model string) bool {
	for _, v := range m {
		if v == "*" || v == model {
			return true
		}
	}
	return false
}

// Prompt is a role/category/model scoped template.
type Prompt struct {
	ID       string    `json:"id"`
	Role     string    `json:"role"`
	Category string    `json:"category"`
	Models   ModelList `json:"models"`
	Content  string    `json:"content"`
	Active   bool      `json:"active"`
	Tag      string    `json:"tag,omitempty"`
}

// RequiredPrompt names a prompt that must exist for the team to work.
type RequiredPrompt struct {
	Category string `json:"category"`
	Role     string `json:"role"`
}

// RequiredPrompts are the system prompts every workspace needs.
var RequiredPrompts = []RequiredPrompt{
	{Category: PurposeLeadArchitect, Role: RoleSystem},
	{Category: "lead-engineer", Role: RoleSystem},
	{Category: "developer", Role: RoleSystem},
}

// PromptRegistry holds prompts.json in file order.
type PromptRegistry struct {
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	prompts []Prompt
}

// NewPromptRegistry creates a registry backed by path. Call Load before use.
func NewPromptRegistry(path string, logger *zap.Logger) *PromptRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptRegistry{path: path, logger: logger.With(zap.String("component", "prompt_registry"))}
}

// NewStaticPromptRegistry creates a registry that is not backed by a file.
func NewStaticPromptRegistry(prompts ...Prompt) *PromptRegistry {
	r := NewPromptRegistry("", nil)
	r.prompts = append([]Prompt(nil), prompts...)
	return r
}

// Path returns the backing file.
func (r *PromptRegistry) Path() string { return r.path }

// Load reads prompts.json. A missing file yields no prompts.
func (r *PromptRegistry) Load(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	var prompts []Prompt
	if _, err := readJSON(ctx, r.path, &prompts); err != nil {
		return err
	}
	r.mu.Lock()
	r.prompts = prompts
	r.mu.Unlock()
	r.logger.Info("prompts loaded", zap.Int("prompts", len(prompts)))
	if missing := r.ValidateRequired(); len(missing) > 0 {
		r.logger.Warn("required prompts missing", zap.Any("missing", missing))
	}
	return nil
}

// Reload re-reads the file; the previous prompts are kept on error.
func (r *PromptRegistry) Reload(ctx context.Context) error {
	if err := r.Load(ctx); err != nil {
		r.logger.Warn("prompt reload failed, keeping previous prompts", zap.Error(err))
		return err
	}
	return nil
}

// All returns a copy of every prompt.
func (r *PromptRegistry) All() []Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Prompt(nil), r.prompts...)
}

// Fetch returns the active prompts for role and category that cover model, in file order.
func (r *PromptRegistry) Fetch(role, category, model string) []Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Prompt
	for _, p := range r.prompts {
		if p.Active && p.Role == role && p.Category == category && p.Models.Matches(model) {
			out = append(out, p)
		}
	}
	return out
}

// First returns the first matching prompt.
func (r *PromptRegistry) First(role, category, model string) (Prompt, bool) {
	matches := r.Fetch(role, category, model)
	if len(matches) == 0 {
		return Prompt{}, false
	}
	return matches[0], true
}

// ValidateRequired lists required prompts with no active match.
func (r *PromptRegistry) ValidateRequired() []RequiredPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []RequiredPrompt
	for _, rp := range RequiredPrompts {
		ok := false
		for _, p := range r.prompts {
			if p.Active && p.Category == rp.Category && p.Role == rp.Role {
				ok = true
				break
			}
		}
		if !ok {
			missing = append(missing, rp)
		}
	}
	return missing
}
