package roster

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/frogteam/frogteam/llm/factory"
	"github.com/frogteam/frogteam/types"
	"go.uber.org/zap"
)

// PurposeLeadArchitect marks the member that decomposes project requests.
const PurposeLeadArchitect = "lead-architect"

// Setup is a configured team member.
type Setup struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Purpose      string `json:"purpose"`
	Model        string `json:"model"`
	Endpoint     string `json:"endpoint,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	AzDeployment string `json:"az_deployment,omitempty"`
	AWSRegion    string `json:"aws_region,omitempty"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icon,omitempty"`
	Provider     string `json:"provider,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
}

// IsLead reports whether the member is a lead architect.
func (s Setup) IsLead() bool { return s.Purpose == PurposeLeadArchitect }

// ProviderConfig maps the member onto the provider factory configuration.
func (s Setup) ProviderConfig() factory.ProviderConfig {
	return factory.ProviderConfig{
		Provider:     s.Provider,
		Model:        s.Model,
		APIKey:       s.APIKey,
		BaseURL:      s.BaseURL,
		Endpoint:     s.Endpoint,
		AzDeployment: s.AzDeployment,
		AWSRegion:    s.AWSRegion,
	}
}

// SelectionKind classifies a failed member selection.
type SelectionKind string

const (
	SelectionNotFound  SelectionKind = "NotFound"
	SelectionAmbiguous SelectionKind = "Ambiguous"
)

// SelectionError reports that zero or several members matched.
type SelectionError struct {
	Kind       SelectionKind
	Purpose    string
	Candidates []string
}

func (e *SelectionError) Error() string {
	if e.Kind == SelectionAmbiguous {
		return fmt.Sprintf("%d members have purpose %q: %s", len(e.Candidates), e.Purpose, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("no member has purpose %q", e.Purpose)
}

// Unwrap exposes the matching types.Error code.
func (e *SelectionError) Unwrap() error {
	code := types.ErrNotFound
	if e.Kind == SelectionAmbiguous {
		code = types.ErrAmbiguous
	}
	return types.NewError(code, e.Error())
}

// SetupRegistry holds the members loaded from setups.json.
type SetupRegistry struct {
	path   string
	logger *zap.Logger

	mu     sync.RWMutex
	setups []Setup
}

// NewSetupRegistry creates a registry backed by path. Call Load before use.
func NewSetupRegistry(path string, logger *zap.Logger) *SetupRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SetupRegistry{path: path, logger: logger.With(zap.String("component", "setup_registry"))}
}

// NewStaticSetupRegistry creates a registry that is not backed by a file.
func NewStaticSetupRegistry(setups ...Setup) *SetupRegistry {
	r := NewSetupRegistry("", nil)
	r.setups = append([]Setup(nil), setups...)
	return r
}

// Path returns the backing file.
func (r *SetupRegistry) Path() string { return r.path }

// Load reads setups.json. A missing file yields an empty roster.
func (r *SetupRegistry) Load(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	var setups []Setup
	if _, err := readJSON(ctx, r.path, &setups); err != nil {
		return err
	}
	r.mu.Lock()
	r.setups = setups
	r.mu.Unlock()
	r.logger.Info("setups loaded", zap.Int("members", len(setups)))
	return nil
}

// Reload re-reads the file; the previous roster is kept on error.
func (r *SetupRegistry) Reload(ctx context.Context) error {
	if err := r.Load(ctx); err != nil {
		r.logger.Warn("setup reload failed, keeping previous roster", zap.Error(err))
		return err
	}
	return nil
}

// Save writes the roster back to disk.
func (r *SetupRegistry) Save(ctx context.Context, setups []Setup) error {
	if r.path != "" {
		if err := writeJSON(ctx, r.path, setups); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.setups = append([]Setup(nil), setups...)
	r.mu.Unlock()
	return nil
}

// All returns a copy of the roster in file order.
func (r *SetupRegistry) All() []Setup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Setup(nil), r.setups...)
}

// ByName returns the member called name.
func (r *SetupRegistry) ByName(name string) (Setup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.setups {
		if s.Name == name {
			return s, true
		}
	}
	return Setup{}, false
}

// SelectByPurpose returns the single member with purpose.
func (r *SetupRegistry) SelectByPurpose(purpose string) (Setup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []Setup
	for _, s := range r.setups {
		if s.Purpose == purpose {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return Setup{}, &SelectionError{Kind: SelectionNotFound, Purpose: purpose}
	case 1:
		return found[0], nil
	default:
		names := make([]string, len(found))
		for i, s := range found {
			names[i] = s.Name
		}
		return Setup{}, &SelectionError{Kind: SelectionAmbiguous, Purpose: purpose, Candidates: names}
	}
}

// SelectLead returns the single lead architect.
func (r *SetupRegistry) SelectLead() (Setup, error) {
	return r.SelectByPurpose(PurposeLeadArchitect)
}

// PeerRoster renders "name: purpose" lines for every non-lead member.
func (r *SetupRegistry) PeerRoster() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for _, s := range r.setups {
		if s.IsLead() {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", s.Name, s.Purpose)
	}
	return b.String()
}

var mentionPattern = regexp.MustCompile(`@([a-zA-Z]+)`)

// ExtractMember resolves the first @name mention that names a member.
func (r *SetupRegistry) ExtractMember(prompt string) (Setup, error) {
	for _, m := range mentionPattern.FindAllStringSubmatch(prompt, -1) {
		if s, ok := r.ByName(m[1]); ok {
			return s, nil
		}
	}
	return Setup{}, types.NewError(types.ErrNotFound, "no valid member name found in the prompt")
}
