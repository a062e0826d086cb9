package handlers

import (
	"errors"
	"net/http"

	"github.com/frogteam/frogteam/agent/roster"
	"github.com/frogteam/frogteam/types"
	"go.uber.org/zap"
)

// Member is a setup with its credentials removed.
type Member struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Model    string `json:"model"`
	Provider string `json:"provider,omitempty"`
	Color    string `json:"color,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Lead     bool   `json:"lead"`
}

// RosterView is the body of GET /api/v1/roster.
type RosterView struct {
	Members        []Member                `json:"members"`
	MissingPrompts []roster.RequiredPrompt `json:"missingPrompts"`
}

// RosterHandler 团队配置接口
type RosterHandler struct {
	setups    *roster.SetupRegistry
	prompts   *roster.PromptRegistry
	reloaders []roster.Reloader
	logger    *zap.Logger
}

// NewRosterHandler 创建处理器; reloaders are re-read by HandleReload in order.
func NewRosterHandler(setups *roster.SetupRegistry, prompts *roster.PromptRegistry, logger *zap.Logger, reloaders ...roster.Reloader) *RosterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterHandler{
		setups:    setups,
		prompts:   prompts,
		reloaders: reloaders,
		logger:    logger.With(zap.String("handler", "roster")),
	}
}

// HandleGet 处理 GET /api/v1/roster
func (h *RosterHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	view := RosterView{Members: []Member{}, MissingPrompts: []roster.RequiredPrompt{}}
	if h.setups != nil {
		for _, s := range h.setups.All() {
			view.Members = append(view.Members, Member{
				Name:     s.Name,
				Purpose:  s.Purpose,
				Model:    s.Model,
				Provider: s.Provider,
				Color:    s.Color,
				Icon:     s.Icon,
				Lead:     s.IsLead(),
			})
		}
	}
	if h.prompts != nil {
		if missing := h.prompts.ValidateRequired(); missing != nil {
			view.MissingPrompts = missing
		}
	}
	WriteSuccess(w, view)
}

// HandleReload 处理 POST /api/v1/roster/reload. Every registry is attempted;
// a failed one keeps its previous contents.
func (h *RosterHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	var errs []error
	reloaded := make([]string, 0, len(h.reloaders))
	for _, rl := range h.reloaders {
		if err := rl.Reload(r.Context()); err != nil {
			errs = append(errs, err)
			continue
		}
		reloaded = append(reloaded, rl.Path())
	}
	if err := errors.Join(errs...); err != nil {
		WriteError(w, types.NewError(types.ErrConfigurationMissing, "roster reload failed").WithCause(err), h.logger)
		return
	}
	h.logger.Info("roster reloaded", zap.Strings("files", reloaded))
	WriteSuccess(w, map[string]any{"reloaded": reloaded})
}
