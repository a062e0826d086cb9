package queue

import (
	"context"

	"github.com/frogteam/frogteam/agent/history"
	"github.com/frogteam/frogteam/agent/persistence"
	"github.com/frogteam/frogteam/agent/roster"
	"github.com/frogteam/frogteam/llm"
	"github.com/frogteam/frogteam/llm/tools"
)

// JobSpec is the durable half of a job.
type JobSpec = persistence.JobSpec

// JobType identifies the handler a job is dispatched to.
type JobType = persistence.JobType

const (
	JobMemberAssignment = persistence.JobMemberAssignment
	JobDalleImage       = persistence.JobDalleImage
	JobStabilityImage   = persistence.JobStabilityImage
)

// ProviderFactory builds the model client for a member.
type ProviderFactory func(setup roster.Setup) (llm.Provider, error)

// ToolsFactory returns a fresh registry holding the workspace tools.
type ToolsFactory func() (*tools.Registry, error)

// RuntimeContext carries the live dependencies a job needs. It is attached
// by the queue and never written to the snapshot.
type RuntimeContext struct {
	Ledger    *history.Ledger
	Setups    *roster.SetupRegistry
	Prompts   *roster.PromptRegistry
	Projects  *roster.ProjectRegistry
	Workspace *tools.Workspace
	Providers ProviderFactory
	Tools     ToolsFactory
}

// Handler executes one job and returns its textual result.
type Handler func(ctx context.Context, spec JobSpec, rt RuntimeContext) (string, error)

// Handle is returned by Submit and resolves when the job finishes.
type Handle struct {
	spec   JobSpec
	done   chan struct{}
	result string
	err    error
}

func newHandle(spec JobSpec) *Handle {
	return &Handle{spec: spec, done: make(chan struct{})}
}

// ID returns the job id.
func (h *Handle) ID() string { return h.spec.ID }

// Spec returns the submitted job.
func (h *Handle) Spec() JobSpec { return h.spec }

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (string, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (h *Handle) resolve(result string, err error) {
	h.result, h.err = result, err
	close(h.done)
}
