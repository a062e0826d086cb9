package assignment

import "fmt"

// State 定义一次运行所处的阶段
type State string

const (
	StateInit           State = "init"
	StateAwaitingModel  State = "awaiting_model"
	StateToolsPending   State = "tools_pending"
	StateExecutingTools State = "executing_tools"
	StateSummarizing    State = "summarizing"
	StateDone           State = "done"
	StateErrored        State = "errored"
)

// validTransitions 定义合法的状态转换
var validTransitions = map[State][]State{
	StateInit:           {StateAwaitingModel, StateErrored},
	StateAwaitingModel:  {StateToolsPending, StateSummarizing, StateErrored},
	StateToolsPending:   {StateExecutingTools, StateErrored},
	StateExecutingTools: {StateAwaitingModel, StateErrored},
	StateSummarizing:    {StateDone, StateErrored},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further steps run from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
