package pipeline

import (
	"context"
	"time"
)

// Status is the outcome class of one agent invocation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
	StatusFailed    Status = "failed"
)

// Result is what a node hands back to the orchestrator. Completed and
// degraded results carry a fragment; failed results carry a fatal error.
type Result struct {
	Status   Status
	Fragment Fragment
	Err      error
}

func Completed(f Fragment) Result {
	return Result{Status: StatusCompleted, Fragment: f}
}

// Degraded returns f, usually empty, together with the recoverable cause.
func Degraded(f Fragment, err error) Result {
	return Result{Status: StatusDegraded, Fragment: f, Err: err}
}

func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Node is one step of the graph. Nodes read the state and return a result;
// they never write the state themselves.
type Node interface {
	Run(ctx context.Context, st *State) Result
}

// NodeFunc adapts a function to Node.
type NodeFunc func(ctx context.Context, st *State) Result

func (f NodeFunc) Run(ctx context.Context, st *State) Result {
	return f(ctx, st)
}

// Outcome is the recorded result of one node within a run.
type Outcome struct {
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
