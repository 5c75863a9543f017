package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/scenegen/internal/natsbus"
	"github.com/mtzanidakis/scenegen/internal/store"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrent caps parallel node invocations. The default graph never has
// more ready nodes than this.
const MaxConcurrent = 7

// Publisher receives lifecycle events. *natsbus.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Recorder persists run and per-agent status. *store.Store satisfies it.
type Recorder interface {
	SaveRun(r *store.Run) error
	SaveAgentRun(a *store.AgentRun) error
	FinishRun(id, status string, scenes int, elapsed time.Duration, errMsg string) error
}

type Options struct {
	// MaxConcurrent bounds parallel nodes; values outside [1, MaxConcurrent]
	// are clamped.
	MaxConcurrent int
	Events        Publisher
	Recorder      Recorder
}

// Orchestrator runs a validated graph against a fresh state per run.
type Orchestrator struct {
	plan          *Plan
	nodes         map[string]Node
	maxConcurrent int
	events        Publisher
	recorder      Recorder
}

func NewOrchestrator(descs []Descriptor, nodes map[string]Node, opts Options) (*Orchestrator, error) {
	plan, err := BuildPlan(descs)
	if err != nil {
		return nil, err
	}
	for _, name := range plan.Order() {
		if nodes[name] == nil {
			return nil, graphErrorf("node %q has no implementation", name)
		}
	}

	limit := opts.MaxConcurrent
	if limit <= 0 || limit > MaxConcurrent {
		limit = MaxConcurrent
	}

	return &Orchestrator{
		plan:          plan,
		nodes:         nodes,
		maxConcurrent: limit,
		events:        opts.Events,
		recorder:      opts.Recorder,
	}, nil
}

// Plan returns the validated plan.
func (o *Orchestrator) Plan() *Plan {
	return o.plan
}

// Run is the outcome of one execution.
type Run struct {
	ID       string
	State    *State
	Statuses map[string]Outcome
	Elapsed  time.Duration
}

// Status summarizes the run: completed, degraded when any agent degraded,
// failed when an error ended it.
func (r *Run) Status(err error) string {
	if err != nil {
		return string(StatusFailed)
	}
	for _, o := range r.Statuses {
		if o.Status == StatusDegraded {
			return string(StatusDegraded)
		}
	}
	return string(StatusCompleted)
}

// Run executes the graph once. Every node starts as soon as all of its
// predecessors finished. On a fatal error or cancellation no further nodes
// start, in-flight nodes are drained, and the returned run carries a state
// whose final_json is empty alongside the error.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Run, error) {
	run := &Run{
		ID:       uuid.New().String(),
		State:    NewState(in),
		Statuses: make(map[string]Outcome, o.plan.Len()),
	}
	start := time.Now()

	slog.Info("pipeline run started", "run", run.ID, "product", in.ProductName, "nodes", o.plan.Len())
	slog.Debug("pipeline plan", "run", run.ID, "tiers", o.plan.Tiers())
	if o.recorder != nil {
		if err := o.recorder.SaveRun(&store.Run{ID: run.ID, ProductName: in.ProductName, Status: "running"}); err != nil {
			slog.Warn("save run failed", "run", run.ID, "error", err)
		}
	}
	o.publishEvent(run.ID, "run_started", map[string]any{
		"product": in.ProductName,
		"nodes":   o.plan.Len(),
	})

	err := o.execute(ctx, run)
	run.Elapsed = time.Since(start)
	if err != nil {
		run.State.closeFinal()
	}

	status := run.Status(err)
	scenes := len(run.State.FinalJSON())
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		slog.Error("pipeline run failed", "run", run.ID, "elapsed", run.Elapsed, "error", err)
	} else {
		slog.Info("pipeline run finished", "run", run.ID, "status", status, "scenes", scenes, "elapsed", run.Elapsed)
	}

	if o.recorder != nil {
		if rerr := o.recorder.FinishRun(run.ID, status, scenes, run.Elapsed, errMsg); rerr != nil {
			slog.Warn("finish run failed", "run", run.ID, "error", rerr)
		}
	}
	data := map[string]any{
		"status":     status,
		"scenes":     scenes,
		"elapsed_ms": run.Elapsed.Milliseconds(),
	}
	if err != nil {
		data["error"] = errMsg
	}
	eventType := "run_completed"
	if err != nil {
		eventType = "run_failed"
	}
	o.publishEvent(run.ID, eventType, data)

	return run, err
}

type completion struct {
	name     string
	result   Result
	duration time.Duration
}

func (o *Orchestrator) execute(ctx context.Context, run *Run) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrent)

	// Each node completes at most once, so workers never block on send.
	done := make(chan completion, o.plan.Len())
	waiting := make(map[string]int, o.plan.Len())
	for name, n := range o.plan.inDegree {
		waiting[name] = n
	}

	inflight := 0
	launch := func(name string) {
		inflight++
		node := o.nodes[name]
		slog.Debug("agent started", "run", run.ID, "agent", name)
		g.Go(func() error {
			started := time.Now()
			res := invoke(gctx, name, node, run.State)
			done <- completion{name: name, result: res, duration: time.Since(started)}
			if res.Status == StatusFailed {
				return res.Err
			}
			return nil
		})
	}

	for _, name := range o.plan.Sources() {
		launch(name)
	}

	var fatal error
	for inflight > 0 {
		c := <-done
		inflight--

		if err := o.apply(run, c); err != nil {
			if fatal == nil {
				fatal = err
			}
			continue
		}
		if fatal != nil || gctx.Err() != nil {
			continue
		}
		for _, next := range o.plan.dependents[c.name] {
			waiting[next]--
			if waiting[next] == 0 {
				launch(next)
			}
		}
	}
	_ = g.Wait()

	switch {
	case fatal != nil:
		return fatal
	case run.State.Written(KeyFinalJSON):
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	default:
		return fmt.Errorf("terminal node %q did not run", o.plan.Sink())
	}
}

// apply records a completion and publishes its fragment. A returned error
// is fatal for the run.
func (o *Orchestrator) apply(run *Run, c completion) error {
	res := c.result
	desc := o.plan.descs[c.name]

	var err error
	switch res.Status {
	case StatusCompleted, StatusDegraded:
		frag := res.Fragment
		if !frag.Valid() {
			frag = EmptyFragment(desc.Produces)
		}
		if frag.Key() != desc.Produces {
			err = fmt.Errorf("%s returned %q, expected %q", c.name, frag.Key(), desc.Produces)
		} else if perr := run.State.Put(frag); perr != nil {
			err = fmt.Errorf("%s: %w", c.name, perr)
		}
	case StatusFailed:
		err = res.Err
		if err == nil {
			err = fmt.Errorf("%s failed", c.name)
		}
	default:
		err = fmt.Errorf("%s returned unknown status %q", c.name, res.Status)
	}

	outcome := Outcome{Status: res.Status, Duration: c.duration}
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
	} else if res.Err != nil {
		outcome.Error = res.Err.Error()
	}
	run.Statuses[c.name] = outcome

	switch outcome.Status {
	case StatusDegraded:
		slog.Warn("agent degraded", "run", run.ID, "agent", c.name, "duration", c.duration, "error", res.Err)
	case StatusFailed:
		slog.Error("agent failed", "run", run.ID, "agent", c.name, "duration", c.duration, "error", err)
	default:
		slog.Info("agent completed", "run", run.ID, "agent", c.name, "duration", c.duration)
	}

	if o.recorder != nil {
		rec := &store.AgentRun{
			RunID:      run.ID,
			Agent:      c.name,
			Status:     string(outcome.Status),
			Error:      outcome.Error,
			DurationMS: c.duration.Milliseconds(),
		}
		if rerr := o.recorder.SaveAgentRun(rec); rerr != nil {
			slog.Warn("save agent run failed", "run", run.ID, "agent", c.name, "error", rerr)
		}
	}
	o.publishEvent(run.ID, "agent_completed", map[string]any{
		"agent":       c.name,
		"status":      outcome.Status,
		"error":       outcome.Error,
		"duration_ms": c.duration.Milliseconds(),
	})

	return err
}

// invoke runs node, converting a panic into a failed result.
func invoke(ctx context.Context, name string, node Node, st *State) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Errorf("%s panicked: %v", name, r))
		}
	}()
	return node.Run(ctx, st)
}

// Event is the payload published for run lifecycle changes.
type Event struct {
	Type      string         `json:"type"`
	RunID     string         `json:"run_id"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

func (o *Orchestrator) publishEvent(runID, eventType string, data map[string]any) {
	if o.events == nil {
		return
	}
	event := Event{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	if err := o.events.PublishJSON(natsbus.TopicRunEvents(runID), event); err != nil {
		slog.Debug("publish event failed", "run", runID, "type", eventType, "error", err)
	}
}

// IsCancelled reports whether err came from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
