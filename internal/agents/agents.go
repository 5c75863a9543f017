// Package agents implements the generation steps of the creative pipeline.
// Every agent reads its inputs from the pipeline state, makes exactly one
// model call and turns the answer into a typed fragment. Generation and
// parse failures degrade to an empty (or derived) fragment; only missing
// inputs are fatal.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mtzanidakis/scenegen/internal/llm"
	"github.com/mtzanidakis/scenegen/internal/pipeline"
	"github.com/mtzanidakis/scenegen/internal/response"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// Input slots that come from the run input rather than from another agent.
const (
	InputProductName pipeline.Key = "product_name"
	InputImage       pipeline.Key = "image"
)

// ErrEmptyInput marks an agent that skipped its model call because an
// upstream agent degraded to an empty fragment.
var ErrEmptyInput = errors.New("upstream input is empty")

type Options struct {
	Temperature float64
	// MaxTokens caps the product analysis answer. Other calls use the
	// provider default so multi-ratio layouts are not truncated.
	MaxTokens int
}

func (o Options) withDefaults() Options {
	if o.Temperature <= 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// role is the part that differs between agents.
type role struct {
	name   string
	system string
	// required response keys; anything else defaults to empty.
	required []string
	// capped applies Options.MaxTokens to the call.
	capped bool
	// named and image require the product name and photo from the run input;
	// image also attaches the photo to the request.
	named   bool
	image   bool
	content func(st *pipeline.State) string
	decode  func(doc response.Document) (pipeline.Fragment, error)
	// fallback builds the degraded fragment; nil means the empty fragment.
	fallback func(st *pipeline.State) pipeline.Fragment
}

type agent struct {
	role
	desc pipeline.Descriptor
	gen  llm.Generator
	opts Options
}

// New returns the six generation agents of the default graph keyed by node
// name. The scene assembler is provided separately.
func New(gen llm.Generator, opts Options) map[string]pipeline.Node {
	opts = opts.withDefaults()

	descs := make(map[string]pipeline.Descriptor)
	for _, d := range pipeline.DefaultGraph() {
		descs[d.Name] = d
	}

	nodes := make(map[string]pipeline.Node)
	for _, r := range roles() {
		nodes[r.name] = &agent{role: r, desc: descs[r.name], gen: gen, opts: opts}
	}
	return nodes
}

func (a *agent) Run(ctx context.Context, st *pipeline.State) pipeline.Result {
	if err := a.checkRunInput(st); err != nil {
		return pipeline.Failed(err)
	}
	empty, err := st.CheckInputs(a.name, a.desc.Requires, a.desc.Uses)
	if err != nil {
		return pipeline.Failed(err)
	}
	if len(empty) > 0 {
		return a.degrade(st, fmt.Errorf("%w: %v", ErrEmptyInput, empty))
	}

	req := llm.Request{
		Tag:    a.name,
		System: a.system,
		Parts:  []llm.Part{llm.TextPart(a.content(st))},
		Options: llm.Options{
			Temperature: a.opts.Temperature,
			JSONMode:    true,
		},
	}
	if a.capped {
		req.Options.MaxTokens = a.opts.MaxTokens
	}
	if a.image {
		req.Parts = append(req.Parts, llm.ImagePart(st.Image()))
	}

	text, err := a.gen.Generate(ctx, req)
	if err != nil {
		return a.degrade(st, err)
	}
	slog.Debug("agent response", "agent", a.name, "bytes", len(text))

	doc, err := response.Parse(text, a.required...)
	if err != nil {
		slog.Debug("agent response unusable", "agent", a.name, "response", truncate(text, 300), "error", err)
		return a.degrade(st, err)
	}
	frag, err := a.decode(doc)
	if err != nil {
		return a.degrade(st, &response.ParseError{Err: err})
	}
	return pipeline.Completed(frag)
}

// checkRunInput verifies the run input the agent depends on.
func (a *agent) checkRunInput(st *pipeline.State) error {
	var missing []pipeline.Key
	if a.named && strings.TrimSpace(st.ProductName()) == "" {
		missing = append(missing, InputProductName)
	}
	if a.image && st.Image().Empty() {
		missing = append(missing, InputImage)
	}
	if len(missing) > 0 {
		return &pipeline.MissingInputError{Agent: a.name, Keys: missing}
	}
	return nil
}

func (a *agent) degrade(st *pipeline.State, cause error) pipeline.Result {
	frag := pipeline.EmptyFragment(a.desc.Produces)
	if a.fallback != nil {
		frag = a.fallback(st)
	}
	return pipeline.Degraded(frag, cause)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
