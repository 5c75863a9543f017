// Package llmtest provides a scripted llm.Generator for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mtzanidakis/scenegen/internal/llm"
)

// Generator answers by request tag. It is safe for concurrent use.
//
//	gen := &llmtest.Generator{
//	    Responses: map[string]string{"product_analyzer": `{"product_features": "..."}`},
//	    Errors:    map[string]error{"trend_insight": errors.New("quota")},
//	}
type Generator struct {
	Responses map[string]string
	Errors    map[string]error
	// Delay, when set, is waited before answering (honouring ctx).
	Delay func(tag string) time.Duration
	// OnCall, when set, runs before the answer is produced.
	OnCall func(req llm.Request)

	mu       sync.Mutex
	calls    map[string]int
	requests []llm.Request
}

func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[req.Tag]++
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.OnCall != nil {
		g.OnCall(req)
	}

	if g.Delay != nil {
		if d := g.Delay(req.Tag); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return "", &llm.GenerationFailure{Model: "mock", Err: ctx.Err()}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return "", &llm.GenerationFailure{Model: "mock", Err: err}
	}

	if err, ok := g.Errors[req.Tag]; ok {
		return "", &llm.GenerationFailure{Model: "mock", Err: err}
	}
	if text, ok := g.Responses[req.Tag]; ok {
		return text, nil
	}
	return "", &llm.GenerationFailure{Model: "mock", Err: fmt.Errorf("no scripted response for %q", req.Tag)}
}

// Calls returns how often tag was requested.
func (g *Generator) Calls(tag string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[tag]
}

// TotalCalls returns the number of requests across all tags.
func (g *Generator) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns a copy of every request seen, in arrival order.
func (g *Generator) Requests() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}

// Request returns the last request with tag.
func (g *Generator) Request(tag string) (llm.Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.requests) - 1; i >= 0; i-- {
		if g.requests[i].Tag == tag {
			return g.requests[i], true
		}
	}
	return llm.Request{}, false
}
