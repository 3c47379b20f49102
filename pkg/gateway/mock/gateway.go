// Package mock provides a scripted gateway for tests.
package mock

import (
	"context"
	"sync"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway"
)

// Step is one scripted gateway exchange.
type Step struct {
	Response gateway.ModelResponse
	Err      error
}

// Gateway replays scripted steps in order and records every snapshot it
// was sent. When the script runs out it keeps returning the last step.
type Gateway struct {
	mu        sync.Mutex
	steps     []Step
	next      int
	Snapshots [][]convo.Turn
	Catalogs  [][]fnreg.FunctionSpec
}

func New(steps ...Step) *Gateway {
	return &Gateway{steps: steps}
}

func (g *Gateway) Name() string { return "mock" }

func (g *Gateway) Send(ctx context.Context, snapshot []convo.Turn, catalog []fnreg.FunctionSpec) (gateway.ModelResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Snapshots = append(g.Snapshots, snapshot)
	g.Catalogs = append(g.Catalogs, catalog)

	if len(g.steps) == 0 {
		return gateway.ModelResponse{FinalText: "mock response"}, nil
	}
	step := g.steps[g.next]
	if g.next < len(g.steps)-1 {
		g.next++
	}
	return step.Response, step.Err
}

// Sends reports how many times the gateway was called.
func (g *Gateway) Sends() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Snapshots)
}
