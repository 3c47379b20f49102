package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/errorsx"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway/mock"
	"github.com/robit-man/gemma3-evaluation-app/pkg/invoke"
	"github.com/robit-man/gemma3-evaluation-app/pkg/metrics"
)

func locationRegistry(t *testing.T) *fnreg.Registry {
	t.Helper()
	r := fnreg.NewRegistry()
	err := r.Register(fnreg.FunctionSpec{
		Name:   "get_ip_location",
		Params: map[string]fnreg.ParamSpec{"ip": {Type: "string"}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"city": "Reno", "country": "US"}, nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	r.Freeze()
	return r
}

func newOrchestrator(t *testing.T, gw gateway.ModelGateway, reg *fnreg.Registry, cfg Config, opts ...Option) *Orchestrator {
	t.Helper()
	return New(convo.New(), gw, invoke.New(reg, invoke.WithTimeout(time.Second)), reg, cfg, opts...)
}

func TestRunTurnSingleCallToFinalText(t *testing.T) {
	reg := locationRegistry(t)
	gw := mock.New(
		mock.Step{Response: gateway.ModelResponse{Calls: []gateway.CallRequest{{ID: "c1", Name: "get_ip_location", Arguments: map[string]any{}}}}},
		mock.Step{Response: gateway.ModelResponse{FinalText: "You appear to be in Reno."}},
	)
	obs := metrics.NewMemoryObserver()
	o := newOrchestrator(t, gw, reg, Config{}, WithObserver(obs))

	result := o.RunTurn(context.Background(), "What's my IP location?", nil)
	if result.State != StateDone {
		t.Fatalf("expected DONE, got %s (err %v)", result.State, result.Err)
	}
	if result.Text != "You appear to be in Reno." {
		t.Fatalf("unexpected final text %q", result.Text)
	}
	if o.State() != StateAwaitingUser {
		t.Fatalf("machine should be back at AWAITING_USER, got %s", o.State())
	}

	snap := o.Conversation().Snapshot()
	wantKinds := []convo.Kind{convo.KindUser, convo.KindAssistantCall, convo.KindFunctionResult, convo.KindAssistantText}
	if len(snap) != len(wantKinds) {
		t.Fatalf("expected %d turns, got %d", len(wantKinds), len(snap))
	}
	for i, k := range wantKinds {
		if snap[i].Kind != k {
			t.Fatalf("turn %d: expected %s, got %s", i, k, snap[i].Kind)
		}
	}
	if !snap[2].OK {
		t.Fatalf("expected ok function_result, got error %q", snap[2].Error)
	}
	// The resumed send must already include the call/result turns.
	if gw.Sends() != 2 || len(gw.Snapshots[1]) != 3 {
		t.Fatalf("resumption snapshot wrong: %d sends, %d turns", gw.Sends(), len(gw.Snapshots[1]))
	}
	if obs.Count("tool_invoked") != 1 || obs.Count("turn_complete") != 1 {
		t.Fatalf("metrics not recorded: %+v", obs.Events())
	}
}

func TestRunTurnMultiCallMatchesEveryCallID(t *testing.T) {
	reg := locationRegistry(t)
	calls := []gateway.CallRequest{
		{ID: "a", Name: "get_ip_location", Arguments: map[string]any{}},
		{ID: "b", Name: "no_such_function", Arguments: map[string]any{}},
		{ID: "c", Name: "get_ip_location", Arguments: map[string]any{"bogus": 1}},
	}
	gw := mock.New(
		mock.Step{Response: gateway.ModelResponse{Calls: calls}},
		mock.Step{Response: gateway.ModelResponse{FinalText: "done"}},
	)
	o := newOrchestrator(t, gw, reg, Config{ToolConcurrency: 2})

	result := o.RunTurn(context.Background(), "run everything", nil)
	if result.State != StateDone {
		t.Fatalf("independent call failures must not fail the turn: %s (%v)", result.State, result.Err)
	}

	results := map[string]convo.Turn{}
	pending := map[string]bool{}
	for _, turn := range o.Conversation().Snapshot() {
		switch turn.Kind {
		case convo.KindAssistantCall:
			pending[turn.CallID] = true
		case convo.KindFunctionResult:
			if _, dup := results[turn.CallID]; dup {
				t.Fatalf("duplicate function_result for call %s", turn.CallID)
			}
			results[turn.CallID] = turn
		}
	}
	if len(results) != len(calls) {
		t.Fatalf("expected %d function_result turns, got %d", len(calls), len(results))
	}
	for id := range pending {
		if _, ok := results[id]; !ok {
			t.Fatalf("assistant_call %s has no matching function_result", id)
		}
	}
	if results["a"].OK != true || results["b"].OK != false || results["c"].OK != false {
		t.Fatalf("unexpected outcome flags: %+v", results)
	}
}

func TestRunTurnGatewayErrorIsTerminal(t *testing.T) {
	reg := locationRegistry(t)
	gw := mock.New(mock.Step{Err: &gateway.GatewayError{Message: "backend unreachable"}})
	o := newOrchestrator(t, gw, reg, Config{})

	result := o.RunTurn(context.Background(), "hello", nil)
	if result.State != StateFailed {
		t.Fatalf("expected FAILED, got %s", result.State)
	}
	if !errorsx.HasReason(result.Err, errorsx.ReasonGatewaySend) {
		t.Fatalf("expected gateway_send reason, got %v", result.Err)
	}
	// No retry inside the loop: a single send, then failure.
	if gw.Sends() != 1 {
		t.Fatalf("orchestrator must not retry, got %d sends", gw.Sends())
	}
	snap := o.Conversation().Snapshot()
	if len(snap) != 1 || snap[0].Kind != convo.KindUser {
		t.Fatalf("conversation should contain only the user turn, got %+v", snap)
	}
	if o.State() != StateAwaitingUser {
		t.Fatalf("next turn must be possible after failure, state %s", o.State())
	}
}

func TestRunTurnRoundLimit(t *testing.T) {
	reg := locationRegistry(t)
	// The scripted gateway repeats its last step: calls forever.
	gw := mock.New(mock.Step{Response: gateway.ModelResponse{
		FinalText: "still working",
		Calls:     []gateway.CallRequest{{ID: "x", Name: "get_ip_location", Arguments: map[string]any{}}},
	}})
	o := newOrchestrator(t, gw, reg, Config{MaxRounds: 3})

	result := o.RunTurn(context.Background(), "loop forever", nil)
	if result.State != StateFailed {
		t.Fatalf("expected FAILED, got %s", result.State)
	}
	if !errors.Is(result.Err, ErrRoundLimitExceeded) {
		t.Fatalf("expected ErrRoundLimitExceeded, got %v", result.Err)
	}
	if result.Text != "still working" {
		t.Fatalf("partial text should surface on round limit, got %q", result.Text)
	}
	if gw.Sends() != 3 {
		t.Fatalf("expected exactly MaxRounds sends, got %d", gw.Sends())
	}
}

func TestRunTurnHandlerTimeoutIsContained(t *testing.T) {
	reg := fnreg.NewRegistry()
	err := reg.Register(fnreg.FunctionSpec{
		Name: "get_ip_location",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Freeze()

	gw := mock.New(
		mock.Step{Response: gateway.ModelResponse{Calls: []gateway.CallRequest{{ID: "c1", Name: "get_ip_location"}}}},
		mock.Step{Response: gateway.ModelResponse{FinalText: "sorry, the lookup timed out"}},
	)
	o := New(convo.New(), gw, invoke.New(reg, invoke.WithTimeout(20*time.Millisecond)), reg, Config{})

	result := o.RunTurn(context.Background(), "where am I?", nil)
	if result.State != StateDone {
		t.Fatalf("timeout must be contained, got %s (%v)", result.State, result.Err)
	}
	snap := o.Conversation().Snapshot()
	var found bool
	for _, turn := range snap {
		if turn.Kind == convo.KindFunctionResult {
			found = true
			if turn.OK {
				t.Fatalf("expected failed result")
			}
			if !strings.Contains(turn.Error, "timed out") {
				t.Fatalf("result error should mention timeout: %q", turn.Error)
			}
		}
	}
	if !found {
		t.Fatalf("no function_result turn appended")
	}
}

func TestRunTurnReusesLastImage(t *testing.T) {
	reg := locationRegistry(t)
	gw := mock.New(mock.Step{Response: gateway.ModelResponse{FinalText: "ok"}})
	o := newOrchestrator(t, gw, reg, Config{})

	frame := &convo.ImageBlob{Data: []byte{1, 2, 3}, MIME: "image/jpeg"}
	o.RunTurn(context.Background(), "what is this?", frame)
	o.RunTurn(context.Background(), "zoom in on the left", nil)

	var lastUser convo.Turn
	for _, turn := range gw.Snapshots[1] {
		if turn.Kind == convo.KindUser {
			lastUser = turn
		}
	}
	if lastUser.Image == nil || lastUser.Image.MIME != "image/jpeg" {
		t.Fatalf("follow-up user turn should carry the cached frame, got %+v", lastUser.Image)
	}
}
