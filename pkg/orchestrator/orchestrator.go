// Package orchestrator drives the function-calling loop: it feeds user
// turns to the model gateway, executes requested function calls, folds
// the results back into the conversation and resumes generation until a
// final answer is produced.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/errorsx"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway"
	"github.com/robit-man/gemma3-evaluation-app/pkg/invoke"
	"github.com/robit-man/gemma3-evaluation-app/pkg/metrics"
)

// ErrRoundLimitExceeded signals that the model kept requesting calls
// past the configured round cap.
var ErrRoundLimitExceeded = errors.New("round limit exceeded")

// Config bounds one orchestrator instance.
type Config struct {
	// MaxRounds caps gateway sends per user turn.
	MaxRounds int
	// ToolConcurrency bounds parallel function invocations within one
	// model turn.
	ToolConcurrency int
}

// TurnResult is what one user turn produced. State is the terminal state
// of the turn (DONE or FAILED); the machine itself returns to
// AWAITING_USER afterwards.
type TurnResult struct {
	Text  string
	State State
	Err   error
}

type Option func(*Orchestrator)

func WithObserver(obs metrics.Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.obs = obs
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// Orchestrator owns one conversation and processes one user turn at a
// time through the state machine.
type Orchestrator struct {
	conv    *convo.Conversation
	gw      gateway.ModelGateway
	invoker *invoke.Invoker
	catalog []fnreg.FunctionSpec
	fsm     *stateMachine
	cfg     Config
	obs     metrics.Observer
	log     *slog.Logger

	// Serializes turns: a turn runs to completion before the next starts.
	turnMu sync.Mutex
}

func New(conv *convo.Conversation, gw gateway.ModelGateway, invoker *invoke.Invoker, registry *fnreg.Registry, cfg Config, opts ...Option) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 8
	}
	if cfg.ToolConcurrency <= 0 {
		cfg.ToolConcurrency = 4
	}
	o := &Orchestrator{
		conv:    conv,
		gw:      gw,
		invoker: invoker,
		catalog: registry.Catalog(),
		fsm:     newStateMachine(),
		cfg:     cfg,
		obs:     metrics.NoopObserver{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current machine state.
func (o *Orchestrator) State() State { return o.fsm.State() }

// AddListener registers a listener for state change events.
func (o *Orchestrator) AddListener(l StateListener) { o.fsm.AddListener(l) }

// Conversation exposes the owned log for read access.
func (o *Orchestrator) Conversation() *convo.Conversation { return o.conv }

// RunTurn processes one user turn to completion. When image is nil the
// most recently attached frame is reused, so follow-up questions about a
// captured frame need no recapture.
func (o *Orchestrator) RunTurn(ctx context.Context, text string, image *convo.ImageBlob) TurnResult {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	started := time.Now()
	if image == nil {
		image = o.conv.LastUserImage()
	}
	o.conv.Append(convo.UserTurn(text, image))
	if err := o.fsm.Transition(StateAwaitingModel, "user turn received"); err != nil {
		return TurnResult{State: o.fsm.State(), Err: err}
	}

	var partialText string
	for round := 0; ; round++ {
		if round >= o.cfg.MaxRounds {
			err := errorsx.Wrap(fmt.Errorf("%w after %d rounds", ErrRoundLimitExceeded, round), errorsx.ReasonRoundLimit)
			return o.fail(started, partialText, "round limit exceeded", err)
		}

		resp, err := o.gw.Send(ctx, o.conv.Snapshot(), o.catalog)
		if err != nil {
			return o.fail(started, partialText, "gateway failure", errorsx.Wrap(err, errorsx.ReasonGatewaySend))
		}
		o.obs.RecordEvent(metrics.MetricsEvent{
			Name: "gateway_round",
			Time: time.Now(),
			Tags: map[string]string{"gateway": o.gw.Name()},
		})

		if !resp.HasCalls() {
			o.conv.Append(convo.AssistantText(resp.FinalText))
			_ = o.fsm.Transition(StateDone, "final text produced")
			o.recordTurn(started, StateDone, round+1)
			_ = o.fsm.Transition(StateAwaitingUser, "ready for next turn")
			return TurnResult{Text: resp.FinalText, State: StateDone}
		}

		// Text alongside calls is partial output; keep the latest in
		// case the turn ends in failure.
		if resp.FinalText != "" {
			partialText = resp.FinalText
		}

		for _, call := range resp.Calls {
			o.conv.Append(convo.AssistantCall(call.ID, call.Name, call.Arguments))
		}
		if err := o.fsm.Transition(StateExecutingCalls, fmt.Sprintf("%d call(s) requested", len(resp.Calls))); err != nil {
			return o.fail(started, partialText, "invalid transition", err)
		}

		outcomes := o.executeCalls(ctx, resp.Calls)
		for _, out := range outcomes {
			o.conv.Append(convo.FunctionResult(out.ID, out.Name, out.OK, out.Value, out.Err))
		}
		_ = o.fsm.Transition(StateAwaitingModel, "resuming with call results")
	}
}

// executeCalls fans the requests out with bounded concurrency and
// collects every outcome before returning; calls within one model turn
// are independent and a failed one never blocks the rest.
func (o *Orchestrator) executeCalls(ctx context.Context, calls []gateway.CallRequest) []invoke.CallOutcome {
	outcomes := make([]invoke.CallOutcome, len(calls))
	sem := make(chan struct{}, o.cfg.ToolConcurrency)
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call gateway.CallRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = o.invoker.Invoke(ctx, call)
			o.obs.RecordEvent(metrics.MetricsEvent{
				Name:  "tool_invoked",
				Time:  time.Now(),
				Tags:  map[string]string{"function": call.Name, "ok": fmt.Sprintf("%t", outcomes[i].OK)},
				Value: 1,
			})
		}(i, call)
	}
	wg.Wait()
	return outcomes
}

func (o *Orchestrator) fail(started time.Time, partialText, reason string, err error) TurnResult {
	o.log.Error("turn failed", "reason", reason, "err", err)
	_ = o.fsm.Transition(StateFailed, reason)
	o.recordTurn(started, StateFailed, 0)
	_ = o.fsm.Transition(StateAwaitingUser, "ready for next turn")
	return TurnResult{Text: partialText, State: StateFailed, Err: err}
}

func (o *Orchestrator) recordTurn(started time.Time, terminal State, rounds int) {
	o.obs.RecordEvent(metrics.MetricsEvent{
		Name:  "turn_complete",
		Time:  time.Now(),
		Value: time.Since(started).Seconds(),
		Tags:  map[string]string{"state": terminal.String()},
		Fields: map[string]any{
			"rounds": rounds,
		},
	})
}
