// Package invoke executes model-requested function calls with argument
// validation, timeout bounding and failure containment.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/errorsx"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway"
)

// CallOutcome is the structured result of one call request. A failed
// call is data, not control flow: ok=false plus an error description.
type CallOutcome struct {
	ID     string
	Name   string
	OK     bool
	Value  any
	Err    string
	Reason errorsx.ReasonCode
}

const DefaultTimeout = 10 * time.Second

type Option func(*Invoker)

// WithTimeout bounds each handler's wall-clock execution.
func WithTimeout(d time.Duration) Option {
	return func(iv *Invoker) {
		if d > 0 {
			iv.timeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(iv *Invoker) {
		if log != nil {
			iv.log = log
		}
	}
}

// Invoker resolves, validates and executes call requests against a
// registry. Every failure mode is contained into the outcome; Invoke
// never panics and never returns an error to the caller.
type Invoker struct {
	registry *fnreg.Registry
	timeout  time.Duration
	log      *slog.Logger
}

func New(registry *fnreg.Registry, opts ...Option) *Invoker {
	iv := &Invoker{
		registry: registry,
		timeout:  DefaultTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

func (iv *Invoker) Invoke(ctx context.Context, req gateway.CallRequest) CallOutcome {
	spec, err := iv.registry.Lookup(req.Name)
	if err != nil {
		return iv.failure(req, err, errorsx.ReasonUnknownFunction)
	}

	args, err := fnreg.ValidateArgs(spec, req.Arguments)
	if err != nil {
		return iv.failure(req, err, errorsx.ReasonValidation)
	}

	value, err := iv.execute(ctx, spec, args)
	if err != nil {
		return iv.failure(req, err, errorsx.Reason(err))
	}

	// The value has to survive JSON encoding on its way back into the
	// conversation; reject it here instead of failing downstream.
	if _, err := json.Marshal(value); err != nil {
		return iv.failure(req,
			errorsx.Wrap(fmt.Errorf("result of %s is not JSON-representable: %w", req.Name, err), errorsx.ReasonBadResult),
			errorsx.ReasonBadResult)
	}

	return CallOutcome{ID: req.ID, Name: req.Name, OK: true, Value: value}
}

type handlerResult struct {
	value any
	err   error
}

func (iv *Invoker) execute(ctx context.Context, spec fnreg.FunctionSpec, args map[string]any) (any, error) {
	cctx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	done := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerResult{err: errorsx.Wrap(fmt.Errorf("handler %s panicked: %v", spec.Name, r), errorsx.ReasonHandlerFailure)}
			}
		}()
		value, err := spec.Handler(cctx, args)
		done <- handlerResult{value: value, err: errorsx.Wrap(err, errorsx.ReasonHandlerFailure)}
	}()

	select {
	case <-cctx.Done():
		// The goroutine keeps running until the handler honors cctx;
		// handlers are idempotent by convention so its side effects are
		// not rolled back.
		if cctx.Err() == context.DeadlineExceeded {
			return nil, errorsx.Wrap(fmt.Errorf("handler %s timed out after %s", spec.Name, iv.timeout), errorsx.ReasonHandlerTimeout)
		}
		return nil, errorsx.Wrap(fmt.Errorf("handler %s canceled: %w", spec.Name, cctx.Err()), errorsx.ReasonHandlerFailure)
	case res := <-done:
		return res.value, res.err
	}
}

func (iv *Invoker) failure(req gateway.CallRequest, err error, reason errorsx.ReasonCode) CallOutcome {
	iv.log.Warn("function call failed",
		"call_id", req.ID,
		"function", req.Name,
		"reason", string(reason),
		"err", err,
	)
	return CallOutcome{ID: req.ID, Name: req.Name, Err: err.Error(), Reason: reason}
}
