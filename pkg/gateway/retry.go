package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
)

// RetryConfig bounds the retry decorator.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       func(time.Duration)
}

type retryGateway struct {
	next ModelGateway
	cfg  RetryConfig
}

// WithRetry wraps a gateway with bounded retry for retryable failures.
// Retry policy lives here at the gateway boundary; callers see only the
// final outcome.
func WithRetry(next ModelGateway, cfg RetryConfig) ModelGateway {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &retryGateway{next: next, cfg: cfg}
}

func (g *retryGateway) Name() string { return g.next.Name() + "+retry" }

func (g *retryGateway) Send(ctx context.Context, snapshot []convo.Turn, catalog []fnreg.FunctionSpec) (ModelResponse, error) {
	var lastErr error
	delay := g.cfg.BaseDelay
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ModelResponse{}, ctx.Err()
		}
		resp, err := g.next.Send(ctx, snapshot, catalog)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == g.cfg.MaxAttempts-1 {
			break
		}
		g.cfg.Sleep(delay)
		delay *= 2
		if delay > g.cfg.MaxDelay {
			delay = g.cfg.MaxDelay
		}
	}
	return ModelResponse{}, lastErr
}

func isRetryable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}
