package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
)

type flakyGateway struct {
	failures int
	calls    int
	err      error
}

func (g *flakyGateway) Name() string { return "flaky" }

func (g *flakyGateway) Send(ctx context.Context, snapshot []convo.Turn, catalog []fnreg.FunctionSpec) (ModelResponse, error) {
	g.calls++
	if g.calls <= g.failures {
		return ModelResponse{}, g.err
	}
	return ModelResponse{FinalText: "ok"}, nil
}

func TestRetryRecoversFromRetryableError(t *testing.T) {
	inner := &flakyGateway{failures: 2, err: &GatewayError{Message: "connection reset", Retryable: true}}
	g := WithRetry(inner, RetryConfig{MaxAttempts: 3, Sleep: func(time.Duration) {}})

	resp, err := g.Send(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("send error: %v", err)
	}
	if resp.FinalText != "ok" || inner.calls != 3 {
		t.Fatalf("expected success on third attempt, got %q after %d calls", resp.FinalText, inner.calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	inner := &flakyGateway{failures: 5, err: &GatewayError{Message: "model not found", Retryable: false}}
	g := WithRetry(inner, RetryConfig{MaxAttempts: 4, Sleep: func(time.Duration) {}})

	if _, err := g.Send(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error")
	}
	if inner.calls != 1 {
		t.Fatalf("non-retryable error should not be retried, got %d calls", inner.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyGateway{failures: 10, err: &GatewayError{Message: "timeout", Retryable: true}}
	g := WithRetry(inner, RetryConfig{MaxAttempts: 3, Sleep: func(time.Duration) {}})

	if _, err := g.Send(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}
