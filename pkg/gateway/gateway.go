package gateway

import (
	"context"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
)

// CallRequest is the model's request to execute a registered function.
type CallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ModelResponse is the tagged union a gateway returns: either a final
// natural-language answer, or one or more function-call requests. Text may
// accompany calls; it is partial output, not the final answer.
type ModelResponse struct {
	FinalText string
	Calls     []CallRequest
}

func (r ModelResponse) HasCalls() bool { return len(r.Calls) > 0 }

// GatewayError reports a transport or backend failure. Retryable marks
// failures a retry decorator may re-attempt; the orchestrator itself
// never retries.
type GatewayError struct {
	Message   string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return "gateway: " + e.Message
	}
	if e.Err != nil {
		return "gateway: " + e.Err.Error()
	}
	return "gateway error"
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ModelGateway sends a conversation snapshot plus function catalog to an
// inference backend.
type ModelGateway interface {
	Send(ctx context.Context, snapshot []convo.Turn, catalog []fnreg.FunctionSpec) (ModelResponse, error)
	Name() string
}
