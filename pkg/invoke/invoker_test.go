package invoke

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/errorsx"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway"
)

func newTestRegistry(t *testing.T, specs ...fnreg.FunctionSpec) *fnreg.Registry {
	t.Helper()
	r := fnreg.NewRegistry()
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			t.Fatalf("register %s: %v", spec.Name, err)
		}
	}
	r.Freeze()
	return r
}

func TestInvokeUnknownFunction(t *testing.T) {
	iv := New(newTestRegistry(t))

	out := iv.Invoke(context.Background(), gateway.CallRequest{ID: "c1", Name: "missing"})
	if out.OK {
		t.Fatalf("expected failure outcome")
	}
	if out.Reason != errorsx.ReasonUnknownFunction {
		t.Fatalf("expected unknown_function reason, got %s", out.Reason)
	}
	if out.ID != "c1" {
		t.Fatalf("outcome lost call id: %q", out.ID)
	}
}

func TestInvokeValidationFailureSkipsHandler(t *testing.T) {
	var invoked atomic.Int32
	spec := fnreg.FunctionSpec{
		Name:   "strict",
		Params: map[string]fnreg.ParamSpec{"needed": {Type: "string", Required: true}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			invoked.Add(1)
			return nil, nil
		},
	}
	iv := New(newTestRegistry(t, spec))

	out := iv.Invoke(context.Background(), gateway.CallRequest{ID: "c1", Name: "strict", Arguments: map[string]any{}})
	if out.OK {
		t.Fatalf("expected failure outcome")
	}
	if out.Reason != errorsx.ReasonValidation {
		t.Fatalf("expected validation reason, got %s", out.Reason)
	}
	if invoked.Load() != 0 {
		t.Fatalf("handler must not run on validation failure, ran %d times", invoked.Load())
	}
}

func TestInvokeTimeout(t *testing.T) {
	spec := fnreg.FunctionSpec{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	iv := New(newTestRegistry(t, spec), WithTimeout(30*time.Millisecond))

	out := iv.Invoke(context.Background(), gateway.CallRequest{ID: "c1", Name: "slow"})
	if out.OK {
		t.Fatalf("expected failure outcome")
	}
	if !strings.Contains(out.Err, "timed out") {
		t.Fatalf("error should mention timeout: %q", out.Err)
	}
	if out.Reason != errorsx.ReasonHandlerTimeout {
		t.Fatalf("expected handler_timeout reason, got %s", out.Reason)
	}
}

func TestInvokeContainsPanic(t *testing.T) {
	spec := fnreg.FunctionSpec{
		Name: "boom",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("kaboom")
		},
	}
	iv := New(newTestRegistry(t, spec))

	out := iv.Invoke(context.Background(), gateway.CallRequest{ID: "c1", Name: "boom"})
	if out.OK {
		t.Fatalf("expected failure outcome")
	}
	if !strings.Contains(out.Err, "kaboom") {
		t.Fatalf("error should carry the panic value: %q", out.Err)
	}
}

func TestInvokeRejectsUnserializableResult(t *testing.T) {
	spec := fnreg.FunctionSpec{
		Name: "weird",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return make(chan int), nil
		},
	}
	iv := New(newTestRegistry(t, spec))

	out := iv.Invoke(context.Background(), gateway.CallRequest{ID: "c1", Name: "weird"})
	if out.OK {
		t.Fatalf("expected failure outcome for unserializable result")
	}
	if out.Reason != errorsx.ReasonBadResult {
		t.Fatalf("expected bad_result reason, got %s", out.Reason)
	}
}

func TestInvokeSuccessCapturesValue(t *testing.T) {
	spec := fnreg.FunctionSpec{
		Name:   "locate",
		Params: map[string]fnreg.ParamSpec{"ip": {Type: "string"}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"city": "Reno", "country": "US"}, nil
		},
	}
	iv := New(newTestRegistry(t, spec))

	out := iv.Invoke(context.Background(), gateway.CallRequest{ID: "c9", Name: "locate", Arguments: map[string]any{}})
	if !out.OK {
		t.Fatalf("expected success, got %q", out.Err)
	}
	value, ok := out.Value.(map[string]any)
	if !ok || value["city"] != "Reno" {
		t.Fatalf("value not captured verbatim: %+v", out.Value)
	}
}
