package fnreg

import (
	"context"
	"errors"
	"testing"
)

func echoSpec(name string) FunctionSpec {
	return FunctionSpec{
		Name: name,
		Params: map[string]ParamSpec{
			"text": {Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args["text"], nil
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo")); err != nil {
		t.Fatalf("register error: %v", err)
	}

	spec, err := r.Lookup("echo")
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if spec.Name != "echo" || spec.Params["text"].Type != "string" {
		t.Fatalf("lookup returned a different spec: %+v", spec)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo")); err != nil {
		t.Fatalf("register error: %v", err)
	}
	err := r.Register(echoSpec("echo"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope")
	if !errors.Is(err, ErrUnknownFunction) {
		t.Fatalf("expected ErrUnknownFunction, got %v", err)
	}
}

func TestFreezeRejectsRegistration(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo")); err != nil {
		t.Fatalf("register error: %v", err)
	}
	r.Freeze()
	if err := r.Register(echoSpec("late")); !errors.Is(err, ErrFrozen) {
		t.Fatalf("expected ErrFrozen, got %v", err)
	}
	if _, err := r.Lookup("echo"); err != nil {
		t.Fatalf("lookup after freeze failed: %v", err)
	}
}

func TestCatalogKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(echoSpec(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	catalog := r.Catalog()
	if len(catalog) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(catalog))
	}
	for i, want := range []string{"c", "a", "b"} {
		if catalog[i].Name != want {
			t.Fatalf("catalog[%d] = %s, want %s", i, catalog[i].Name, want)
		}
	}
}
