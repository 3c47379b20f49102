package gateway

import (
	"fmt"
	"strings"
)

// Factory builds a gateway from free-form vendor settings.
type Factory func(settings map[string]any) (ModelGateway, error)

// ProviderRegistry maps provider names to gateway factories.
type ProviderRegistry struct {
	providers map[string]Factory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]Factory)}
}

func (r *ProviderRegistry) Register(name string, factory Factory) {
	r.providers[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) Build(provider string, settings map[string]any) (ModelGateway, error) {
	fn := r.providers[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("model provider not registered: %s", provider)
	}
	return fn(settings)
}
