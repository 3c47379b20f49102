// Package app wires configuration, the model gateway, the function
// catalog and the HTTP front end into a runnable engine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/capture"
	"github.com/robit-man/gemma3-evaluation-app/pkg/configutil"
	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
	"github.com/robit-man/gemma3-evaluation-app/pkg/functions"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway"
	ollamagw "github.com/robit-man/gemma3-evaluation-app/pkg/gateway/ollama"
	"github.com/robit-man/gemma3-evaluation-app/pkg/invoke"
	"github.com/robit-man/gemma3-evaluation-app/pkg/logging"
	"github.com/robit-man/gemma3-evaluation-app/pkg/metrics"
	"github.com/robit-man/gemma3-evaluation-app/pkg/orchestrator"
	"github.com/robit-man/gemma3-evaluation-app/pkg/server"
	"github.com/robit-man/gemma3-evaluation-app/pkg/session"
)

// EngineOptions collects everything NewEngine needs beyond the config.
type EngineOptions struct {
	Config Config
	// Providers defaults to DefaultProviders().
	Providers *gateway.ProviderRegistry
	// ExtraFunctions are registered alongside the built-ins before the
	// registry freezes.
	ExtraFunctions []fnreg.FunctionSpec
	Observer       metrics.Observer
}

type Engine struct {
	cfg      Config
	log      *slog.Logger
	registry *fnreg.Registry
	sessions *session.Manager
	gw       gateway.ModelGateway
	frames   *capture.FrameStore
	srv      *server.Server
}

// DefaultProviders registers the gateway factories shipped with the app.
func DefaultProviders(log *slog.Logger) *gateway.ProviderRegistry {
	providers := gateway.NewProviderRegistry()
	providers.Register("ollama", func(settings map[string]any) (gateway.ModelGateway, error) {
		var cfg ollamagw.Config
		if err := configutil.DecodeSettings(settings, &cfg); err != nil {
			return nil, fmt.Errorf("decode ollama settings: %w", err)
		}
		return ollamagw.New(cfg, logging.NewComponentLogger(log, "gateway"))
	})
	return providers
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	log := logging.InitLogger(cfg.LogLevel)

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviders(log)
	}
	gw, err := providers.Build(cfg.Vendor.Provider, cfg.Vendor.Settings)
	if err != nil {
		return nil, err
	}
	gw = gateway.WithRetry(gw, gateway.RetryConfig{
		MaxAttempts: cfg.Gateway.RetryMaxAttempts,
		BaseDelay:   time.Duration(cfg.Gateway.RetryBackoffMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Gateway.RetryMaxDelayMS) * time.Millisecond,
	})

	registry := fnreg.NewRegistry()
	if err := functions.RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	for _, spec := range opts.ExtraFunctions {
		if err := registry.Register(spec); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	invoker := invoke.New(registry,
		invoke.WithTimeout(cfg.Tools.Timeout()),
		invoke.WithLogger(logging.NewComponentLogger(log, "invoker")),
	)
	sessions := session.NewManager(func(conv *convo.Conversation) *orchestrator.Orchestrator {
		return orchestrator.New(conv, gw, invoker, registry, orchestrator.Config{
			MaxRounds:       cfg.Orchestrator.MaxRounds,
			ToolConcurrency: cfg.Orchestrator.ToolConcurrency,
		},
			orchestrator.WithObserver(obs),
			orchestrator.WithLogger(logging.NewComponentLogger(log, "orchestrator")),
		)
	})

	frames, err := capture.NewFrameStore(cfg.Server.FramesDir, logging.NewComponentLogger(log, "capture"))
	if err != nil {
		return nil, err
	}

	srv := server.New(server.Options{
		Addr:     cfg.Server.Addr,
		Sessions: sessions,
		Frames:   frames,
		Log:      logging.NewComponentLogger(log, "server"),
	})

	log.Info("engine_init",
		"addr", cfg.Server.Addr,
		"provider", cfg.Vendor.Provider,
		"gateway", gw.Name(),
		"functions", registry.Len(),
	)

	return &Engine{
		cfg:      cfg,
		log:      log,
		registry: registry,
		sessions: sessions,
		gw:       gw,
		frames:   frames,
		srv:      srv,
	}, nil
}

// Run serves HTTP until the context is canceled.
func (e *Engine) Run(ctx context.Context) error {
	return e.srv.Run(ctx)
}

// Sessions exposes the session manager, mainly for embedding callers.
func (e *Engine) Sessions() *session.Manager { return e.sessions }
