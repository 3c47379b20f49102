// Package ollama adapts a local Ollama backend to the gateway interface
// via langchaingo.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/fnreg"
	"github.com/robit-man/gemma3-evaluation-app/pkg/gateway"
)

type Config struct {
	Model        string  `mapstructure:"model"`
	ServerURL    string  `mapstructure:"server_url"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
}

type Adapter struct {
	llm *ollama.LLM
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) (*Adapter, error) {
	if cfg.Model == "" {
		cfg.Model = "gemma3:12b"
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{llm: llm, cfg: cfg, log: log}, nil
}

func (a *Adapter) Name() string { return "ollama" }

func (a *Adapter) Send(ctx context.Context, snapshot []convo.Turn, catalog []fnreg.FunctionSpec) (gateway.ModelResponse, error) {
	messages := toMessages(snapshot, a.cfg.SystemPrompt)

	opts := []llms.CallOption{}
	if len(catalog) > 0 {
		opts = append(opts, llms.WithTools(mapTools(catalog)))
	}
	if a.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(a.cfg.Temperature))
	}
	if a.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(a.cfg.MaxTokens))
	}

	resp, err := a.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return gateway.ModelResponse{}, &gateway.GatewayError{
			Message:   err.Error(),
			Retryable: isTransient(err),
			Err:       err,
		}
	}
	if len(resp.Choices) == 0 {
		return gateway.ModelResponse{}, &gateway.GatewayError{Message: "backend returned no choices"}
	}

	choice := resp.Choices[0]
	out := gateway.ModelResponse{FinalText: stripThink(choice.Content)}
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.FunctionCall.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				a.log.Warn("tool call arguments are not valid JSON",
					"function", tc.FunctionCall.Name, "err", err)
			}
		}
		id := tc.ID
		if id == "" {
			// Ollama does not assign call ids; mint one so call/result
			// matching stays total.
			id = uuid.NewString()
		}
		out.Calls = append(out.Calls, gateway.CallRequest{
			ID:        id,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		})
	}
	return out, nil
}

func toMessages(snapshot []convo.Turn, systemPrompt string) []llms.MessageContent {
	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, t := range snapshot {
		switch t.Kind {
		case convo.KindUser:
			msg := llms.MessageContent{Role: llms.ChatMessageTypeHuman}
			msg.Parts = append(msg.Parts, llms.TextContent{Text: t.Text})
			if t.Image != nil {
				msg.Parts = append(msg.Parts, llms.BinaryContent{MIMEType: t.Image.MIME, Data: t.Image.Data})
			}
			messages = append(messages, msg)
		case convo.KindAssistantText:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, t.Text))
		case convo.KindAssistantCall:
			args, _ := json.Marshal(t.Arguments)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeAI,
				Parts: []llms.ContentPart{llms.ToolCall{
					ID:   t.CallID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      t.Function,
						Arguments: string(args),
					},
				}},
			})
		case convo.KindFunctionResult:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: t.CallID,
					Name:       t.Function,
					Content:    resultContent(t),
				}},
			})
		}
	}
	return messages
}

func resultContent(t convo.Turn) string {
	if !t.OK {
		raw, _ := json.Marshal(map[string]string{"error": t.Error})
		return string(raw)
	}
	raw, err := json.Marshal(t.Result)
	if err != nil {
		return `{"error":"unserializable result"}`
	}
	return string(raw)
}

func mapTools(catalog []fnreg.FunctionSpec) []llms.Tool {
	out := make([]llms.Tool, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.JSONSchema(),
			},
		})
	}
	return out
}

// stripThink removes a leading <think>...</think> block that reasoning
// models emit before the answer.
func stripThink(text string) string {
	start := strings.Index(text, "<think>")
	end := strings.Index(text, "</think>")
	if start == -1 || end == -1 || end < start {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:start] + text[end+len("</think>"):])
}

func isTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}
