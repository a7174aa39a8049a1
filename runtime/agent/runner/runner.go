// Package runner executes a single agent run: it sends the agent prompt to a
// model client, executes requested tool calls up to the agent's tool-call
// budget and returns the final model text.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fashnai/fashnai/runtime/agent/model"
	"github.com/fashnai/fashnai/runtime/agent/telemetry"
	"github.com/fashnai/fashnai/runtime/agent/tools"
)

type (
	// Agent describes a configured model agent.
	Agent struct {
		// Name identifies the agent in logs and spans.
		Name string
		// Description is the first paragraph of the system prompt.
		Description string
		// Instructions are rendered as a bullet list in the system prompt.
		Instructions []string
		// OutputSchema is the JSON Schema the final answer must satisfy. It is
		// embedded verbatim in the system prompt.
		OutputSchema string
		// Tools are the tools the model may call.
		Tools *tools.Set
		// ToolCallLimit caps the number of tool calls executed per run.
		ToolCallLimit int
		// Model overrides the client default model identifier.
		Model string
		// MaxTokens caps completion tokens per model call.
		MaxTokens int
		// Temperature is the sampling temperature.
		Temperature float32
	}

	// Task is the per-run input.
	Task struct {
		// Prompt is the user message text.
		Prompt string
		// Images are attached to the user message.
		Images []model.ImagePart
		// ExcludeTools removes tools from the agent tool set for this run.
		ExcludeTools []tools.Ident
	}

	// Result is the outcome of a completed run.
	Result struct {
		// Text is the final model output.
		Text string
		// ToolCalls is the number of tool calls executed.
		ToolCalls int
		// Usage aggregates token usage over all model calls.
		Usage model.TokenUsage
	}

	// Runner executes runs of a single agent.
	Runner struct {
		agent  Agent
		client model.Client
		tel    telemetry.Set
		now    func() time.Time
	}

	// Option configures a Runner.
	Option func(*Runner)
)

// ErrEmptyOutput is returned when the model ends a run without any text.
var ErrEmptyOutput = errors.New("runner: model returned no output")

// WithTelemetry sets the logger, metrics and tracer used by the runner.
func WithTelemetry(s telemetry.Set) Option {
	return func(r *Runner) { r.tel = s }
}

// WithClock overrides the clock used for the date line of the system prompt.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New returns a Runner for agent using client.
func New(client model.Client, agent Agent, opts ...Option) *Runner {
	r := &Runner{agent: agent, client: client, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	r.tel = r.tel.WithDefaults()
	return r
}

// Agent returns the agent definition.
func (r *Runner) Agent() Agent { return r.agent }

// Run executes one run of the agent for the given session. Tool calls are
// executed sequentially until the model answers without calling tools. Once
// the tool-call budget is spent the model is called one last time with tool
// use disabled so it must answer from what it gathered.
func (r *Runner) Run(ctx context.Context, sessionID string, task Task) (Result, error) {
	ctx, span := r.tel.Tracer.Start(ctx, "runner."+r.agent.Name)
	defer span.End()

	toolset := r.agent.Tools
	if len(task.ExcludeTools) > 0 {
		toolset = toolset.Without(task.ExcludeTools...)
	}
	defs := definitions(toolset)

	msgs := []*model.Message{userMessage(task)}
	remaining := r.agent.ToolCallLimit
	var res Result
	for {
		req := model.Request{
			Model:       r.agent.Model,
			System:      r.systemPrompt(),
			Messages:    msgs,
			Tools:       defs,
			Temperature: r.agent.Temperature,
			MaxTokens:   r.agent.MaxTokens,
		}
		final := remaining <= 0 || len(defs) == 0
		if final && len(defs) > 0 {
			req.ToolChoice = &model.ToolChoice{Mode: model.ToolChoiceModeNone}
		}
		resp, err := r.client.Complete(ctx, req)
		if err != nil {
			span.RecordError(err)
			return res, fmt.Errorf("%s: %w", r.agent.Name, err)
		}
		res.Usage = addUsage(res.Usage, resp.Usage)
		text := resp.Text()

		// Tool calls requested after the budget is spent are never executed;
		// not every provider can forbid them.
		if len(resp.ToolCalls) == 0 || final {
			if strings.TrimSpace(text) == "" {
				return res, ErrEmptyOutput
			}
			res.Text = text
			return res, nil
		}

		msgs = append(msgs, assistantMessage(text, resp.ToolCalls))
		allowed := resp.ToolCalls
		if remaining < len(allowed) {
			allowed = allowed[:remaining]
		}
		results := make([]model.Part, 0, len(resp.ToolCalls))
		for _, call := range allowed {
			results = append(results, r.execute(ctx, sessionID, toolset, call))
		}
		for _, call := range resp.ToolCalls[len(allowed):] {
			results = append(results, model.ToolResultPart{
				ToolUseID: call.ID,
				Content:   "tool call limit reached; answer with the information gathered so far",
				IsError:   true,
			})
		}
		msgs = append(msgs, &model.Message{Role: model.ConversationRoleUser, Parts: results})
		remaining = decrementCap(remaining, len(allowed))
		res.ToolCalls += len(allowed)
	}
}

func (r *Runner) execute(ctx context.Context, sessionID string, toolset *tools.Set, call model.ToolCall) model.Part {
	t, ok := toolset.Lookup(call.Name.String())
	if !ok {
		return model.ToolResultPart{ToolUseID: call.ID, Content: fmt.Sprintf("unknown tool %q", call.Name), IsError: true}
	}
	out, err := t.Call(ctx, call.Payload)
	if err != nil {
		r.tel.Logger.Warn(ctx, "tool call failed", "agent", r.agent.Name, "session_id", sessionID, "tool", call.Name.String(), "err", err)
		return model.ToolResultPart{ToolUseID: call.ID, Content: err.Error(), IsError: true}
	}
	r.tel.Logger.Debug(ctx, "tool call", "agent", r.agent.Name, "session_id", sessionID, "tool", call.Name.String(), "bytes", len(out))
	return model.ToolResultPart{ToolUseID: call.ID, Content: out}
}

func (r *Runner) systemPrompt() string {
	var b strings.Builder
	b.WriteString(r.agent.Description)
	if len(r.agent.Instructions) > 0 {
		b.WriteString("\n\nInstructions:\n")
		for _, in := range r.agent.Instructions {
			b.WriteString("- ")
			b.WriteString(in)
			b.WriteString("\n")
		}
	}
	if r.agent.OutputSchema != "" {
		b.WriteString("\nRespond ONLY with a single JSON object, without commentary, that validates against this JSON Schema:\n")
		b.WriteString(r.agent.OutputSchema)
		b.WriteString("\n")
	}
	b.WriteString("\nCurrent date and time: ")
	b.WriteString(r.now().Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

func definitions(s *tools.Set) []*model.ToolDefinition {
	ts := s.Tools()
	if len(ts) == 0 {
		return nil
	}
	defs := make([]*model.ToolDefinition, 0, len(ts))
	for _, t := range ts {
		defs = append(defs, &model.ToolDefinition{
			Name:        t.Name().ProviderName(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

func userMessage(task Task) *model.Message {
	parts := make([]model.Part, 0, 1+len(task.Images))
	parts = append(parts, model.TextPart{Text: task.Prompt})
	for _, img := range task.Images {
		parts = append(parts, img)
	}
	return &model.Message{Role: model.ConversationRoleUser, Parts: parts}
}

func assistantMessage(text string, calls []model.ToolCall) *model.Message {
	parts := make([]model.Part, 0, 1+len(calls))
	if strings.TrimSpace(text) != "" {
		parts = append(parts, model.TextPart{Text: text})
	}
	for _, c := range calls {
		parts = append(parts, model.ToolUsePart{ID: c.ID, Name: c.Name.String(), Input: c.Payload})
	}
	return &model.Message{Role: model.ConversationRoleAssistant, Parts: parts}
}

func addUsage(a, b model.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:  a.InputTokens + b.InputTokens,
		OutputTokens: a.OutputTokens + b.OutputTokens,
		TotalTokens:  a.TotalTokens + b.TotalTokens,
	}
}

func decrementCap(remaining, n int) int {
	if remaining <= n {
		return 0
	}
	return remaining - n
}
