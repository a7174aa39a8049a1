// Package model provides a provider-agnostic abstraction over chat completion
// APIs (Anthropic, OpenAI, Bedrock) so agent runners can invoke models without
// coupling to specific SDKs. Provider adapters under features/model translate
// these normalized types into provider-specific formats.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fashnai/fashnai/runtime/agent/tools"
)

type (
	// Client defines the contract runners use to invoke LLM calls. Implementations
	// wrap provider SDKs and must be safe for concurrent use.
	Client interface {
		// Complete sends a chat completion request to the model provider and
		// returns the generated response.
		Complete(ctx context.Context, req Request) (Response, error)
	}

	// ClientFunc adapts a function to the Client interface.
	ClientFunc func(ctx context.Context, req Request) (Response, error)

	// Request captures the normalized parameters for a model invocation.
	Request struct {
		// Model identifies the target model using the provider-specific
		// identifier. Empty uses the client default.
		Model string
		// System is the system prompt.
		System string
		// Messages is the ordered conversation.
		Messages []*Message
		// Tools describes the tools exposed to the model. Empty disables tool
		// calling for the request.
		Tools []*ToolDefinition
		// ToolChoice constrains how the model may use Tools. Nil leaves the
		// provider default (auto).
		ToolChoice *ToolChoice
		// Temperature controls sampling temperature.
		Temperature float32
		// MaxTokens caps the number of completion tokens. Zero uses the client
		// default.
		MaxTokens int
	}

	// Response wraps the generated content and any tool calls requested by the
	// model.
	Response struct {
		// Content contains the assistant messages returned by the model.
		Content []Message
		// ToolCalls lists the tool invocations requested by the model.
		ToolCalls []ToolCall
		// Usage reports token usage when available.
		Usage TokenUsage
		// StopReason explains why the model stopped generating.
		StopReason string
	}

	// ToolChoiceMode selects how the model may use the tools of a request.
	ToolChoiceMode string

	// ToolChoice constrains tool use for a single request. Tool definitions
	// stay attached so providers can still interpret tool_use and
	// tool_result blocks already present in the transcript.
	ToolChoice struct {
		Mode ToolChoiceMode
	}

	// ConversationRole identifies the author of a message.
	ConversationRole string

	// Message is a chat message made of ordered parts.
	Message struct {
		Role  ConversationRole
		Parts []Part
	}

	// Part is one content element of a message. Implementations are TextPart,
	// ImagePart, ToolUsePart and ToolResultPart.
	Part interface {
		isPart()
	}

	// TextPart is plain text content.
	TextPart struct {
		Text string
	}

	// ImageFormat is the encoding of an ImagePart.
	ImageFormat string

	// ImagePart is an inline image sent to vision capable models.
	ImagePart struct {
		Format ImageFormat
		Bytes  []byte
	}

	// ToolUsePart records a tool call emitted by the assistant so it can be
	// replayed in subsequent turns.
	ToolUsePart struct {
		ID    string
		Name  string
		Input json.RawMessage
	}

	// ToolResultPart carries the result of a tool call back to the model.
	ToolResultPart struct {
		ToolUseID string
		Content   string
		IsError   bool
	}

	// ToolDefinition describes a tool schema passed to model providers.
	ToolDefinition struct {
		// Name is the provider-safe tool name.
		Name string
		// Description documents the tool for prompting purposes.
		Description string
		// InputSchema is the JSON Schema object describing the arguments.
		InputSchema map[string]any
	}

	// ToolCall captures a tool invocation requested by the model.
	ToolCall struct {
		// ID is the provider identifier correlating the call with its result.
		ID string
		// Name is the provider tool name (matches ToolDefinition.Name).
		Name tools.Ident
		// Payload carries the JSON arguments produced by the model.
		Payload json.RawMessage
	}

	// TokenUsage tracks token counts reported by the provider.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}
)

const (
	// ConversationRoleUser identifies end-user messages and tool results.
	ConversationRoleUser ConversationRole = "user"
	// ConversationRoleAssistant identifies model messages.
	ConversationRoleAssistant ConversationRole = "assistant"
)

const (
	// ToolChoiceModeAuto lets the model decide whether to call tools.
	ToolChoiceModeAuto ToolChoiceMode = "auto"
	// ToolChoiceModeNone forbids new tool calls.
	ToolChoiceModeNone ToolChoiceMode = "none"
)

const (
	ImageFormatPNG  ImageFormat = "png"
	ImageFormatJPEG ImageFormat = "jpeg"
	ImageFormatGIF  ImageFormat = "gif"
	ImageFormatWEBP ImageFormat = "webp"
)

// ErrRateLimited is returned (possibly wrapped) by clients when the provider
// throttles the request.
var ErrRateLimited = errors.New("model: rate limited")

func (TextPart) isPart()       {}
func (ImagePart) isPart()      {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}

// Complete calls f(ctx, req).
func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// UserText returns a user message holding a single text part.
func UserText(text string) *Message {
	return &Message{Role: ConversationRoleUser, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Text concatenates the text of every assistant message in the response.
func (r Response) Text() string {
	var b strings.Builder
	for _, m := range r.Content {
		b.WriteString(m.Text())
	}
	return b.String()
}

// MimeType returns the IANA media type for the image format.
func (f ImageFormat) MimeType() string {
	switch f {
	case ImageFormatPNG:
		return "image/png"
	case ImageFormatGIF:
		return "image/gif"
	case ImageFormatWEBP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// ImageFormatFromMime maps a media type such as "image/png" to an
// ImageFormat. Unknown types map to JPEG.
func ImageFormatFromMime(mime string) ImageFormat {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ImageFormatPNG
	case "image/gif":
		return ImageFormatGIF
	case "image/webp":
		return ImageFormatWEBP
	default:
		return ImageFormatJPEG
	}
}
