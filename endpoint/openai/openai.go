// Package openai provides an in-process agent endpoint backed by the OpenAI
// Chat Completions API, letting a deployment serve an agent identity without
// running a separate agent process. It adapts the orchestrator's endpoint
// protocol into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/endpoint"
)

// Options configure the OpenAI endpoint adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	// Instructions is the system prompt prepended to every invocation.
	Instructions string
}

// Endpoint wraps the OpenAI Chat Completions API behind the endpoint.Client
// interface.
type Endpoint struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI endpoint using the official client.
func New(optFns ...func(o *Options)) *Endpoint {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI endpoint from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Endpoint {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Endpoint{client: client, opts: opts}
}

// Invoke implements endpoint.Client. API failures are classified as
// transport errors so the dispatcher's retry policy applies.
func (e *Endpoint) Invoke(ctx context.Context, desc core.AgentDescriptor, req endpoint.Request) (endpoint.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            e.buildMessages(req),
		Model:               e.opts.Model,
		Temperature:         openai.Float(e.opts.Temperature),
		MaxCompletionTokens: openai.Int(e.opts.MaxCompletionTokens),
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return endpoint.Response{}, core.WrapError(core.CodeTransport, err,
			fmt.Sprintf("openai call for agent %q failed", desc.AgentID))
	}
	if len(resp.Choices) == 0 {
		return endpoint.Response{}, core.NewErrorf(core.CodeAgentSemantic,
			"openai returned no choices for agent %q", desc.AgentID)
	}

	return endpoint.TextResponse(resp.Choices[0].Message.Content), nil
}

// buildMessages converts the protocol request into OpenAI chat messages.
// History arrives most-recent-first and is replayed oldest-first.
func (e *Endpoint) buildMessages(req endpoint.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if e.opts.Instructions != "" {
		messages = append(messages, openai.SystemMessage(e.opts.Instructions))
	}
	for i := len(req.History) - 1; i >= 0; i-- {
		entry := req.History[i]
		text, _ := entry.Payload["text"].(string)
		if text == "" {
			continue
		}
		if entry.Sender == core.SenderAgent {
			messages = append(messages, openai.AssistantMessage(text))
		} else {
			messages = append(messages, openai.UserMessage(text))
		}
	}
	messages = append(messages, openai.UserMessage(req.Text))
	return messages
}
