// Package anthropic provides an in-process agent endpoint backed by the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/endpoint"
)

// Options configure the Anthropic endpoint adapter (model id, temperature,
// max tokens, API key, system prompt).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// Instructions is the system prompt prepended to every invocation.
	Instructions string
}

// Endpoint wraps the Anthropic Messages API behind the endpoint.Client
// interface.
type Endpoint struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic endpoint using the official client.
func New(optFns ...func(o *Options)) *Endpoint {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Endpoint{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic endpoint from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Endpoint {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Endpoint{client: client, opts: opts}
}

// Invoke implements endpoint.Client. API failures are classified as
// transport errors so the dispatcher's retry policy applies.
func (e *Endpoint) Invoke(ctx context.Context, desc core.AgentDescriptor, req endpoint.Request) (endpoint.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       e.opts.Model,
		Messages:    e.buildMessages(req),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: anthropic.Float(e.opts.Temperature),
	}
	if e.opts.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: e.opts.Instructions}}
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return endpoint.Response{}, core.WrapError(core.CodeTransport, err,
			fmt.Sprintf("anthropic call for agent %q failed", desc.AgentID))
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	if text == "" {
		return endpoint.Response{}, core.NewErrorf(core.CodeAgentSemantic,
			"anthropic returned no text for agent %q", desc.AgentID)
	}

	return endpoint.TextResponse(text), nil
}

// buildMessages converts the protocol request into Anthropic messages.
// History arrives most-recent-first and is replayed oldest-first.
func (e *Endpoint) buildMessages(req endpoint.Request) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for i := len(req.History) - 1; i >= 0; i-- {
		entry := req.History[i]
		text, _ := entry.Payload["text"].(string)
		if text == "" {
			continue
		}
		block := anthropic.NewTextBlock(text)
		if entry.Sender == core.SenderAgent {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text)))
	return messages
}
