// Package normalize converts native agent responses into canonical envelopes.
// Every reply that reaches a caller passes through here, so the package owns
// the guarantee that callers only ever see well-formed envelopes of the
// canonical content types.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/logging"
)

// Normalizer maps a native endpoint response to a canonical envelope while
// enforcing the producing agent's declared content-type capabilities.
type Normalizer struct {
	logger logging.Logger
}

// Options configure a Normalizer.
type Options struct {
	Logger logging.Logger
}

// New creates a Normalizer.
func New(optFns ...func(o *Options)) *Normalizer {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Normalizer{logger: opts.Logger}
}

// Normalize converts resp into a canonical envelope. It fails with
// CodeNormalization when the payload cannot be decoded, when the native shape
// maps to no canonical type, or when the resulting content type is outside
// the descriptor's accepted set. A failed normalization never yields a
// partial success envelope.
func (n *Normalizer) Normalize(desc core.AgentDescriptor, resp Response) (core.Envelope, error) {
	env, err := n.toEnvelope(desc.AgentID, resp)
	if err != nil {
		return core.Envelope{}, err
	}

	// Error envelopes are always deliverable; capability checks apply to
	// success shapes only.
	if !env.IsError() && !desc.Accepts(env.ContentType) {
		n.logger.Warn("agent produced undeclared content type",
			"agent_id", desc.AgentID, "content_type", env.ContentType)
		return core.Envelope{}, core.NewErrorf(core.CodeNormalization,
			"agent %q produced content type %q outside its declared set",
			desc.AgentID, env.ContentType)
	}
	return env, nil
}

// Response mirrors the native endpoint response shape. Declared here to keep
// the package free of a dependency on the endpoint package; the dispatcher
// adapts between the two.
type Response struct {
	ContentType string
	Payload     json.RawMessage
}

func (n *Normalizer) toEnvelope(agentID string, resp Response) (core.Envelope, error) {
	switch core.ContentType(resp.ContentType) {
	case core.ContentTypeText:
		return n.textEnvelope(agentID, resp.Payload)
	case core.ContentTypeStructuredData:
		return n.dataEnvelope(agentID, resp.Payload)
	case core.ContentTypeImage:
		return n.imageEnvelope(agentID, resp.Payload)
	case core.ContentTypeError:
		return n.errorEnvelope(agentID, resp.Payload)
	default:
		return core.Envelope{}, core.NewErrorf(core.CodeNormalization,
			"agent %q returned unrecognized native content type %q", agentID, resp.ContentType)
	}
}

func (n *Normalizer) textEnvelope(agentID string, payload json.RawMessage) (core.Envelope, error) {
	var body struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return core.Envelope{}, decodeFailure(agentID, "text", err)
	}
	if body.Text == nil {
		return core.Envelope{}, core.NewErrorf(core.CodeNormalization,
			"agent %q text payload is missing the text field", agentID)
	}
	return core.TextEnvelope(*body.Text), nil
}

func (n *Normalizer) dataEnvelope(agentID string, payload json.RawMessage) (core.Envelope, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return core.Envelope{}, decodeFailure(agentID, "structured_data", err)
	}
	if body == nil {
		return core.Envelope{}, core.NewErrorf(core.CodeNormalization,
			"agent %q structured payload is not a JSON object", agentID)
	}
	return core.DataEnvelope(body), nil
}

func (n *Normalizer) imageEnvelope(agentID string, payload json.RawMessage) (core.Envelope, error) {
	var body struct {
		URI      string `json:"uri"`
		Data     string `json:"data"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return core.Envelope{}, decodeFailure(agentID, "image", err)
	}
	switch {
	case body.URI != "":
		return core.ImageEnvelope(body.URI, body.MimeType), nil
	case body.Data != "":
		p := map[string]any{"data": body.Data}
		if body.MimeType != "" {
			p["mime_type"] = body.MimeType
		}
		return core.Envelope{ContentType: core.ContentTypeImage, Payload: p}, nil
	default:
		return core.Envelope{}, core.NewErrorf(core.CodeNormalization,
			"agent %q image payload carries neither uri nor data", agentID)
	}
}

func (n *Normalizer) errorEnvelope(agentID string, payload json.RawMessage) (core.Envelope, error) {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return core.Envelope{}, decodeFailure(agentID, "error", err)
	}
	if body.Message == "" {
		return core.Envelope{}, core.NewErrorf(core.CodeNormalization,
			"agent %q error payload is missing the message field", agentID)
	}
	code := core.Code(body.Code)
	if body.Code == "" {
		code = core.CodeAgentSemantic
	}
	return core.ErrorEnvelope(code, body.Message), nil
}

func decodeFailure(agentID, contentType string, err error) error {
	return core.WrapError(core.CodeNormalization, err,
		fmt.Sprintf("agent %q returned an undecodable %s payload", agentID, contentType))
}
