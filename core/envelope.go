package core

// ContentType identifies the canonical shape of an envelope payload. The set
// is fixed but extensible: downstream code must treat unrecognized values as
// opaque rather than failing.
type ContentType string

const (
	// ContentTypeText is a plain text reply: payload {"text": string}.
	ContentTypeText ContentType = "text"
	// ContentTypeStructuredData is an arbitrary JSON-object reply.
	ContentTypeStructuredData ContentType = "structured_data"
	// ContentTypeImage is an image reference or inline image:
	// payload {"uri": string} or {"data": base64, "mime_type": string}.
	ContentTypeImage ContentType = "image"
	// ContentTypeError is a failure reply: payload {"code", "message"}.
	ContentTypeError ContentType = "error"
)

// Envelope is the canonical response contract returned to every caller
// regardless of which agent produced the reply. After construction it should
// be treated as immutable.
type Envelope struct {
	ContentType ContentType    `json:"content_type"`
	Payload     map[string]any `json:"payload"`
}

// TextEnvelope wraps plain text in a canonical envelope.
func TextEnvelope(text string) Envelope {
	return Envelope{ContentType: ContentTypeText, Payload: map[string]any{"text": text}}
}

// DataEnvelope wraps a structured payload in a canonical envelope. The map is
// used as-is; callers must not mutate it afterwards.
func DataEnvelope(data map[string]any) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return Envelope{ContentType: ContentTypeStructuredData, Payload: data}
}

// ImageEnvelope wraps an externally retrievable image in a canonical envelope.
func ImageEnvelope(uri, mimeType string) Envelope {
	payload := map[string]any{"uri": uri}
	if mimeType != "" {
		payload["mime_type"] = mimeType
	}
	return Envelope{ContentType: ContentTypeImage, Payload: payload}
}

// ErrorEnvelope builds the user-visible failure envelope carrying a stable
// error code. Callers never see a raw error surface or a partial envelope.
func ErrorEnvelope(code Code, message string) Envelope {
	return Envelope{
		ContentType: ContentTypeError,
		Payload:     map[string]any{"code": string(code), "message": message},
	}
}

// ErrorEnvelopeFrom maps any error to its canonical failure envelope using
// the taxonomy code resolved by CodeOf.
func ErrorEnvelopeFrom(err error) Envelope {
	if err == nil {
		return ErrorEnvelope(CodeUnknown, "unknown error")
	}
	code := CodeOf(err)
	if e, ok := AsError(err); ok {
		return ErrorEnvelope(code, e.Message())
	}
	return ErrorEnvelope(code, err.Error())
}

// Text returns the plain text payload and true when the envelope is a text
// reply with a string payload.
func (e Envelope) Text() (string, bool) {
	if e.ContentType != ContentTypeText {
		return "", false
	}
	s, ok := e.Payload["text"].(string)
	return s, ok
}

// IsError reports whether the envelope carries a failure payload.
func (e Envelope) IsError() bool { return e.ContentType == ContentTypeError }

// ErrorCode returns the stable error code of a failure envelope, or the
// empty string for non-error envelopes.
func (e Envelope) ErrorCode() string {
	if !e.IsError() {
		return ""
	}
	s, _ := e.Payload["code"].(string)
	return s
}
