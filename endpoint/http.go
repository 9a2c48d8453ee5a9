package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/intentmesh/intentmesh/core"
)

// HTTPClient speaks the agent protocol over HTTP: POST of the JSON request
// to the descriptor endpoint, JSON response body on 200.
//
// Failure classification:
//   - context deadline / network errors / 5xx  -> CodeTransport (retriable)
//   - context cancellation                     -> CodeCancelled
//   - 4xx                                      -> CodeAgentSemantic
//   - undecodable 200 body                     -> CodeNormalization
type HTTPClient struct {
	client *http.Client
}

// HTTPOptions configure an HTTPClient.
type HTTPOptions struct {
	// Client overrides the underlying http.Client. Per-request deadlines
	// come from the caller's context, not a client-level timeout.
	Client *http.Client
}

// NewHTTPClient creates the default protocol client.
func NewHTTPClient(optFns ...func(o *HTTPOptions)) *HTTPClient {
	opts := HTTPOptions{Client: &http.Client{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &HTTPClient{client: opts.Client}
}

// Invoke implements Client.
func (c *HTTPClient) Invoke(ctx context.Context, desc core.AgentDescriptor, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, core.WrapError(core.CodeInvalidArgument, err, "encode agent request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, core.WrapError(core.CodeInvalidArgument, err, "build agent request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, classifyTransportError(ctx, desc.AgentID, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode >= 500:
		return Response{}, core.NewErrorf(core.CodeTransport,
			"agent %q returned status %d", desc.AgentID, httpResp.StatusCode)
	case httpResp.StatusCode >= 400:
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return Response{}, core.NewErrorf(core.CodeAgentSemantic,
			"agent %q rejected the request: status %d: %s", desc.AgentID, httpResp.StatusCode, detail)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, core.WrapError(core.CodeNormalization, err,
			fmt.Sprintf("agent %q returned an undecodable response", desc.AgentID))
	}
	return resp, nil
}

func classifyTransportError(ctx context.Context, agentID string, err error) error {
	if stdErrors.Is(err, context.Canceled) || stdErrors.Is(ctx.Err(), context.Canceled) {
		return core.WrapError(core.CodeCancelled, err, fmt.Sprintf("call to agent %q cancelled", agentID))
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return core.WrapError(core.CodeTransport, err, fmt.Sprintf("agent %q timed out", agentID))
	}
	var netErr net.Error
	if stdErrors.As(err, &netErr) && netErr.Timeout() {
		return core.WrapError(core.CodeTransport, err, fmt.Sprintf("agent %q timed out", agentID))
	}
	// Connection resets, refused connections and DNS failures are transient.
	return core.WrapError(core.CodeTransport, err, fmt.Sprintf("transport failure calling agent %q", agentID))
}
