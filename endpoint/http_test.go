package endpoint

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentmesh/intentmesh/core"
)

var _ Client = (*HTTPClient)(nil)

func TestHTTPClientInvoke(t *testing.T) {
	var received Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(Response{
			ContentType: "structured_data",
			Payload:     json.RawMessage(`{"total": 42}`),
		})
	}))
	defer srv.Close()

	client := NewHTTPClient()
	desc := core.AgentDescriptor{AgentID: "reporting_agent", Endpoint: srv.URL}
	resp, err := client.Invoke(context.Background(), desc, Request{
		Text:  "show me last month's report",
		Tools: []core.ToolInfo{{Name: "report_lookup"}},
		History: []HistoryEntry{
			{Sender: core.SenderUser, ContentType: core.ContentTypeText, Payload: map[string]any{"text": "hi"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "structured_data", resp.ContentType)
	assert.JSONEq(t, `{"total": 42}`, string(resp.Payload))
	assert.Equal(t, "show me last month's report", received.Text)
	require.Len(t, received.Tools, 1)
	require.Len(t, received.History, 1)
}

func TestHTTPClientClassifiesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient()
	_, err := client.Invoke(context.Background(), core.AgentDescriptor{AgentID: "a", Endpoint: srv.URL}, Request{Text: "x"})
	assert.True(t, core.IsCode(err, core.CodeTransport))
	assert.True(t, core.Retryable(err))
}

func TestHTTPClientClassifiesRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed request", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewHTTPClient()
	_, err := client.Invoke(context.Background(), core.AgentDescriptor{AgentID: "a", Endpoint: srv.URL}, Request{Text: "x"})
	assert.True(t, core.IsCode(err, core.CodeAgentSemantic))
	assert.False(t, core.Retryable(err))
}

func TestHTTPClientClassifiesUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewHTTPClient()
	_, err := client.Invoke(context.Background(), core.AgentDescriptor{AgentID: "a", Endpoint: srv.URL}, Request{Text: "x"})
	assert.True(t, core.IsCode(err, core.CodeNormalization))
	assert.False(t, core.Retryable(err))
}

func TestHTTPClientClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewHTTPClient()
	_, err := client.Invoke(ctx, core.AgentDescriptor{AgentID: "a", Endpoint: srv.URL}, Request{Text: "x"})
	assert.True(t, core.IsCode(err, core.CodeTransport))
}

func TestHTTPClientClassifiesCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only watches for client disconnects once the request
		// body has been consumed, so drain it or r.Context() never fires.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewHTTPClient()
	_, err := client.Invoke(ctx, core.AgentDescriptor{AgentID: "a", Endpoint: srv.URL}, Request{Text: "x"})
	assert.True(t, core.IsCode(err, core.CodeCancelled))
	assert.False(t, core.Retryable(err))
}

func TestHTTPClientClassifiesConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewHTTPClient()
	_, err := client.Invoke(context.Background(), core.AgentDescriptor{AgentID: "a", Endpoint: srv.URL}, Request{Text: "x"})
	assert.True(t, core.IsCode(err, core.CodeTransport))
}

func TestHistoryFromMessages(t *testing.T) {
	msgs := []core.Message{
		core.NewAgentMessage("c", core.TextEnvelope("reply"), "tok"),
		core.NewUserMessage("c", "ask", "tok"),
	}
	entries := HistoryFromMessages(msgs)
	require.Len(t, entries, 2)
	assert.Equal(t, core.SenderAgent, entries[0].Sender)
	assert.Equal(t, core.SenderUser, entries[1].Sender)
	assert.Nil(t, HistoryFromMessages(nil))
}
