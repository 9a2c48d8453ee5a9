package intentmesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentmesh/intentmesh/classify"
	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/dispatch"
	"github.com/intentmesh/intentmesh/internal/testutil"
	"github.com/intentmesh/intentmesh/registry"
)

func newTestMesh(client *testutil.ScriptedClient) *Mesh {
	return New(func(o *Options) {
		o.Table = registry.NewTable("v1", "general_agent",
			registry.Entry{Intent: "check_balance", AgentID: "billing_agent"},
		)
		o.Agents = []core.AgentDescriptor{
			{AgentID: "billing_agent", Endpoint: "http://billing.internal/invoke"},
			{AgentID: "general_agent", Endpoint: "http://general.internal/invoke"},
		}
		o.Classifier = classify.NewKeyword(
			classify.Rule{Intent: "check_balance", Keywords: []string{"balance", "invoice"}},
		)
		o.Client = client
	})
}

func TestMeshSendRoutesByKeyword(t *testing.T) {
	client := testutil.NewScriptedClient(testutil.TextStep("you owe nothing"))
	mesh := newTestMesh(client)

	res, err := mesh.Send(context.Background(), dispatch.Request{
		UserID: "user-1",
		Text:   "what is my balance",
	})
	require.NoError(t, err)

	assert.Equal(t, "billing_agent", res.AgentID)
	text, ok := res.Envelope.Text()
	require.True(t, ok)
	assert.Equal(t, "you owe nothing", text)

	history, err := mesh.History(context.Background(), res.ConversationID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMeshHealthTracksDirectory(t *testing.T) {
	mesh := newTestMesh(testutil.NewScriptedClient())
	assert.True(t, mesh.Healthy())

	mesh.Directory().Reload(nil)
	assert.True(t, mesh.Healthy(), "nil reload keeps the previous snapshot")

	empty := New(func(o *Options) {
		o.Table = registry.NewTable("v1", "general_agent")
	})
	assert.False(t, empty.Healthy())
}

func TestMeshDefaultsAreUsable(t *testing.T) {
	mesh := New()

	// No intents, no agents, no default: dispatch fails cleanly with a
	// canonical error envelope and an untouched store.
	res, err := mesh.Send(context.Background(), dispatch.Request{UserID: "u", Text: "hello"})
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.CodeRoutingFailure))
	assert.True(t, res.Envelope.IsError())
}
