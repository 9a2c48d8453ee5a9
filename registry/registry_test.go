package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentmesh/intentmesh/core"
)

func TestTableLookup(t *testing.T) {
	table := NewTable("1", "conversation_agent",
		Entry{Intent: "billing", AgentID: "reporting_agent"},
		Entry{Intent: "chitchat", AgentID: "conversation_agent"},
	)

	agentID, err := table.Lookup("billing")
	require.NoError(t, err)
	assert.Equal(t, "reporting_agent", agentID)

	_, err = table.Lookup("weather")
	assert.True(t, core.IsCode(err, core.CodeUnknownIntent))

	assert.Equal(t, "conversation_agent", table.DefaultAgentID())
	assert.Equal(t, []string{"billing", "chitchat"}, table.Intents())
	assert.Equal(t, 2, table.Len())
}

func TestTableDuplicateKeepsOrder(t *testing.T) {
	table := NewTable("1", "",
		Entry{Intent: "billing", AgentID: "a"},
		Entry{Intent: "chitchat", AgentID: "b"},
		Entry{Intent: "billing", AgentID: "c"},
	)
	assert.Equal(t, []string{"billing", "chitchat"}, table.Intents())
	agentID, err := table.Lookup("billing")
	require.NoError(t, err)
	assert.Equal(t, "c", agentID)
}

func TestRegistryReloadIsAtomic(t *testing.T) {
	reg := New(NewTable("1", "old", Entry{Intent: "billing", AgentID: "old_agent"}))

	snap := reg.Snapshot()

	reg.Reload(NewTable("2", "new", Entry{Intent: "billing", AgentID: "new_agent"}))

	// A pinned snapshot keeps serving the old mapping.
	agentID, err := snap.Lookup("billing")
	require.NoError(t, err)
	assert.Equal(t, "old_agent", agentID)
	assert.Equal(t, "old", snap.DefaultAgentID())

	// Fresh reads observe the new mapping.
	agentID, err = reg.Lookup("billing")
	require.NoError(t, err)
	assert.Equal(t, "new_agent", agentID)
	assert.Equal(t, "new", reg.DefaultAgentID())
}

func TestRegistryConcurrentReadersAndReloads(t *testing.T) {
	reg := New(NewTable("1", "d", Entry{Intent: "billing", AgentID: "a"}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				agentID, err := reg.Lookup("billing")
				require.NoError(t, err)
				// Readers must always see a complete table.
				assert.NotEmpty(t, agentID)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				reg.Reload(NewTable("n", "d", Entry{Intent: "billing", AgentID: "b"}))
			}
		}()
	}
	wg.Wait()
}

func TestRegistryNilTable(t *testing.T) {
	reg := New(nil)
	_, err := reg.Lookup("anything")
	assert.True(t, core.IsCode(err, core.CodeUnknownIntent))
	assert.Empty(t, reg.DefaultAgentID())

	reg.Reload(nil) // ignored
	assert.NotNil(t, reg.Snapshot())
}

func TestParseConfig(t *testing.T) {
	table, err := ParseConfig([]byte(`
version: "3"
default_agent: conversation_agent
intents:
  billing: reporting_agent
  chitchat: conversation_agent
`))
	require.NoError(t, err)

	assert.Equal(t, "3", table.Version())
	assert.Equal(t, "conversation_agent", table.DefaultAgentID())
	// Document order becomes registration order.
	assert.Equal(t, []string{"billing", "chitchat"}, table.Intents())

	agentID, err := table.Lookup("billing")
	require.NoError(t, err)
	assert.Equal(t, "reporting_agent", agentID)
}

func TestParseConfigRejectsMalformed(t *testing.T) {
	_, err := ParseConfig([]byte("intents: [billing]"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("intents:\n  billing: \"\""))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("\t not yaml"))
	assert.Error(t, err)
}

func TestParseConfigEmptyDocument(t *testing.T) {
	table, err := ParseConfig([]byte("version: \"1\"\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}
