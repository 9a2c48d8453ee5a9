package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgents(t *testing.T, path, endpoint string) {
	t.Helper()
	doc := "agents:\n  - agent_id: reporting_agent\n    endpoint: " + endpoint + "\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

func TestWatcherReloadsOnChange(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "agents.yaml")
	writeAgents(t, path, "http://first:8080/invoke")

	snap, err := LoadFile(path)
	require.NoError(t, err)
	dir := &Directory{}
	dir.Reload(snap)

	w, err := NewWatcher(path, dir, func(o *WatcherOptions) {
		o.Debounce = 20 * time.Millisecond
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	writeAgents(t, path, "http://second:8080/invoke")

	require.Eventually(t, func() bool {
		desc, err := dir.Resolve("reporting_agent")
		return err == nil && desc.Endpoint == "http://second:8080/invoke"
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWatcherKeepsSnapshotOnParseError(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "agents.yaml")
	writeAgents(t, path, "http://first:8080/invoke")

	snap, err := LoadFile(path)
	require.NoError(t, err)
	dir := &Directory{}
	dir.Reload(snap)

	w, err := NewWatcher(path, dir, func(o *WatcherOptions) {
		o.Debounce = 20 * time.Millisecond
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("agents: [broken"), 0o644))

	// The malformed document is rejected and the old snapshot survives.
	time.Sleep(200 * time.Millisecond)
	desc, err := dir.Resolve("reporting_agent")
	require.NoError(t, err)
	assert.Equal(t, "http://first:8080/invoke", desc.Endpoint)
}
