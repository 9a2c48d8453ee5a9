package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, defaultAgent string) {
	t.Helper()
	doc := "version: \"1\"\ndefault_agent: " + defaultAgent + "\nintents:\n  billing: reporting_agent\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intents.yaml")
	writeConfig(t, path, "first_agent")

	table, err := LoadFile(path)
	require.NoError(t, err)
	reg := New(table)

	w, err := NewWatcher(path, reg, func(o *WatcherOptions) {
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

	writeConfig(t, path, "second_agent")

	require.Eventually(t, func() bool {
		return reg.DefaultAgentID() == "second_agent"
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWatcherKeepsTableOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intents.yaml")
	writeConfig(t, path, "first_agent")

	table, err := LoadFile(path)
	require.NoError(t, err)
	reg := New(table)

	w, err := NewWatcher(path, reg, func(o *WatcherOptions) {
		o.Debounce = 20 * time.Millisecond
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(path, []byte("intents: [broken"), 0o644))

	// The malformed document is rejected and the old table survives.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "first_agent", reg.DefaultAgentID())
}
