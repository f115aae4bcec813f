package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "braingemma.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diagnosis:\n  mode: mock\n"), 0644))

	changes := make(chan *Config, 4)
	w := NewWatcher(path, func(cfg *Config) { changes <- cfg })
	w.debounceDur = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("diagnosis:\n  mode: pipeline\n"), 0644))

	select {
	case cfg := <-changes:
		assert.Equal(t, ModePipeline, cfg.Diagnosis.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}

	cancel()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, w.Stats().Reloads, 1)
}

func TestWatcher_RejectsInvalidConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "braingemma.yaml")
	require.NoError(t, os.WriteFile(path, []byte("diagnosis:\n  mode: oracle\n"), 0644))

	called := false
	w := NewWatcher(path, func(*Config) { called = true })
	w.load()

	assert.False(t, called)
	assert.Equal(t, 1, w.Stats().Errors)
	assert.Equal(t, 0, w.Stats().Reloads)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(filepath.Join(dir, "braingemma.yaml"), nil)
	w.handleEvent(fsnotifyWrite(filepath.Join(dir, "other.yaml")))
	assert.Equal(t, 0, w.Stats().Events)
}

func fsnotifyWrite(name string) fsnotify.Event {
	return fsnotify.Event{Name: name, Op: fsnotify.Write}
}
