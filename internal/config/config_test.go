package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 24, c.Insight.ActiveThresholdHours)
	assert.Equal(t, 10, c.Insight.BatchSize)
	assert.Equal(t, 6, c.Insight.EventDailyCap)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("insight:\n  batch_size: 25\n"), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, c.Insight.BatchSize)
	assert.Equal(t, 24, c.Insight.ActiveThresholdHours, "unset fields still get defaults")
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLLMAPIKeyReadsConfiguredEnvVar(t *testing.T) {
	t.Setenv("CUSTOM_KEY_VAR", "secret-value")
	c := Default()
	c.Insight.LLMAPIKeyEnv = "CUSTOM_KEY_VAR"
	assert.Equal(t, "secret-value", c.LLMAPIKey())
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("insight:\n  batch_size: 10\n"), 0644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, 10, w.Current().Insight.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, errs := w.Watch(ctx)

	require.NoError(t, os.WriteFile(path, []byte("insight:\n  batch_size: 50\n"), 0644))

	select {
	case c := <-changes:
		assert.Equal(t, 50, c.Insight.BatchSize)
	case err := <-errs:
		t.Fatalf("unexpected watcher error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
