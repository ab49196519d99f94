package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
version: "1"
models: {}
service:
  models: []
`

func TestNewWatcher_InitialLoadFailure(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope.yaml"), schemaPath, func(*Config, error) {})
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	var mu sync.Mutex
	var lastCfg *Config
	var lastErr error
	w, err := NewWatcher(path, schemaPath, func(cfg *Config, err error) {
		mu.Lock()
		defer mu.Unlock()
		lastCfg, lastErr = cfg, err
	})
	require.NoError(t, err)

	require.NotNil(t, w.Snapshot())
	assert.Equal(t, uint32(0), w.ReloadCount())

	updated := `
version: "2"
models: {}
service:
  models: []
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastErr == nil && lastCfg != nil && lastCfg.Version == "2"
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, "2", w.Snapshot().Version)
	assert.GreaterOrEqual(t, w.ReloadCount(), uint32(1))
}

func TestWatcher_KeepsSnapshotOnBadReload(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	var mu sync.Mutex
	var lastErr error
	w, err := NewWatcher(path, schemaPath, func(cfg *Config, err error) {
		mu.Lock()
		defer mu.Unlock()
		lastErr = err
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("models: {}\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastErr != nil
	}, 5*time.Second, 50*time.Millisecond)

	// The last known good config stays in place.
	assert.Equal(t, "1", w.Snapshot().Version)
}
