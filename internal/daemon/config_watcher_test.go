package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felloworks/wheelwright/internal/config"
)

func TestValidateConfigChange(t *testing.T) {
	d := newTestDaemon(t)
	cw := &ConfigWatcher{daemon: d}

	t.Run("rejects removed daemon section", func(t *testing.T) {
		require.Error(t, cw.validateConfigChange(config.Default()))
	})

	t.Run("accepts worker change", func(t *testing.T) {
		next := testDaemonConfig(t)
		next.Daemon.Workers = 2
		require.NoError(t, cw.validateConfigChange(next))
	})

	t.Run("accepts listen change", func(t *testing.T) {
		// Applied config keeps the old listener, only a warning is logged
		next := testDaemonConfig(t)
		next.Daemon.Listen = "127.0.0.1:9999"
		require.NoError(t, cw.validateConfigChange(next))
	})
}

func TestPerformReload(t *testing.T) {
	d := newTestDaemon(t)

	path := filepath.Join(t.TempDir(), "wheelwright.yaml")
	writeConfig := func(body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	writeConfig("daemon:\n  queue_size: 8\n")

	cw, err := NewConfigWatcher(path, d)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	require.NoError(t, cw.performReload(context.Background()))
	require.Equal(t, 8, d.GetConfig().Daemon.QueueSize)

	t.Run("broken yaml keeps previous config", func(t *testing.T) {
		writeConfig("daemon: [broken\n")
		require.Error(t, cw.performReload(context.Background()))
		require.Equal(t, 8, d.GetConfig().Daemon.QueueSize)
	})

	t.Run("removed daemon section keeps previous config", func(t *testing.T) {
		writeConfig("project:\n  path: .\n")
		require.Error(t, cw.performReload(context.Background()))
		require.Equal(t, 8, d.GetConfig().Daemon.QueueSize)
	})
}

func TestTriggerReloadCoalesces(t *testing.T) {
	cw := &ConfigWatcher{reloadChan: make(chan struct{}, 1)}

	cw.triggerReload()
	cw.triggerReload()
	cw.triggerReload()

	require.Len(t, cw.reloadChan, 1)
}
