package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PAGEGEN_CONFIG", "")

	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "share", "pagegen", "pagegen.db"), c.Store.Path)
	require.Equal(t, "generator-state", c.Store.Key)
	require.Equal(t, 5*time.Second, c.Store.Timeout)
	require.Equal(t, 8888, c.Server.Port)
	require.Equal(t, slog.LevelInfo, c.Log.SlogLevel())
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "pagegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: /tmp/x.db\n  timeout: 250ms\nserver:\n  port: 9000\n"), 0o644))
	t.Setenv("PAGEGEN_SERVER_PORT", "9100")
	t.Setenv("PAGEGEN_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.db", c.Store.Path)
	require.Equal(t, 250*time.Millisecond, c.Store.Timeout)
	require.Equal(t, 9100, c.Server.Port)
	require.Equal(t, slog.LevelDebug, c.Log.SlogLevel())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, LogConfig{Level: in}.SlogLevel(), in)
	}
}
