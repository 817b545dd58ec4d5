package ganyaux

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 100\nheight: 100\n"), 0o644))
	cw, err := NewConfigWatcher(path, nil)
	require.NoError(t, err)
	defer cw.Close()
	_, ok := cw.Poll()
	assert.False(t, ok)

	// Writes to other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("width: 1"), 0o644))
	// Invalid configurations are skipped.
	require.NoError(t, os.WriteFile(path, []byte("min: 2\nmax: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("width: 320\nheight: 200\n"), 0o644))

	var got ViewerConfig
	require.Eventually(t, func() bool {
		cfg, ok := cw.Poll()
		if ok {
			got = cfg
		}
		return got.Width == 320
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 200, got.Height)
	require.NoError(t, cw.Close())
}

func TestConfigWatcherBadPath(t *testing.T) {
	_, err := NewConfigWatcher("viewer.ini", nil)
	assert.Error(t, err)
}
