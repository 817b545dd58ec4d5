package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaderCmd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "viewer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("resolution: 2\ncolormap: Inferno\n"), 0o644))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"shader", "--config", cfgPath})
	require.NoError(t, root.Execute())
	assert.Equal(t, 3, strings.Count(out.String(), "// fragment\n"))

	// A second run builds new nodes and prints the same sources.
	outPath := filepath.Join(dir, "demo.glsl")
	root = newRootCmd()
	root.SetArgs([]string{"shader", "-c", cfgPath, "-o", outPath})
	require.NoError(t, root.Execute())
	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(written))
}

func TestShaderCmdBadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "viewer.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`colormap = "nope"`), 0o644))
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"shader", "--config", cfgPath})
	assert.Error(t, root.Execute())
}

func TestEvalCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"eval"})
	require.NoError(t, root.Execute())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "min -2 -2 "))
	assert.True(t, strings.HasPrefix(lines[1], "max 2 2 "))
}
