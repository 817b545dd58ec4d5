package ganyaux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
width: 1024
height: 768
colormap: Magma
min: -1
max: 2
warp_factor: 0.5
caustics: true
background: [0.1, 0.2, 0.3, 1]
`

const tomlConfig = `
width = 1024
height = 768
colormap = "Magma"
min = -1.0
max = 2.0
warp_factor = 0.5
caustics = true
background = [0.1, 0.2, 0.3, 1.0]
`

func TestParseViewerConfig(t *testing.T) {
	fromYAML, err := ParseViewerConfig([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)
	fromTOML, err := ParseViewerConfig([]byte(tomlConfig), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromTOML)
	assert.Equal(t, 1024, fromYAML.Width)
	assert.Equal(t, "Magma", fromYAML.ColorMap)
	assert.Equal(t, float32(0.5), fromYAML.WarpFactor)
	assert.True(t, fromYAML.Caustics)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, fromYAML.Background)
	// Defaults.
	assert.Equal(t, "gany", fromYAML.Title)
	assert.Equal(t, 64, fromYAML.Resolution)
	assert.Equal(t, float32(0.2), fromYAML.CausticsFactor)

	empty, err := ParseViewerConfig(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 800, empty.Width)
}

func TestParseViewerConfigInvalid(t *testing.T) {
	for name, tc := range map[string]struct {
		data   string
		format Format
	}{
		"unknown yaml field": {"colour: red", FormatYAML},
		"unknown toml field": {`colour = "red"`, FormatTOML},
		"bad colormap":       {"colormap: Rainbow2000", FormatYAML},
		"min above max":      {"min: 2\nmax: 1", FormatYAML},
		"log scale negative": {"log_scale: true\nmin: -2\nmax: -1", FormatYAML},
		"bad background":     {"background: [2, 0, 0, 1]", FormatYAML},
		"bad resolution":     {"resolution = 5000", FormatTOML},
		"syntax":             {"width = ", FormatTOML},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseViewerConfig([]byte(tc.data), tc.format)
			assert.Error(t, err)
		})
	}
}

func TestLoadViewerConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewer.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlConfig), 0o644))
	cfg, err := LoadViewerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Height)

	_, err = LoadViewerConfig(filepath.Join(dir, "viewer.json"))
	assert.Error(t, err)
	_, err = LoadViewerConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	format, err := FormatFromPath("a/b/C.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, format)
}
