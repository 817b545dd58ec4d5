package ganyaux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/gany/colormap"
	"gopkg.in/yaml.v3"
)

// ViewerConfig holds the settings of the demo viewer. It is read from a YAML or TOML
// file and may be edited while the viewer runs. The zero value is valid once
// [ViewerConfig.SetDefaults] is called.
type ViewerConfig struct {
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
	Title  string `yaml:"title" toml:"title"`
	// Background is the RGBA clear color of the frame.
	Background [4]float32 `yaml:"background" toml:"background"`
	// Resolution is the number of grid quads per axis of demo surfaces.
	// Changing it requires a restart.
	Resolution int `yaml:"resolution" toml:"resolution"`

	ColorMap string  `yaml:"colormap" toml:"colormap"`
	LogScale bool    `yaml:"log_scale" toml:"log_scale"`
	Min      float32 `yaml:"min" toml:"min"`
	Max      float32 `yaml:"max" toml:"max"`

	WarpFactor     float32 `yaml:"warp_factor" toml:"warp_factor"`
	Caustics       bool    `yaml:"caustics" toml:"caustics"`
	CausticsFactor float32 `yaml:"caustics_factor" toml:"caustics_factor"`
}

// SetDefaults fills unset fields.
func (cfg *ViewerConfig) SetDefaults() {
	if cfg.Width == 0 {
		cfg.Width = 800
	}
	if cfg.Height == 0 {
		cfg.Height = 600
	}
	if cfg.Title == "" {
		cfg.Title = "gany"
	}
	if cfg.Resolution == 0 {
		cfg.Resolution = 64
	}
	if cfg.ColorMap == "" {
		cfg.ColorMap = colormap.Default
	}
	if cfg.Min == 0 && cfg.Max == 0 {
		cfg.Min, cfg.Max = -0.3, 0.3
	}
	if cfg.CausticsFactor == 0 {
		cfg.CausticsFactor = 0.2
	}
}

// Validate checks the configuration is usable.
func (cfg ViewerConfig) Validate() error {
	var errs []error
	if cfg.Width <= 0 || cfg.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid window size %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.Resolution < 1 || cfg.Resolution > 1024 {
		errs = append(errs, fmt.Errorf("resolution %d out of range [1, 1024]", cfg.Resolution))
	}
	if _, err := colormap.Get(cfg.ColorMap); err != nil {
		errs = append(errs, err)
	}
	if cfg.Min >= cfg.Max {
		errs = append(errs, fmt.Errorf("min %g must be less than max %g", cfg.Min, cfg.Max))
	}
	if cfg.LogScale && cfg.Max <= 0 {
		errs = append(errs, errors.New("log scale requires a positive max"))
	}
	if cfg.CausticsFactor < 0 {
		errs = append(errs, fmt.Errorf("negative caustics factor %g", cfg.CausticsFactor))
	}
	for _, c := range cfg.Background {
		if c < 0 || c > 1 {
			errs = append(errs, fmt.Errorf("background component %g out of range [0, 1]", c))
			break
		}
	}
	return errors.Join(errs...)
}

// Format is the encoding of a configuration file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFromPath returns the format of a configuration file by its extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return 0, fmt.Errorf("unsupported config extension %q, want .yaml, .yml or .toml", filepath.Ext(path))
}

// LoadViewerConfig reads, defaults and validates a viewer configuration file.
func LoadViewerConfig(path string) (ViewerConfig, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return ViewerConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ViewerConfig{}, err
	}
	cfg, err := ParseViewerConfig(data, format)
	if err != nil {
		return ViewerConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseViewerConfig decodes, defaults and validates a viewer configuration.
// Unknown fields are an error.
func ParseViewerConfig(data []byte, format Format) (cfg ViewerConfig, err error) {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			err = nil // Empty document.
		}
	case FormatTOML:
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&cfg)
	default:
		err = fmt.Errorf("unknown config format %d", format)
	}
	if err != nil {
		return ViewerConfig{}, err
	}
	cfg.SetDefaults()
	err = cfg.Validate()
	if err != nil {
		return ViewerConfig{}, err
	}
	return cfg, nil
}
