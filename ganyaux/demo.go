package ganyaux

import (
	"errors"
	"log/slog"

	"github.com/soypat/gany"
	"github.com/soypat/gany/colormap"
	"github.com/soypat/gany/forge/meshes"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

const (
	demoSize       = 4
	demoWaterLevel = 0
	demoFloorLevel = -0.5
)

// Demo is a scene showing a colored warped terrain next to a pool of water
// casting caustics onto its floor.
type Demo struct {
	Scene *gany.Scene

	Terrain     *gany.Block
	Iso         *gany.IsoColor
	TerrainWarp *gany.WarpByScalar

	Floor      *gany.Block
	FloorWarp  *gany.WarpByScalar
	UnderWater *gany.UnderWater
	Surface    *gany.Block
	Water      *gany.Water

	resolution int
}

// NewDemo builds the demo scene. pool and logger may be nil.
func NewDemo(cfg ViewerConfig, pool *glrender.TargetPool, logger *slog.Logger) (*Demo, error) {
	cfg.SetDefaults()
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	d := &Demo{Scene: gany.NewScene(), resolution: cfg.Resolution}
	grid := meshes.Grid{Width: demoSize, Height: demoSize, NX: cfg.Resolution, NY: cfg.Resolution}

	d.Terrain, err = terrain(grid)
	if err != nil {
		return nil, err
	}
	d.Terrain.SetPosition(ms3.Vec{X: -demoSize/2 - 0.5})
	in, err := d.Terrain.Input("wave", "height")
	if err != nil {
		return nil, err
	}
	d.Iso, err = gany.NewIsoColor(d.Terrain, in, cfg.Min, cfg.Max, gany.IsoColorConfig{
		ColorMap: cfg.ColorMap,
		Scale:    scaleType(cfg.LogScale),
	})
	if err != nil {
		return nil, err
	}
	d.TerrainWarp, err = gany.NewWarpByScalar(d.Iso, in, cfg.WarpFactor)
	if err != nil {
		return nil, err
	}

	d.Floor, err = terrain(grid)
	if err != nil {
		return nil, err
	}
	d.Floor.SetPosition(ms3.Vec{X: demoSize/2 + 0.5, Z: demoFloorLevel})
	d.FloorWarp, err = gany.NewWarpByScalar(d.Floor, in, cfg.WarpFactor)
	if err != nil {
		return nil, err
	}
	depth, err := d.FloorWarp.AsBlock().Input("depth")
	if err != nil {
		return nil, err
	}
	d.UnderWater, err = gany.NewUnderWater(d.FloorWarp, depth, gany.UnderWaterConfig{})
	if err != nil {
		return nil, err
	}
	surf, err := meshes.Grid{Width: demoSize, Height: demoSize, NX: cfg.Resolution, NY: cfg.Resolution}.Surface()
	if err != nil {
		return nil, err
	}
	d.Surface, err = gany.NewPolyMesh(surf.Vertices, surf.Indices, nil)
	if err != nil {
		return nil, err
	}
	d.Surface.SetPosition(ms3.Vec{X: demoSize/2 + 0.5, Z: demoWaterLevel})
	d.Water, err = gany.NewWater(d.Surface, gany.WaterConfig{
		CausticsEnabled: cfg.Caustics,
		CausticsFactor:  cfg.CausticsFactor,
		UnderWater:      []*gany.UnderWater{d.UnderWater},
		Pool:            pool,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	for _, b := range []gany.Blocker{d.TerrainWarp, d.Water} {
		err = d.Scene.AddBlock(b)
		if err != nil {
			return nil, err
		}
	}
	d.Scene.ClearColor = cfg.Background
	return d, nil
}

// terrain returns a grid carrying a wave height field and the depth below the
// water level of every vertex warped by a unit factor.
func terrain(grid meshes.Grid) (*gany.Block, error) {
	surf, err := grid.Surface()
	if err != nil {
		return nil, err
	}
	height := meshes.Field(surf.Vertices, meshes.Wave(0.3, 1.5))
	depth := make([]float32, len(height))
	for i, h := range height {
		depth[i] = demoWaterLevel - (demoFloorLevel + h)
	}
	return gany.NewPolyMesh(surf.Vertices, surf.Indices, []*gany.Data{
		{Name: "wave", Components: []gany.Component{{Name: "height", Array: height}}},
		{Name: "depth", Components: []gany.Component{{Name: "d", Array: depth}}},
	})
}

func scaleType(log bool) colormap.ScaleType {
	if log {
		return colormap.ScaleLog
	}
	return colormap.ScaleLinear
}

// Apply updates the live settings of the demo. Uniform backed settings take effect
// on the next frame without recompiling. Changing the resolution is an error.
func (d *Demo) Apply(cfg ViewerConfig) error {
	cfg.SetDefaults()
	err := cfg.Validate()
	if err != nil {
		return err
	} else if cfg.Resolution != d.resolution {
		return errors.New("resolution change requires a restart")
	}
	d.Scene.ClearColor = cfg.Background
	errs := []error{
		d.Iso.SetMin(cfg.Min),
		d.Iso.SetMax(cfg.Max),
		d.Iso.SetColorMap(cfg.ColorMap),
		d.Iso.SetScaleType(scaleType(cfg.LogScale)),
		d.TerrainWarp.SetFactor(cfg.WarpFactor),
		d.FloorWarp.SetFactor(cfg.WarpFactor),
		d.Water.SetCausticsFactor(cfg.CausticsFactor),
	}
	d.Water.SetCausticsEnabled(cfg.Caustics)
	return errors.Join(errs...)
}
