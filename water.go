package gany

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/gany/glbuild"
	"github.com/soypat/gany/glbuild/glsllib"
	"github.com/soypat/gany/glrender"
	"github.com/soypat/geometry/ms3"
)

const (
	defaultCausticsFactor = 0.2
	defaultTargetSize     = 1024
)

// WaterConfig configures a [Water] effect.
type WaterConfig struct {
	// CausticsEnabled enables the environment capture and caustics passes.
	CausticsEnabled bool
	// UnderWater receivers are lit by the caustics and drawn with the water.
	UnderWater []*UnderWater
	// CausticsFactor scales caustics intensity. Defaults to 0.2.
	CausticsFactor float32
	// Skybox is reflected by the water surface. If nil a flat sky color is reflected.
	Skybox *glrender.CubeTexture
	// Pool provides the environment map shared between water effects.
	// Defaults to [glrender.DefaultTargetPool].
	Pool *glrender.TargetPool
	// EnvMapSize and CausticsSize are the square sizes of the environment map and
	// caustics texture in texels. Default to 1024.
	EnvMapSize   int
	CausticsSize int
	// Logger receives pass timings at debug level. May be nil.
	Logger *slog.Logger
}

// Water draws its parent's meshes as a refracting and reflecting water surface and
// computes the caustics it projects onto its receivers. It has no input.
//
// Caustics are recomputed in the pre-render hook only after construction,
// geometry or transform changes and [Water.Invalidate]. The screen space refraction
// pass runs every frame since it depends on the camera.
type Water struct {
	*chain
	log       *slog.Logger
	pool      *glrender.TargetPool
	receivers []*UnderWater

	causticsEnabled     bool
	causticsNeedsUpdate bool
	envSize             int
	causticsSize        int

	light       ms3.Vec
	lightCamera *glrender.OrthographicCamera
	backdrop    *Mesh
	// causticsMeshes march the environment map along refracted light rays.
	causticsMeshes []*Mesh

	envMap         *glbuild.Uniform
	refraction     *glbuild.Uniform
	causticsFactor *glbuild.Uniform

	causticsTarget *glrender.RenderTarget
	screenTarget   *glrender.RenderTarget
}

var _ Effect = (*Water)(nil)

// NewWater returns a water effect drawing parent's meshes as the water surface.
func NewWater(parent Blocker, cfg WaterConfig) (*Water, error) {
	if cfg.CausticsFactor == 0 {
		cfg.CausticsFactor = defaultCausticsFactor
	}
	if cfg.Pool == nil {
		cfg.Pool = glrender.DefaultTargetPool()
	}
	if cfg.EnvMapSize == 0 {
		cfg.EnvMapSize = defaultTargetSize
	}
	if cfg.CausticsSize == 0 {
		cfg.CausticsSize = defaultTargetSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(discardHandler{})
	}
	if cfg.EnvMapSize < 0 || cfg.CausticsSize < 0 {
		return nil, fmt.Errorf("invalid water target sizes %d and %d", cfg.EnvMapSize, cfg.CausticsSize)
	}
	for _, rec := range cfg.UnderWater {
		if rec == nil {
			return nil, errors.New("nil underwater receiver")
		}
	}
	placeholder, err := glrender.NewTexture(1, 1, glrender.FormatRGBA8)
	if err != nil {
		return nil, err
	}
	skybox := cfg.Skybox
	useSkybox := float32(1)
	if skybox == nil {
		skybox = &glrender.CubeTexture{}
		for i := range skybox.Faces {
			skybox.Faces[i] = placeholder
		}
		useSkybox = 0
	}
	c, err := newChain(parent, Input{}, 0, glbuild.MaterialBasic)
	if err != nil {
		return nil, err
	}
	w := &Water{
		chain:               c,
		log:                 cfg.Logger,
		pool:                cfg.Pool,
		receivers:           cfg.UnderWater,
		causticsEnabled:     cfg.CausticsEnabled,
		causticsNeedsUpdate: true,
		envSize:             cfg.EnvMapSize,
		causticsSize:        cfg.CausticsSize,
		light:               ms3.Vec{Z: -1},
		lightCamera:         &glrender.OrthographicCamera{},
		envMap:              glbuild.NewUniform(glbuild.Texture2D(placeholder)),
		refraction:          glbuild.NewUniform(glbuild.Texture2D(placeholder)),
		causticsFactor:      glbuild.NewUniform(glbuild.Float(cfg.CausticsFactor)),
	}
	skyboxUniform := glbuild.NewUniform(glbuild.TextureCube(skybox))
	useSkyboxUniform := glbuild.NewUniform(glbuild.Float(useSkybox))
	for _, m := range w.block.meshes {
		err = w.surface(m, skyboxUniform, useSkyboxUniform)
		if err != nil {
			return nil, err
		}
	}
	for _, m := range w.parent.meshes {
		cm, err := w.causticsMesh(m)
		if err != nil {
			return nil, err
		}
		w.causticsMeshes = append(w.causticsMeshes, cm)
	}
	w.backdrop, err = newBackdrop()
	if err != nil {
		return nil, err
	}
	for _, rec := range w.receivers {
		w.block.attach(rec)
		w.subscribe(rec.block.GeometryChanged.Subscribe(func(*Block) { w.Invalidate() }))
		w.subscribe(rec.block.TransformChanged.Subscribe(func(*Block) { w.updateLightCamera(); w.Invalidate() }))
	}
	w.subscribe(w.block.GeometryChanged.Subscribe(func(*Block) { w.Invalidate() }))
	w.subscribe(w.block.TransformChanged.Subscribe(func(*Block) { w.updateMatrix() }))
	w.block.SetBeforeRender(w.beforeRender)
	err = w.init()
	if err != nil {
		return nil, err
	}
	w.updateMatrix()
	return w, nil
}

// surface sets the refracting and reflecting shading of a water surface mesh.
func (w *Water) surface(m *Mesh, skybox, useSkybox *glbuild.Uniform) error {
	reflected := glbuild.NewVarying(glbuild.TypeVec3)
	reflectionFactor := glbuild.NewVarying(glbuild.TypeFloat)
	refractedPosition := glbuild.NewVarying(glbuild.TypeVec2)
	refractDef := glsllib.WaterReflectionRefraction()
	skyboxDef := glsllib.WaterColorSkybox()
	flatDef := glsllib.WaterColorFlat()
	bld := glbuild.Builder{NoPanic: true}
	for _, def := range []*glbuild.FuncDef{refractDef, skyboxDef} {
		bld.Keyword(def, "reflected", reflected)
	}
	for _, def := range []*glbuild.FuncDef{refractDef, skyboxDef, flatDef} {
		bld.Keyword(def, "reflectionFactor", reflectionFactor)
		bld.Keyword(def, "refractedPosition", refractedPosition)
	}
	refract := bld.Call(refractDef, m.Expr(SlotTransform), glbuild.WorldNormal())
	color := bld.Cond(useSkybox, glbuild.CmpEqual, glbuild.LitFloat(1),
		bld.Call(skyboxDef, w.refraction, skybox),
		bld.Call(flatDef, w.refraction),
	)
	if err := bld.Err(); err != nil {
		return err
	}
	err := m.AddVertexExpr(refract)
	if err != nil {
		return err
	}
	return m.Combine(SlotColor, OpAssign, color)
}

// causticsMesh returns a copy of m computing caustics intensity in color and landing
// depth in alpha. Intensities of overlapping meshes add up while depth is replaced.
func (w *Water) causticsMesh(m *Mesh) (*Mesh, error) {
	cm := m.Copy(glbuild.MaterialBasic)
	oldPosition := glbuild.NewVarying(glbuild.TypeVec3)
	newPosition := glbuild.NewVarying(glbuild.TypeVec3)
	waterDepth := glbuild.NewVarying(glbuild.TypeFloat)
	depth := glbuild.NewVarying(glbuild.TypeFloat)
	marchDef := glsllib.CausticsMarch()
	bld := glbuild.Builder{NoPanic: true}
	bld.Keyword(marchDef, "oldPosition", oldPosition)
	bld.Keyword(marchDef, "newPosition", newPosition)
	bld.Keyword(marchDef, "waterDepth", waterDepth)
	bld.Keyword(marchDef, "depth", depth)
	light := glbuild.NewUniform(glbuild.Vec3(w.light))
	march := bld.Call(marchDef, w.envMap, glbuild.LitFloat(1/float32(w.envSize)), m.Expr(SlotTransform), glbuild.Normal(), light)
	intensity := bld.Call(glsllib.CausticsIntensity(), oldPosition, newPosition, waterDepth, depth, w.causticsFactor)
	if err := bld.Err(); err != nil {
		return nil, err
	}
	err := cm.Combine(SlotTransform, OpAssign, march)
	if err == nil {
		err = cm.Combine(SlotColor, OpAssign, intensity)
	}
	if err == nil {
		err = cm.Combine(SlotAlpha, OpAssign, depth)
	}
	if err != nil {
		return nil, err
	}
	mat := glrender.DefaultMaterial()
	mat.Blend = true
	mat.Color = glrender.BlendAdditive
	mat.Alpha = glrender.BlendReplace
	cm.SetMaterial(mat)
	cm.SetVisible(true)
	return cm, nil
}

// newBackdrop returns the plane drawn first into the environment map so texels not
// covered by receivers hold a defined position and depth.
func newBackdrop() (*Mesh, error) {
	g, err := glrender.NewGeometry([]ms3.Vec{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1},
	}, []uint32{0, 1, 2, 0, 2, 3})
	if err != nil {
		return nil, err
	}
	m, err := NewMesh(g, glbuild.MaterialBasic)
	if err != nil {
		return nil, err
	}
	err = m.Combine(SlotColor, OpAssign, glbuild.WorldPosition())
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (w *Water) Slots() []Slot { return []Slot{SlotColor} }

// Rebuild recompiles the surface, caustics and backdrop meshes.
func (w *Water) Rebuild() error {
	err := w.chain.Rebuild()
	if err != nil {
		return err
	}
	for _, m := range append(w.causticsMeshes, w.backdrop) {
		err = m.Rebuild()
		if err != nil {
			return err
		}
	}
	return nil
}

// CausticsEnabled reports whether caustics are computed.
func (w *Water) CausticsEnabled() bool { return w.causticsEnabled }

// SetCausticsEnabled enables or disables the caustics passes. Enabling them
// requests a caustics update.
func (w *Water) SetCausticsEnabled(enabled bool) {
	if enabled && !w.causticsEnabled {
		w.causticsNeedsUpdate = true
	}
	w.causticsEnabled = enabled
}

func (w *Water) CausticsFactor() float32 { return w.causticsFactor.Value().Float() }

// SetCausticsFactor sets the caustics intensity scale and requests a caustics update.
func (w *Water) SetCausticsFactor(factor float32) error {
	err := w.causticsFactor.SetFloat(factor)
	if err != nil {
		return err
	}
	w.Invalidate()
	return nil
}

// Invalidate requests a caustics update on the next frame.
func (w *Water) Invalidate() { w.causticsNeedsUpdate = true }

// NeedsCausticsUpdate reports whether the next frame recomputes caustics.
func (w *Water) NeedsCausticsUpdate() bool { return w.causticsNeedsUpdate }

// Receivers returns the underwater blocks lit by the water.
func (w *Water) Receivers() []*UnderWater { return w.receivers }

// LightCamera returns the orthographic camera looking along the light direction
// fitted to the water's bounding sphere.
func (w *Water) LightCamera() *glrender.OrthographicCamera { return w.lightCamera }

// CausticsTarget returns the caustics render target or nil before the first update.
func (w *Water) CausticsTarget() *glrender.RenderTarget { return w.causticsTarget }

// ScreenSpaceTarget returns the refraction render target or nil before the first frame.
func (w *Water) ScreenSpaceTarget() *glrender.RenderTarget { return w.screenTarget }

// updateMatrix propagates the block's model matrix and refits the light camera.
func (w *Water) updateMatrix() {
	model := w.block.ModelMatrix()
	for _, m := range w.causticsMeshes {
		m.SetModel(model)
	}
	w.updateLightCamera()
	w.Invalidate()
}

// BoundingSphere returns the sphere bounding the water surface and its receivers.
func (w *Water) BoundingSphere() glrender.Sphere {
	sphere := w.block.BoundingSphere()
	for _, rec := range w.receivers {
		sphere = enclose(sphere, rec.block.BoundingSphere())
	}
	return sphere
}

// enclose returns the smallest sphere containing a and b.
func enclose(a, b glrender.Sphere) glrender.Sphere {
	d := ms3.Sub(b.Center, a.Center)
	dist := ms3.Norm(d)
	switch {
	case dist+b.Radius <= a.Radius:
		return a
	case dist+a.Radius <= b.Radius:
		return b
	}
	r := (dist + a.Radius + b.Radius) / 2
	return glrender.Sphere{
		Center: ms3.Add(a.Center, ms3.Scale((r-a.Radius)/dist, d)),
		Radius: r,
	}
}

func (w *Water) updateLightCamera() {
	sphere := w.BoundingSphere()
	w.lightCamera.FitSphere(sphere, w.light)
	r := w.lightCamera.Right
	c := sphere.Center
	w.backdrop.SetModel(mgl32.Translate3D(c.X, c.Y, c.Z-0.999*r).Mul4(mgl32.Scale3D(r, r, r)))
	proj, view := w.lightCamera.ProjectionMatrix(), w.lightCamera.ViewMatrix()
	for _, rec := range w.receivers {
		if err := rec.setLight(w.light, proj, view); err != nil {
			w.log.Error("setting receiver light", slog.String("receiver", rec.block.id.String()), slog.Any("err", err))
		}
	}
}

func (w *Water) beforeRender(r glrender.Renderer, f glrender.Frame) error {
	if w.causticsNeedsUpdate && w.causticsEnabled {
		err := w.updateCaustics(r)
		if err != nil {
			return fmt.Errorf("water caustics: %w", err)
		}
	}
	// Refraction depends on the camera, which the caustics flag does not track.
	err := w.renderScreenSpace(r, f)
	if err != nil {
		return fmt.Errorf("water refraction: %w", err)
	}
	return nil
}

// updateCaustics captures the environment from the light and computes the caustics
// texture. The shared environment map is claimed for both passes so water effects
// of one scene use it one after another.
func (w *Water) updateCaustics(r glrender.Renderer) (err error) {
	start := time.Now()
	// Geometry changes grow or shrink the bounding volume without a transform event.
	w.updateLightCamera()
	env, err := w.pool.EnvironmentTarget(w.envSize)
	if err != nil {
		return err
	}
	release, err := w.pool.Claim(env, w)
	if err != nil {
		return err
	}
	defer release()
	if w.causticsTarget == nil {
		w.causticsTarget, err = w.pool.NewTarget("caustics", w.causticsSize, w.causticsSize, glrender.FormatRGBA32F)
		if err != nil {
			return err
		}
	}
	for _, m := range append(w.causticsMeshes, w.backdrop) {
		if m.NeedsRebuild() {
			err = m.Rebuild()
			if err != nil {
				return err
			}
		}
	}
	prevTarget, prevClear := r.RenderTarget(), r.ClearColor()
	defer func() {
		r.SetRenderTarget(prevTarget)
		r.SetClearColor(prevClear)
	}()

	// Environment capture.
	r.SetRenderTarget(env)
	r.SetClearColor([4]float32{})
	err = r.Clear()
	if err != nil {
		return err
	}
	err = r.Render(w.backdrop, w.lightCamera)
	if err != nil {
		return err
	}
	for _, rec := range w.receivers {
		err = rec.renderEnvMap(r, w.lightCamera)
		if err != nil {
			return err
		}
	}
	err = w.envMap.SetSampler(env.Texture())
	if err != nil {
		return err
	}

	// Caustics.
	r.SetRenderTarget(w.causticsTarget)
	err = r.Clear()
	if err != nil {
		return err
	}
	var items glrender.DrawItems
	for _, m := range w.causticsMeshes {
		items = m.AppendDrawItems(items)
	}
	err = r.Render(items, w.lightCamera)
	if err != nil {
		return err
	}
	for _, rec := range w.receivers {
		err = rec.setCausticsTexture(w.causticsTarget.Texture())
		if err != nil {
			return err
		}
	}
	w.causticsNeedsUpdate = false
	w.log.Debug("caustics updated", slog.String("water", w.block.id.String()),
		slog.Int("receivers", len(w.receivers)), slog.Duration("elapsed", time.Since(start)))
	return nil
}

// renderScreenSpace draws the scene without the water surface into the refraction target.
func (w *Water) renderScreenSpace(r glrender.Renderer, f glrender.Frame) (err error) {
	if f.Scene == nil || f.Camera == nil {
		return errors.New("frame has no scene or camera")
	}
	width, height := r.ViewportSize()
	if w.screenTarget == nil {
		w.screenTarget, err = glrender.NewRenderTarget("screenspace", width, height, glrender.FormatRGBA8)
	} else {
		err = w.screenTarget.SetSize(width, height)
	}
	if err != nil {
		return err
	}
	prevTarget, prevClear := r.RenderTarget(), r.ClearColor()
	visible := make([]bool, len(w.block.meshes))
	for i, m := range w.block.meshes {
		visible[i] = m.Visible()
		m.SetVisible(false)
	}
	defer func() {
		for i, m := range w.block.meshes {
			m.SetVisible(visible[i])
		}
		r.SetRenderTarget(prevTarget)
		r.SetClearColor(prevClear)
	}()
	r.SetRenderTarget(w.screenTarget)
	r.SetClearColor(f.ClearColor)
	err = r.Clear()
	if err != nil {
		return err
	}
	err = r.Render(f.Scene, f.Camera)
	if err != nil {
		return err
	}
	return w.refraction.SetSampler(w.screenTarget.Texture())
}
